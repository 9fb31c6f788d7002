package controllers

import (
	"net/http"
	"strings"

	"github.com/pharmadata/pharmadata-backend/api/middleware"
	"github.com/pharmadata/pharmadata-backend/api/responses"
	"github.com/pharmadata/pharmadata-backend/api/validators"
	"github.com/pharmadata/pharmadata-backend/internal/reports"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
)

type createReportRequest struct {
	Severity string  `json:"severity" validate:"required,oneof=low medium high critical"`
	Message  string  `json:"message" validate:"required,max=5000"`
	Endpoint *string `json:"endpoint"`
}

type reportStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new investigating resolved dismissed"`
}

type reportListResponse struct {
	Items      []models.ErrorReport `json:"items"`
	Pagination pagination.Envelope  `json:"pagination"`
}

// ErrorReportCreate files a report. Critical severity alerts every admin.
func ErrorReportCreate(svc *reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		var req createReportRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		severity, err := enums.ParseErrorReportSeverity(req.Severity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "invalid severity"))
			return
		}
		report, err := svc.Create(r.Context(), accountID, reports.CreateInput{
			Severity: severity,
			Message:  req.Message,
			Context:  req.Endpoint,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, report)
	}
}

// ErrorReportList pages through the caller's own reports.
func ErrorReportList(svc *reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, envelope, err := svc.ListOwn(r.Context(), accountID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reportListResponse{Items: items, Pagination: envelope})
	}
}

// ErrorReportGet returns one of the caller's reports.
func ErrorReportGet(svc *reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		id, err := validators.ParseUUIDParam(r, "reportID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Get(r.Context(), accountID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// ErrorReportAdminList pages through reports across all accounts with
// optional status and severity filters. Admin only.
func ErrorReportAdminList(svc *reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := reports.AdminListParams{Page: page}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseErrorReportStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("severity")); raw != "" {
			severity, err := enums.ParseErrorReportSeverity(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "invalid severity filter"))
				return
			}
			params.Severity = &severity
		}
		items, envelope, err := svc.AdminList(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reportListResponse{Items: items, Pagination: envelope})
	}
}

// ErrorReportUpdateStatus moves a report through triage. Admin only.
func ErrorReportUpdateStatus(svc *reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "reportID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reportStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseErrorReportStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "invalid status"))
			return
		}
		if err := svc.UpdateStatus(r.Context(), id, status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
