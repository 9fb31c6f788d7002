package controllers

import (
	"net/http"

	"github.com/pharmadata/pharmadata-backend/api/middleware"
	"github.com/pharmadata/pharmadata-backend/api/responses"
	"github.com/pharmadata/pharmadata-backend/api/validators"
	"github.com/pharmadata/pharmadata-backend/internal/files"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

type generateFilesRequest struct {
	Format string `json:"format" validate:"omitempty,oneof=pdf json zip"`
}

// FilesGenerate renders the documents for a completed purchase and
// returns short-lived download links. Safe to call again, regeneration
// reuses the stored objects.
func FilesGenerate(svc *files.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		sessionID, err := validators.ParseUUIDParam(r, "sessionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req generateFilesRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		var format enums.FileFormat
		if req.Format != "" {
			format, err = enums.ParseFileFormat(req.Format)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "invalid format"))
				return
			}
		}
		result, err := svc.Generate(r.Context(), accountID, sessionID, format)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// FilesHistory pages through the caller's purchases with fresh download
// links for each.
func FilesHistory(svc *files.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.History(r.Context(), accountID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
