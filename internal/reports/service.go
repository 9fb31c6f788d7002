package reports

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/internal/repo"
	"github.com/pharmadata/pharmadata-backend/pkg/db"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
)

const maxMessageLength = 5000

type reportsRepository interface {
	Create(ctx context.Context, report *models.ErrorReport) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ErrorReport, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ErrorReportStatus) (bool, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, params pagination.Params) (repo.Page[models.ErrorReport], error)
	ListAll(ctx context.Context, status *enums.ErrorReportStatus, severity *enums.ErrorReportSeverity, params pagination.Params) (repo.Page[models.ErrorReport], error)
}

type adminsLister interface {
	ListAdmins(ctx context.Context) ([]models.Account, error)
}

type notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, kind enums.NotificationType, title, message string) error
}

// ServiceParams groups dependencies for the error report service.
type ServiceParams struct {
	ReportsRepo reportsRepository
	Accounts    adminsLister
	Notifier    notifier
	Logger      *logger.Logger
}

// Service takes in data error reports. Critical reports fan out a
// notification to every admin; the report row never depends on that fan-out.
type Service struct {
	reports  reportsRepository
	accounts adminsLister
	notifier notifier
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.ReportsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reports repository required")
	}
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "accounts repository required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{
		reports:  params.ReportsRepo,
		accounts: params.Accounts,
		notifier: params.Notifier,
		logg:     params.Logger,
	}, nil
}

// CreateInput carries a new report submission.
type CreateInput struct {
	Severity  enums.ErrorReportSeverity
	Message   string
	Context   *string
	ProductID *uuid.UUID
}

// Create files the report and, for critical severity, notifies all admins.
func (s *Service) Create(ctx context.Context, accountID uuid.UUID, input CreateInput) (*models.ErrorReport, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id is required")
	}
	if !input.Severity.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "invalid severity")
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "message is required")
	}
	if len(message) > maxMessageLength {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "message is too long")
	}

	report := &models.ErrorReport{
		ID:        uuid.New(),
		AccountID: accountID,
		Severity:  input.Severity,
		Status:    enums.ErrorReportStatusNew,
		Message:   message,
		Context:   input.Context,
		ProductID: input.ProductID,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create error report")
	}

	if report.Severity == enums.ErrorReportSeverityCritical {
		s.notifyAdmins(ctx, report)
	}
	return report, nil
}

// ListOwn returns one page of the caller's reports.
func (s *Service) ListOwn(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.ErrorReport, pagination.Envelope, error) {
	if accountID == uuid.Nil {
		return nil, pagination.Envelope{}, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id is required")
	}
	page, err := s.reports.ListByAccount(ctx, accountID, params)
	if err != nil {
		return nil, pagination.Envelope{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list error reports")
	}
	return page.Items, page.Envelope, nil
}

// AdminListParams filters the admin listing.
type AdminListParams struct {
	Status   *enums.ErrorReportStatus
	Severity *enums.ErrorReportSeverity
	Page     pagination.Params
}

// AdminList returns one page of reports across all accounts. Admin only,
// enforced by the route layer.
func (s *Service) AdminList(ctx context.Context, params AdminListParams) ([]models.ErrorReport, pagination.Envelope, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pagination.Envelope{}, pkgerrors.New(pkgerrors.CodeInvalidArgument, "invalid status filter")
	}
	if params.Severity != nil && !params.Severity.IsValid() {
		return nil, pagination.Envelope{}, pkgerrors.New(pkgerrors.CodeInvalidArgument, "invalid severity filter")
	}
	page, err := s.reports.ListAll(ctx, params.Status, params.Severity, params.Page)
	if err != nil {
		return nil, pagination.Envelope{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list error reports")
	}
	return page.Items, page.Envelope, nil
}

// UpdateStatus moves a report through triage. Admin only.
func (s *Service) UpdateStatus(ctx context.Context, reportID uuid.UUID, status enums.ErrorReportStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "invalid report status")
	}
	updated, err := s.reports.UpdateStatus(ctx, reportID, status)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update report status")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
	}
	return nil
}

// Get loads one of the caller's reports.
func (s *Service) Get(ctx context.Context, accountID, reportID uuid.UUID) (*models.ErrorReport, error) {
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load report")
	}
	if report.AccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
	}
	return report, nil
}

func (s *Service) notifyAdmins(ctx context.Context, report *models.ErrorReport) {
	ctx = s.logg.WithField(ctx, "report_id", report.ID.String())
	admins, err := s.accounts.ListAdmins(ctx)
	if err != nil {
		s.logg.Error(ctx, "list admins for critical report", err)
		return
	}
	for _, admin := range admins {
		if err := s.notifier.Notify(ctx, admin.ID, enums.NotificationTypeErrorReport,
			"Critical data error reported", report.Message); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "admin_id", admin.ID.String()), "admin notification failed")
		}
	}
}
