package reports

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/internal/repo"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
)

type fakeReportsRepo struct {
	created      []*models.ErrorReport
	findByIDFn   func(ctx context.Context, id uuid.UUID) (*models.ErrorReport, error)
	updateStatus func(ctx context.Context, id uuid.UUID, status enums.ErrorReportStatus) (bool, error)
	listAllFn    func(ctx context.Context, status *enums.ErrorReportStatus, severity *enums.ErrorReportSeverity, params pagination.Params) (repo.Page[models.ErrorReport], error)
}

func (f *fakeReportsRepo) Create(_ context.Context, report *models.ErrorReport) error {
	f.created = append(f.created, report)
	return nil
}

func (f *fakeReportsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ErrorReport, error) {
	if f.findByIDFn == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.findByIDFn(ctx, id)
}

func (f *fakeReportsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ErrorReportStatus) (bool, error) {
	if f.updateStatus == nil {
		return false, nil
	}
	return f.updateStatus(ctx, id, status)
}

func (f *fakeReportsRepo) ListByAccount(_ context.Context, _ uuid.UUID, params pagination.Params) (repo.Page[models.ErrorReport], error) {
	return repo.Page[models.ErrorReport]{Envelope: pagination.BuildEnvelope(params, 0)}, nil
}

func (f *fakeReportsRepo) ListAll(ctx context.Context, status *enums.ErrorReportStatus, severity *enums.ErrorReportSeverity, params pagination.Params) (repo.Page[models.ErrorReport], error) {
	if f.listAllFn == nil {
		return repo.Page[models.ErrorReport]{Envelope: pagination.BuildEnvelope(params, 0)}, nil
	}
	return f.listAllFn(ctx, status, severity, params)
}

type fakeAdminsLister struct {
	admins []models.Account
	err    error
}

func (f *fakeAdminsLister) ListAdmins(context.Context) ([]models.Account, error) {
	return f.admins, f.err
}

type fakeNotifier struct {
	recipients []uuid.UUID
	kinds      []enums.NotificationType
}

func (f *fakeNotifier) Notify(_ context.Context, accountID uuid.UUID, kind enums.NotificationType, _, _ string) error {
	f.recipients = append(f.recipients, accountID)
	f.kinds = append(f.kinds, kind)
	return nil
}

func newReportsService(t *testing.T, reports *fakeReportsRepo, admins *fakeAdminsLister, notes *fakeNotifier) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		ReportsRepo: reports,
		Accounts:    admins,
		Notifier:    notes,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func TestCreate_CriticalNotifiesAllAdmins(t *testing.T) {
	adminA := models.Account{ID: uuid.New()}
	adminB := models.Account{ID: uuid.New()}
	reports := &fakeReportsRepo{}
	notes := &fakeNotifier{}
	svc := newReportsService(t, reports, &fakeAdminsLister{admins: []models.Account{adminA, adminB}}, notes)

	report, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Severity: enums.ErrorReportSeverityCritical,
		Message:  "CIP 3400935955838 points at the wrong product",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if report.Status != enums.ErrorReportStatusNew {
		t.Fatalf("unexpected status %s", report.Status)
	}
	if len(notes.recipients) != 2 {
		t.Fatalf("expected both admins notified, got %v", notes.recipients)
	}
	for _, kind := range notes.kinds {
		if kind != enums.NotificationTypeErrorReport {
			t.Fatalf("unexpected notification kind %s", kind)
		}
	}
}

func TestCreate_NonCriticalSkipsAdmins(t *testing.T) {
	reports := &fakeReportsRepo{}
	notes := &fakeNotifier{}
	svc := newReportsService(t, reports, &fakeAdminsLister{admins: []models.Account{{ID: uuid.New()}}}, notes)

	if _, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Severity: enums.ErrorReportSeverityLow,
		Message:  "typo in description",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(notes.recipients) != 0 {
		t.Fatal("low severity must not notify admins")
	}
}

func TestCreate_AdminListFailureKeepsReport(t *testing.T) {
	reports := &fakeReportsRepo{}
	svc := newReportsService(t, reports, &fakeAdminsLister{err: gorm.ErrInvalidDB}, &fakeNotifier{})

	if _, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Severity: enums.ErrorReportSeverityCritical,
		Message:  "data outage",
	}); err != nil {
		t.Fatalf("report must survive fan-out failure: %v", err)
	}
	if len(reports.created) != 1 {
		t.Fatal("expected report row")
	}
}

func TestCreate_Validation(t *testing.T) {
	reports := &fakeReportsRepo{}
	svc := newReportsService(t, reports, &fakeAdminsLister{}, &fakeNotifier{})

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{Severity: "urgent", Message: "m"})
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid severity rejection, got %v", err)
	}
	_, err = svc.Create(context.Background(), uuid.New(), CreateInput{Severity: enums.ErrorReportSeverityHigh, Message: "   "})
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeInvalidArgument {
		t.Fatalf("expected empty message rejection, got %v", err)
	}
	if len(reports.created) != 0 {
		t.Fatal("no rows expected")
	}
}

func TestAdminList_PassesFilters(t *testing.T) {
	var gotStatus *enums.ErrorReportStatus
	var gotSeverity *enums.ErrorReportSeverity
	reports := &fakeReportsRepo{
		listAllFn: func(_ context.Context, status *enums.ErrorReportStatus, severity *enums.ErrorReportSeverity, params pagination.Params) (repo.Page[models.ErrorReport], error) {
			gotStatus = status
			gotSeverity = severity
			return repo.Page[models.ErrorReport]{
				Items:    []models.ErrorReport{{ID: uuid.New()}},
				Envelope: pagination.BuildEnvelope(params, 1),
			}, nil
		},
	}
	svc := newReportsService(t, reports, &fakeAdminsLister{}, &fakeNotifier{})

	status := enums.ErrorReportStatusNew
	severity := enums.ErrorReportSeverityCritical
	items, envelope, err := svc.AdminList(context.Background(), AdminListParams{
		Status:   &status,
		Severity: &severity,
		Page:     pagination.Params{Page: 1, Limit: 10},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotStatus == nil || *gotStatus != status || gotSeverity == nil || *gotSeverity != severity {
		t.Fatal("filters not forwarded")
	}
	if len(items) != 1 || envelope.Total != 1 {
		t.Fatalf("unexpected page %v %+v", items, envelope)
	}
}

func TestUpdateStatus(t *testing.T) {
	reports := &fakeReportsRepo{
		updateStatus: func(_ context.Context, _ uuid.UUID, status enums.ErrorReportStatus) (bool, error) {
			return status == enums.ErrorReportStatusResolved, nil
		},
	}
	svc := newReportsService(t, reports, &fakeAdminsLister{}, &fakeNotifier{})

	if err := svc.UpdateStatus(context.Background(), uuid.New(), enums.ErrorReportStatusResolved); err != nil {
		t.Fatalf("update: %v", err)
	}
	err := svc.UpdateStatus(context.Background(), uuid.New(), enums.ErrorReportStatusDismissed)
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGet_OwnershipHidesForeignRows(t *testing.T) {
	owner := uuid.New()
	reportID := uuid.New()
	reports := &fakeReportsRepo{
		findByIDFn: func(context.Context, uuid.UUID) (*models.ErrorReport, error) {
			return &models.ErrorReport{ID: reportID, AccountID: owner}, nil
		},
	}
	svc := newReportsService(t, reports, &fakeAdminsLister{}, &fakeNotifier{})

	if _, err := svc.Get(context.Background(), owner, reportID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	_, err := svc.Get(context.Background(), uuid.New(), reportID)
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign reader, got %v", err)
	}
}
