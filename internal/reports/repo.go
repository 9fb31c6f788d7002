package reports

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/internal/repo"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
)

// Repository handles error report persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, report *models.ErrorReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ErrorReport, error) {
	var report models.ErrorReport
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// UpdateStatus moves a report to a new triage status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ErrorReportStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ErrorReport{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByAccount returns one page of the account's reports, newest first.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID, params pagination.Params) (repo.Page[models.ErrorReport], error) {
	return repo.ListPage[models.ErrorReport](ctx, r.db, params,
		func(q *gorm.DB) *gorm.DB { return q.Where("account_id = ?", accountID) },
		func(q *gorm.DB) *gorm.DB { return q.Order("created_at DESC") },
	)
}

// ListAll returns one page across all accounts, optionally filtered by
// status and severity. Admin listing.
func (r *Repository) ListAll(ctx context.Context, status *enums.ErrorReportStatus, severity *enums.ErrorReportSeverity, params pagination.Params) (repo.Page[models.ErrorReport], error) {
	scopes := []repo.Scope{
		func(q *gorm.DB) *gorm.DB { return q.Order("created_at DESC") },
	}
	if status != nil {
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB { return q.Where("status = ?", *status) })
	}
	if severity != nil {
		scopes = append(scopes, func(q *gorm.DB) *gorm.DB { return q.Where("severity = ?", *severity) })
	}
	return repo.ListPage[models.ErrorReport](ctx, r.db, params, scopes...)
}
