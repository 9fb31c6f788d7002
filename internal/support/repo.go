package support

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/internal/repo"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
)

// Repository handles support ticket persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, ticket *models.SupportTicket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

// MarkEmailSent flips the flag after the notification email went out.
func (r *Repository) MarkEmailSent(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.SupportTicket{}).
		Where("id = ?", id).
		Update("email_sent", true).Error
}

// UpdateStatus moves the ticket to a new lifecycle status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SupportTicketStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SupportTicket{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByAccount returns one page of the account's tickets, newest first.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID, params pagination.Params) (repo.Page[models.SupportTicket], error) {
	return repo.ListPage[models.SupportTicket](ctx, r.db, params,
		func(q *gorm.DB) *gorm.DB { return q.Where("account_id = ?", accountID) },
		func(q *gorm.DB) *gorm.DB { return q.Order("created_at DESC") },
	)
}
