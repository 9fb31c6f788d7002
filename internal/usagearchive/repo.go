package usagearchive

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
)

// Repository reads and stamps usage events for archival.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListUnarchived returns up to limit events that were never copied to the
// warehouse, oldest first.
func (r *Repository) ListUnarchived(ctx context.Context, limit int) ([]models.UsageEvent, error) {
	var events []models.UsageEvent
	err := r.db.WithContext(ctx).
		Where("archived_at IS NULL").
		Order("occurred_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// MarkArchived stamps archived_at on the given events.
func (r *Repository) MarkArchived(ctx context.Context, ids []uuid.UUID, archivedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.UsageEvent{}).
		Where("id IN ?", ids).
		Update("archived_at", archivedAt).Error
}
