package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
)

// Repository handles usage event and rollup persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to usage operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertEventWithTx appends one usage event inside the metering transaction.
func (r *Repository) InsertEventWithTx(tx *gorm.DB, event *models.UsageEvent) error {
	return tx.Create(event).Error
}

// InsertProductViewWithTx records the first view of a product by an account.
// The unique pair index rejects repeats; callers inspect the error.
func (r *Repository) InsertProductViewWithTx(tx *gorm.DB, view *models.ProductView) error {
	return tx.Create(view).Error
}

// lockForUpdate takes a row lock so concurrent bumps on the same rollup
// serialize instead of applying stale reads. sqlite has no FOR UPDATE; its
// single-writer connection already covers the read there.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// FindDailyRollupForUpdateWithTx loads and locks the account's rollup row
// for the given day inside the metering transaction.
func (r *Repository) FindDailyRollupForUpdateWithTx(tx *gorm.DB, accountID uuid.UUID, day string) (*models.DailyUsageRollup, error) {
	var rollup models.DailyUsageRollup
	err := lockForUpdate(tx).Where("account_id = ? AND day = ?", accountID, day).First(&rollup).Error
	if err != nil {
		return nil, err
	}
	return &rollup, nil
}

// FindAccountRollupForUpdateWithTx loads and locks the account's lifetime
// rollup row inside the metering transaction.
func (r *Repository) FindAccountRollupForUpdateWithTx(tx *gorm.DB, accountID uuid.UUID) (*models.AccountUsageRollup, error) {
	var rollup models.AccountUsageRollup
	err := lockForUpdate(tx).Where("account_id = ?", accountID).First(&rollup).Error
	if err != nil {
		return nil, err
	}
	return &rollup, nil
}

// CreateDailyRollupWithTx inserts the first rollup row for an account-day.
func (r *Repository) CreateDailyRollupWithTx(tx *gorm.DB, rollup *models.DailyUsageRollup) error {
	return tx.Create(rollup).Error
}

// CreateAccountRollupWithTx inserts the account's first lifetime rollup row.
func (r *Repository) CreateAccountRollupWithTx(tx *gorm.DB, rollup *models.AccountUsageRollup) error {
	return tx.Create(rollup).Error
}

// SaveDailyRollupWithTx persists a bumped daily rollup.
func (r *Repository) SaveDailyRollupWithTx(tx *gorm.DB, rollup *models.DailyUsageRollup) error {
	rollup.UpdatedAt = time.Now().UTC()
	return tx.Save(rollup).Error
}

// SaveAccountRollupWithTx persists a bumped lifetime rollup.
func (r *Repository) SaveAccountRollupWithTx(tx *gorm.DB, rollup *models.AccountUsageRollup) error {
	rollup.UpdatedAt = time.Now().UTC()
	return tx.Save(rollup).Error
}

// CountSuccessfulEventsInWindow counts calls that consumed quota. Failed
// calls are recorded for analytics but never billed against the allowance.
func (r *Repository) CountSuccessfulEventsInWindow(ctx context.Context, accountID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UsageEvent{}).
		Where("account_id = ? AND occurred_at >= ? AND occurred_at < ? AND success = ?", accountID, from, to, true).
		Count(&count).Error
	return count, err
}

// RecentLatencies returns the latencies of the account's most recent events,
// newest first, capped at limit.
func (r *Repository) RecentLatencies(ctx context.Context, accountID uuid.UUID, limit int) ([]int64, error) {
	var latencies []int64
	err := r.db.WithContext(ctx).
		Model(&models.UsageEvent{}).
		Where("account_id = ?", accountID).
		Order("occurred_at DESC").
		Limit(limit).
		Pluck("latency_ms", &latencies).Error
	if err != nil {
		return nil, err
	}
	return latencies, nil
}

// FindAccountRollup loads the lifetime rollup without locking.
func (r *Repository) FindAccountRollup(ctx context.Context, accountID uuid.UUID) (*models.AccountUsageRollup, error) {
	var rollup models.AccountUsageRollup
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&rollup).Error; err != nil {
		return nil, err
	}
	return &rollup, nil
}

// ListDailyRollups returns the account's daily rollups for a day range,
// oldest first.
func (r *Repository) ListDailyRollups(ctx context.Context, accountID uuid.UUID, fromDay, toDay string) ([]models.DailyUsageRollup, error) {
	var rows []models.DailyUsageRollup
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND day >= ? AND day <= ?", accountID, fromDay, toDay).
		Order("day ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
