package files

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/internal/repo"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
)

// Repository handles purchase persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreatePurchase inserts a purchase row.
func (r *Repository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

// CreatePurchaseWithTx is CreatePurchase bound to the provided transaction.
func (r *Repository) CreatePurchaseWithTx(tx *gorm.DB, purchase *models.Purchase) error {
	return tx.Create(purchase).Error
}

// FindPurchaseByID loads a purchase by its UUID.
func (r *Repository) FindPurchaseByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// FindPurchaseBySession loads the purchase created for a payment session.
func (r *Repository) FindPurchaseBySession(ctx context.Context, sessionID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// SetFileObjects records the generated GCS object names on a purchase.
func (r *Repository) SetFileObjects(ctx context.Context, purchaseID uuid.UUID, objects []string, generatedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", purchaseID).
		Updates(map[string]any{
			"file_objects": pq.StringArray(objects),
			"generated_at": generatedAt,
		}).Error
}

// ListPurchasesByAccount returns one page of the account's purchases,
// newest first.
func (r *Repository) ListPurchasesByAccount(ctx context.Context, accountID uuid.UUID, params pagination.Params) (repo.Page[models.Purchase], error) {
	return repo.ListPage[models.Purchase](ctx, r.db, params,
		func(q *gorm.DB) *gorm.DB { return q.Where("account_id = ?", accountID) },
		func(q *gorm.DB) *gorm.DB { return q.Order("created_at DESC") },
	)
}
