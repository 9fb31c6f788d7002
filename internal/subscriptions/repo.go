package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
)

// Repository handles subscription persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new subscription row.
func (r *Repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

// CreateWithTx is Create bound to the provided transaction.
func (r *Repository) CreateWithTx(tx *gorm.DB, sub *models.Subscription) error {
	return tx.Create(sub).Error
}

// Save persists the full subscription row.
func (r *Repository) Save(ctx context.Context, sub *models.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(sub).Error
}

// SaveWithTx is Save bound to the provided transaction.
func (r *Repository) SaveWithTx(tx *gorm.DB, sub *models.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()
	return tx.Save(sub).Error
}

// FindByID loads a subscription by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindActiveByAccount returns the account's newest active subscription.
func (r *Repository) FindActiveByAccount(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, enums.SubscriptionStatusActive).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindActiveByAccountWithTx is FindActiveByAccount bound to the transaction.
func (r *Repository) FindActiveByAccountWithTx(tx *gorm.DB, accountID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := tx.Where("account_id = ? AND status = ?", accountID, enums.SubscriptionStatusActive).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByStripeID loads a subscription by its Stripe subscription id.
func (r *Repository) FindByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("stripe_subscription_id = ?", stripeID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByStripeIDWithTx is FindByStripeID bound to the transaction.
func (r *Repository) FindByStripeIDWithTx(tx *gorm.DB, stripeID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := tx.Where("stripe_subscription_id = ?", stripeID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByAccount returns every subscription the account has held, newest first.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Subscription, error) {
	var rows []models.Subscription
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
