package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
)

// Repository handles account persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to account operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create persists a new account row.
func (r *Repository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// FindByID loads an account by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByEmail loads an account by its normalized email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// Update persists the full account row.
func (r *Repository) Update(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(account).Error
}

// SetCurrentToken points the account at its active access token, or clears
// the pointer when tokenID is nil.
func (r *Repository) SetCurrentToken(ctx context.Context, accountID uuid.UUID, tokenID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"current_token_id": tokenID,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// SetCurrentTokenWithTx is SetCurrentToken bound to the provided transaction.
func (r *Repository) SetCurrentTokenWithTx(tx *gorm.DB, accountID uuid.UUID, tokenID *uuid.UUID) error {
	return tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"current_token_id": tokenID,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// SetSubscription points the account at its current subscription row.
func (r *Repository) SetSubscription(ctx context.Context, accountID uuid.UUID, subscriptionID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"subscription_id": subscriptionID,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// SetSubscriptionWithTx is SetSubscription bound to the provided transaction.
func (r *Repository) SetSubscriptionWithTx(tx *gorm.DB, accountID uuid.UUID, subscriptionID *uuid.UUID) error {
	return tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"subscription_id": subscriptionID,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// SetStripeCustomerID records the Stripe customer created for this account.
func (r *Repository) SetStripeCustomerID(ctx context.Context, accountID uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"stripe_customer_id": customerID,
			"updated_at":         time.Now().UTC(),
		}).Error
}

// FindByStripeCustomerID resolves the account owning a Stripe customer.
func (r *Repository) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// ListAdmins returns every admin account, used for critical report fan-out.
func (r *Repository) ListAdmins(ctx context.Context) ([]models.Account, error) {
	var admins []models.Account
	if err := r.db.WithContext(ctx).Where("role = ?", enums.AccountRoleAdmin).Find(&admins).Error; err != nil {
		return nil, err
	}
	return admins, nil
}
