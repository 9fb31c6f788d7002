package tokens

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
)

// Repository handles access token persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to token operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new token row.
func (r *Repository) Create(ctx context.Context, token *models.AccessToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// CreateWithTx inserts a token row using the provided transaction.
func (r *Repository) CreateWithTx(tx *gorm.DB, token *models.AccessToken) error {
	return tx.Create(token).Error
}

// FindByID loads a token by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AccessToken, error) {
	var token models.AccessToken
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// FindByValue resolves a token by its opaque value. The unique index on
// token makes this a point lookup.
func (r *Repository) FindByValue(ctx context.Context, value string) (*models.AccessToken, error) {
	var token models.AccessToken
	if err := r.db.WithContext(ctx).Where("token = ?", value).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// FindActiveByAccount returns the account's current non-revoked token.
func (r *Repository) FindActiveByAccount(ctx context.Context, accountID uuid.UUID) (*models.AccessToken, error) {
	var token models.AccessToken
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND revoked = ?", accountID, false).
		Order("created_at DESC").
		First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// Revoke stamps the token revoked. The revoked guard makes the update a
// no-op when another request already revoked it.
func (r *Repository) Revoke(ctx context.Context, tokenID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AccessToken{}).
		Where("id = ? AND revoked = ?", tokenID, false).
		Updates(map[string]any{
			"revoked":    true,
			"revoked_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RevokeWithTx is Revoke bound to the provided transaction.
func (r *Repository) RevokeWithTx(tx *gorm.DB, tokenID uuid.UUID, now time.Time) (bool, error) {
	result := tx.Model(&models.AccessToken{}).
		Where("id = ? AND revoked = ?", tokenID, false).
		Updates(map[string]any{
			"revoked":    true,
			"revoked_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TouchLastUsed stamps the token's last use. Best effort, runs outside the
// request transaction.
func (r *Repository) TouchLastUsed(ctx context.Context, tokenID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.AccessToken{}).
		Where("id = ?", tokenID).
		Update("last_used_at", now).Error
}

// ListByAccount returns the account's tokens newest first, revoked included.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.AccessToken, error) {
	var rows []models.AccessToken
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
