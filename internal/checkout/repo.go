package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
)

// Repository handles payment session persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateSession inserts a new pending payment session.
func (r *Repository) CreateSession(ctx context.Context, session *models.PaymentSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// FindSessionByID loads a session by its UUID.
func (r *Repository) FindSessionByID(ctx context.Context, id uuid.UUID) (*models.PaymentSession, error) {
	var session models.PaymentSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// FindSessionByStripeID loads a session by the Stripe checkout session id.
func (r *Repository) FindSessionByStripeID(ctx context.Context, stripeSessionID string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	if err := r.db.WithContext(ctx).Where("stripe_session_id = ?", stripeSessionID).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// TransitionSession moves a session out of pending with a guarded update.
// It reports whether a row actually changed; a false return means the
// session was already terminal (or unknown) and nothing was written.
func (r *Repository) TransitionSession(ctx context.Context, stripeSessionID string, next enums.PaymentSessionStatus) (bool, error) {
	return transitionSession(r.db.WithContext(ctx), stripeSessionID, next)
}

// TransitionSessionWithTx is TransitionSession bound to the transaction.
func (r *Repository) TransitionSessionWithTx(tx *gorm.DB, stripeSessionID string, next enums.PaymentSessionStatus) (bool, error) {
	return transitionSession(tx, stripeSessionID, next)
}

func transitionSession(db *gorm.DB, stripeSessionID string, next enums.PaymentSessionStatus) (bool, error) {
	if !enums.PaymentSessionStatusPending.CanTransitionTo(next) {
		return false, nil
	}
	res := db.Model(&models.PaymentSession{}).
		Where("stripe_session_id = ? AND status = ?", stripeSessionID, enums.PaymentSessionStatusPending).
		Updates(map[string]any{
			"status":     next,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TransitionSessionByIDWithTx is the guarded transition keyed by the local
// session id instead of the Stripe one.
func (r *Repository) TransitionSessionByIDWithTx(tx *gorm.DB, id uuid.UUID, next enums.PaymentSessionStatus) (bool, error) {
	if !enums.PaymentSessionStatusPending.CanTransitionTo(next) {
		return false, nil
	}
	res := tx.Model(&models.PaymentSession{}).
		Where("id = ? AND status = ?", id, enums.PaymentSessionStatusPending).
		Updates(map[string]any{
			"status":     next,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListSessionsByAccount returns the account's sessions, newest first.
func (r *Repository) ListSessionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.PaymentSession, error) {
	var rows []models.PaymentSession
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
