package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/pkg/db"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
)

type subscriptionsRepository interface {
	FindActiveByAccount(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error)
	SaveWithTx(tx *gorm.DB, sub *models.Subscription) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Subscription, error)
}

type accountsRepository interface {
	SetSubscriptionWithTx(tx *gorm.DB, accountID uuid.UUID, subscriptionID *uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the subscription lifecycle surface.
type Service interface {
	GetActive(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error)
	History(ctx context.Context, accountID uuid.UUID) ([]models.Subscription, error)
	Cancel(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	SubscriptionsRepo subscriptionsRepository
	AccountsRepo      accountsRepository
	StripeClient      StripeSubscriptionClient
	TransactionRunner txRunner
}

type service struct {
	subs     subscriptionsRepository
	accounts accountsRepository
	stripe   StripeSubscriptionClient
	txRunner txRunner
	now      func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.SubscriptionsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscriptions repository required")
	}
	if params.AccountsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "accounts repository required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{
		subs:     params.SubscriptionsRepo,
		accounts: params.AccountsRepo,
		stripe:   params.StripeClient,
		txRunner: params.TransactionRunner,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// GetActive returns the caller's current active subscription.
func (s *service) GetActive(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	sub, err := s.subs.FindActiveByAccount(ctx, accountID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	return sub, nil
}

// History lists every subscription the account has held.
func (s *service) History(ctx context.Context, accountID uuid.UUID) ([]models.Subscription, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	rows, err := s.subs.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	return rows, nil
}

// Cancel ends the active subscription at Stripe, then marks the local row
// cancelled and clears the account pointer. The webhook delivery of
// customer.subscription.deleted is a no-op once this has run.
func (s *service) Cancel(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.GetActive(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if _, err := s.stripe.Cancel(ctx, sub.StripeSubscriptionID, &stripe.SubscriptionCancelParams{}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel stripe subscription")
	}

	now := s.now()
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		sub.Status = enums.SubscriptionStatusCancelled
		sub.CancelledAt = &now
		if err := s.subs.SaveWithTx(tx, sub); err != nil {
			return err
		}
		return s.accounts.SetSubscriptionWithTx(tx, accountID, nil)
	})
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "persist cancellation")
	}
	return sub, nil
}
