package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/internal/subscriptions"
	"github.com/pharmadata/pharmadata-backend/pkg/db"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

type sessionsRepository interface {
	FindSessionByStripeID(ctx context.Context, stripeSessionID string) (*models.PaymentSession, error)
	TransitionSessionWithTx(tx *gorm.DB, stripeSessionID string, next enums.PaymentSessionStatus) (bool, error)
	TransitionSessionByIDWithTx(tx *gorm.DB, id uuid.UUID, next enums.PaymentSessionStatus) (bool, error)
}

type purchasesRepository interface {
	CreatePurchaseWithTx(tx *gorm.DB, purchase *models.Purchase) error
}

type subscriptionsRepository interface {
	FindByStripeIDWithTx(tx *gorm.DB, stripeID string) (*models.Subscription, error)
	CreateWithTx(tx *gorm.DB, sub *models.Subscription) error
	SaveWithTx(tx *gorm.DB, sub *models.Subscription) error
}

type plansRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

type accountsRepository interface {
	SetSubscriptionWithTx(tx *gorm.DB, accountID uuid.UUID, subscriptionID *uuid.UUID) error
}

type notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, kind enums.NotificationType, title, message string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the webhook service.
type ServiceParams struct {
	SessionsRepo      sessionsRepository
	PurchasesRepo     purchasesRepository
	SubscriptionsRepo subscriptionsRepository
	PlansRepo         plansRepository
	AccountsRepo      accountsRepository
	Notifier          notifier
	StripeClient      subscriptions.StripeSubscriptionClient
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service applies Stripe webhook events to local billing state. Handler
// errors propagate so the controller can answer non-2xx and Stripe retries.
type Service struct {
	sessions  sessionsRepository
	purchases purchasesRepository
	subs      subscriptionsRepository
	plans     plansRepository
	accounts  accountsRepository
	notifier  notifier
	stripe    subscriptions.StripeSubscriptionClient
	txRunner  txRunner
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.SessionsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sessions repository required")
	}
	if params.PurchasesRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "purchases repository required")
	}
	if params.SubscriptionsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscriptions repository required")
	}
	if params.PlansRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plans repository required")
	}
	if params.AccountsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "accounts repository required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{
		sessions:  params.SessionsRepo,
		purchases: params.PurchasesRepo,
		subs:      params.SubscriptionsRepo,
		plans:     params.PlansRepo,
		accounts:  params.AccountsRepo,
		notifier:  params.Notifier,
		stripe:    params.StripeClient,
		txRunner:  params.TransactionRunner,
		logg:      params.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandleEvent dispatches one verified Stripe event. Unknown types are
// acknowledged without side effects.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "decode checkout session")
		}
		if cs.Mode == stripe.CheckoutSessionModeSubscription {
			return s.completeSubscriptionCheckout(ctx, &cs)
		}
		return s.completePaymentCheckout(ctx, &cs)
	case stripe.EventTypeCheckoutSessionExpired:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "decode checkout session")
		}
		return s.expireSession(ctx, cs.ID)
	case stripe.EventTypeCustomerSubscriptionCreated, stripe.EventTypeCustomerSubscriptionUpdated:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "decode subscription event")
		}
		_, err := s.syncSubscription(ctx, &stripeSub, uuid.Nil, uuid.Nil)
		return err
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "decode subscription event")
		}
		return s.cancelSubscription(ctx, stripeSub.ID)
	case stripe.EventTypeInvoicePaid:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "decode invoice")
		}
		subscriptionID := invoiceSubscriptionID(&inv)
		if subscriptionID == "" {
			// one-off invoice, nothing to sync
			return nil
		}
		stripeSub, err := s.stripe.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		_, err = s.syncSubscription(ctx, stripeSub, uuid.Nil, uuid.Nil)
		return err
	case stripe.EventTypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "decode invoice")
		}
		subscriptionID := invoiceSubscriptionID(&inv)
		if subscriptionID == "" {
			return nil
		}
		return s.markPaymentFailed(ctx, subscriptionID)
	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "decode payment intent")
		}
		return s.failSessionFromIntent(ctx, &intent)
	default:
		return nil
	}
}

func (s *Service) completeSubscriptionCheckout(ctx context.Context, cs *stripe.CheckoutSession) error {
	accountID, err := uuid.Parse(cs.Metadata["account_id"])
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "checkout session missing account metadata")
	}
	planID, err := uuid.Parse(cs.Metadata["plan_id"])
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "checkout session missing plan metadata")
	}
	if cs.Subscription == nil || cs.Subscription.ID == "" {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "checkout session missing subscription")
	}

	// the session payload only carries the subscription id, so fetch the
	// full object for its billing window
	stripeSub, err := s.stripe.Get(ctx, cs.Subscription.ID, &stripe.SubscriptionParams{})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}

	sub, err := s.syncSubscription(ctx, stripeSub, accountID, planID)
	if err != nil {
		return err
	}
	if sub != nil {
		s.notifyQuiet(ctx, sub.AccountID, enums.NotificationTypeSubscription,
			"Subscription active",
			fmt.Sprintf("Your %s plan is now active.", sub.PlanName))
	}
	return nil
}

func (s *Service) completePaymentCheckout(ctx context.Context, cs *stripe.CheckoutSession) error {
	session, err := s.sessions.FindSessionByStripeID(ctx, cs.ID)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment session")
	}

	var purchased bool
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.sessions.TransitionSessionWithTx(tx, cs.ID, enums.PaymentSessionStatusCompleted)
		if err != nil {
			return err
		}
		if !moved {
			// duplicate delivery or already-terminal session
			return nil
		}
		purchase := &models.Purchase{
			ID:         uuid.New(),
			AccountID:  session.AccountID,
			SessionID:  session.ID,
			ProductIDs: session.ProductIDs,
			Format:     session.Format,
			Amount:     session.Amount,
			Currency:   session.Currency,
		}
		if err := s.purchases.CreatePurchaseWithTx(tx, purchase); err != nil {
			return err
		}
		purchased = true
		return nil
	})
	if txErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "complete payment session")
	}
	if purchased {
		s.notifyQuiet(ctx, session.AccountID, enums.NotificationTypePurchase,
			"Purchase confirmed",
			fmt.Sprintf("Your order of %d product sheet(s) is ready for download.", len(session.ProductIDs)))
	}
	return nil
}

func (s *Service) expireSession(ctx context.Context, stripeSessionID string) error {
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.sessions.TransitionSessionWithTx(tx, stripeSessionID, enums.PaymentSessionStatusExpired)
		return err
	})
	if txErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "expire payment session")
	}
	return nil
}

func (s *Service) failSessionFromIntent(ctx context.Context, intent *stripe.PaymentIntent) error {
	raw := intent.Metadata["session_id"]
	if raw == "" {
		return nil
	}
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "payment intent carries malformed session id")
	}
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.sessions.TransitionSessionByIDWithTx(tx, sessionID, enums.PaymentSessionStatusFailed)
		return err
	})
	if txErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "fail payment session")
	}
	return nil
}

// syncSubscription upserts the local row from the Stripe object. Fallback
// ids cover checkout completion, where the authoritative metadata sits on
// the session rather than the subscription.
func (s *Service) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription, fallbackAccount, fallbackPlan uuid.UUID) (*models.Subscription, error) {
	if stripeSub == nil || stripeSub.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "stripe subscription required")
	}

	accountID := fallbackAccount
	if raw := stripeSub.Metadata["account_id"]; raw != "" {
		if parsed, err := uuid.Parse(raw); err == nil {
			accountID = parsed
		}
	}
	planID := fallbackPlan
	if raw := stripeSub.Metadata["plan_id"]; raw != "" {
		if parsed, err := uuid.Parse(raw); err == nil {
			planID = parsed
		}
	}

	status := mapSubscriptionStatus(stripeSub.Status)
	periodStart, periodEnd, hasPeriod := periodFromStripe(stripeSub)

	var out *models.Subscription
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.subs.FindByStripeIDWithTx(tx, stripeSub.ID)
		switch {
		case err == nil:
			existing.Status = status
			if hasPeriod {
				existing.CurrentPeriodStart = periodStart
				existing.CurrentPeriodEnd = periodEnd
			}
			if status == enums.SubscriptionStatusCancelled && existing.CancelledAt == nil {
				now := s.now()
				existing.CancelledAt = &now
			}
			if err := s.subs.SaveWithTx(tx, existing); err != nil {
				return err
			}
			out = existing
		case db.IsNotFound(err):
			if accountID == uuid.Nil || planID == uuid.Nil {
				// subscription we cannot attribute; acknowledge and move on
				s.logg.Warn(ctx, "stripe subscription without account metadata, skipping")
				return nil
			}
			plan, err := s.plans.FindByID(ctx, planID)
			if err != nil {
				if db.IsNotFound(err) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
				}
				return err
			}
			if !hasPeriod {
				periodStart = s.now()
				periodEnd = periodEndFromInterval(periodStart, plan.Interval)
			}
			created := &models.Subscription{
				ID:                   uuid.New(),
				AccountID:            accountID,
				PlanID:               plan.ID,
				PlanName:             plan.Name,
				StripeSubscriptionID: stripeSub.ID,
				Status:               status,
				RequestLimit:         plan.RequestsPerMonth,
				CurrentPeriodStart:   periodStart,
				CurrentPeriodEnd:     periodEnd,
			}
			if err := s.subs.CreateWithTx(tx, created); err != nil {
				return err
			}
			out = created
		default:
			return err
		}

		if out == nil {
			return nil
		}
		if out.Status == enums.SubscriptionStatusActive {
			return s.accounts.SetSubscriptionWithTx(tx, out.AccountID, &out.ID)
		}
		if out.Status == enums.SubscriptionStatusCancelled {
			return s.accounts.SetSubscriptionWithTx(tx, out.AccountID, nil)
		}
		return nil
	})
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "sync subscription")
	}
	return out, nil
}

func (s *Service) cancelSubscription(ctx context.Context, stripeSubID string) error {
	var cancelled *models.Subscription
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		sub, err := s.subs.FindByStripeIDWithTx(tx, stripeSubID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return err
		}
		if sub.Status == enums.SubscriptionStatusCancelled {
			return nil
		}
		now := s.now()
		sub.Status = enums.SubscriptionStatusCancelled
		sub.CancelledAt = &now
		if err := s.subs.SaveWithTx(tx, sub); err != nil {
			return err
		}
		if err := s.accounts.SetSubscriptionWithTx(tx, sub.AccountID, nil); err != nil {
			return err
		}
		cancelled = sub
		return nil
	})
	if txErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "cancel subscription")
	}
	if cancelled != nil {
		s.notifyQuiet(ctx, cancelled.AccountID, enums.NotificationTypeSubscription,
			"Subscription cancelled",
			fmt.Sprintf("Your %s plan has been cancelled.", cancelled.PlanName))
	}
	return nil
}

func (s *Service) markPaymentFailed(ctx context.Context, stripeSubID string) error {
	var failed *models.Subscription
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		sub, err := s.subs.FindByStripeIDWithTx(tx, stripeSubID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return err
		}
		if sub.Status != enums.SubscriptionStatusActive {
			return nil
		}
		sub.Status = enums.SubscriptionStatusPaymentFailed
		if err := s.subs.SaveWithTx(tx, sub); err != nil {
			return err
		}
		failed = sub
		return nil
	})
	if txErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "mark payment failed")
	}
	if failed != nil {
		s.notifyQuiet(ctx, failed.AccountID, enums.NotificationTypePayment,
			"Payment failed",
			fmt.Sprintf("The renewal payment for your %s plan failed. Please update your payment method.", failed.PlanName))
	}
	return nil
}

func (s *Service) notifyQuiet(ctx context.Context, accountID uuid.UUID, kind enums.NotificationType, title, message string) {
	if err := s.notifier.Notify(ctx, accountID, kind, title, message); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "notification_title", title), "failed to create notification")
	}
}

// invoiceSubscriptionID digs the owning subscription out of the invoice
// payload. Subscription invoices carry it under parent.subscription_details;
// one-off invoices have no parent.
func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv.Parent == nil || inv.Parent.SubscriptionDetails == nil {
		return ""
	}
	if sub := inv.Parent.SubscriptionDetails.Subscription; sub != nil {
		return sub.ID
	}
	return ""
}

func mapSubscriptionStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusCancelled
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncomplete:
		return enums.SubscriptionStatusPaymentFailed
	default:
		return enums.SubscriptionStatusActive
	}
}

func periodFromStripe(sub *stripe.Subscription) (time.Time, time.Time, bool) {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return time.Time{}, time.Time{}, false
	}
	item := sub.Items.Data[0]
	if item.CurrentPeriodStart == 0 || item.CurrentPeriodEnd == 0 {
		return time.Time{}, time.Time{}, false
	}
	return time.Unix(item.CurrentPeriodStart, 0).UTC(), time.Unix(item.CurrentPeriodEnd, 0).UTC(), true
}

func periodEndFromInterval(start time.Time, interval enums.PlanInterval) time.Time {
	switch interval {
	case enums.PlanIntervalYear:
		return start.AddDate(1, 0, 0)
	case enums.PlanIntervalLifetime:
		return start.AddDate(100, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}
