package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	dbtypes "github.com/pharmadata/pharmadata-backend/pkg/db/types"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

type stubSessionsRepo struct {
	session     *models.PaymentSession
	transitions []enums.PaymentSessionStatus
	moved       bool
}

func (s *stubSessionsRepo) FindSessionByStripeID(context.Context, string) (*models.PaymentSession, error) {
	if s.session == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.session, nil
}

func (s *stubSessionsRepo) TransitionSessionWithTx(_ *gorm.DB, _ string, next enums.PaymentSessionStatus) (bool, error) {
	s.transitions = append(s.transitions, next)
	return s.moved, nil
}

func (s *stubSessionsRepo) TransitionSessionByIDWithTx(_ *gorm.DB, _ uuid.UUID, next enums.PaymentSessionStatus) (bool, error) {
	s.transitions = append(s.transitions, next)
	return s.moved, nil
}

type stubPurchasesRepo struct {
	created []*models.Purchase
}

func (s *stubPurchasesRepo) CreatePurchaseWithTx(_ *gorm.DB, purchase *models.Purchase) error {
	s.created = append(s.created, purchase)
	return nil
}

type stubSubscriptionsRepo struct {
	existing *models.Subscription
	created  []*models.Subscription
	saved    []*models.Subscription
}

func (s *stubSubscriptionsRepo) FindByStripeIDWithTx(_ *gorm.DB, stripeID string) (*models.Subscription, error) {
	if s.existing != nil && s.existing.StripeSubscriptionID == stripeID {
		return s.existing, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSubscriptionsRepo) CreateWithTx(_ *gorm.DB, sub *models.Subscription) error {
	s.created = append(s.created, sub)
	return nil
}

func (s *stubSubscriptionsRepo) SaveWithTx(_ *gorm.DB, sub *models.Subscription) error {
	s.saved = append(s.saved, sub)
	return nil
}

type stubPlansRepo struct {
	plan *models.Plan
}

func (s *stubPlansRepo) FindByID(context.Context, uuid.UUID) (*models.Plan, error) {
	if s.plan == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.plan, nil
}

type stubAccountsRepo struct {
	pointers []*uuid.UUID
}

func (s *stubAccountsRepo) SetSubscriptionWithTx(_ *gorm.DB, _ uuid.UUID, subscriptionID *uuid.UUID) error {
	s.pointers = append(s.pointers, subscriptionID)
	return nil
}

type stubNotifier struct {
	sent []enums.NotificationType
}

func (s *stubNotifier) Notify(_ context.Context, _ uuid.UUID, kind enums.NotificationType, _, _ string) error {
	s.sent = append(s.sent, kind)
	return nil
}

type stubStripeClient struct {
	sub *stripe.Subscription
}

func (s *stubStripeClient) Get(_ context.Context, id string, _ *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if s.sub != nil {
		return s.sub, nil
	}
	return &stripe.Subscription{ID: id, Status: stripe.SubscriptionStatusActive}, nil
}

func (s *stubStripeClient) Cancel(_ context.Context, id string, _ *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
	return &stripe.Subscription{ID: id}, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fixture struct {
	sessions  *stubSessionsRepo
	purchases *stubPurchasesRepo
	subs      *stubSubscriptionsRepo
	plans     *stubPlansRepo
	accounts  *stubAccountsRepo
	notifier  *stubNotifier
	stripe    *stubStripeClient
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions:  &stubSessionsRepo{},
		purchases: &stubPurchasesRepo{},
		subs:      &stubSubscriptionsRepo{},
		plans:     &stubPlansRepo{},
		accounts:  &stubAccountsRepo{},
		notifier:  &stubNotifier{},
		stripe:    &stubStripeClient{},
	}
	svc, err := NewService(ServiceParams{
		SessionsRepo:      f.sessions,
		PurchasesRepo:     f.purchases,
		SubscriptionsRepo: f.subs,
		PlansRepo:         f.plans,
		AccountsRepo:      f.accounts,
		Notifier:          f.notifier,
		StripeClient:      f.stripe,
		TransactionRunner: stubTxRunner{},
		Logger:            logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	f.service = svc
	return f
}

func subscriptionEvent(t *testing.T, eventType stripe.EventType, sub *stripe.Subscription) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("marshal subscription: %v", err)
	}
	return &stripe.Event{Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func checkoutEvent(t *testing.T, eventType stripe.EventType, cs *stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("marshal checkout session: %v", err)
	}
	return &stripe.Event{Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestHandleEvent_SubscriptionCreatedBuildsRow(t *testing.T) {
	f := newFixture(t)
	accountID := uuid.New()
	planID := uuid.New()
	f.plans.plan = &models.Plan{ID: planID, Name: "Pro", RequestsPerMonth: 10000, Active: true}

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated, &stripe.Subscription{
		ID:     "sub_new",
		Status: stripe.SubscriptionStatusActive,
		Metadata: map[string]string{
			"account_id": accountID.String(),
			"plan_id":    planID.String(),
		},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{CurrentPeriodStart: 1700000000, CurrentPeriodEnd: 1702592000}},
		},
	})

	if err := f.service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(f.subs.created) != 1 {
		t.Fatalf("expected one subscription created, got %d", len(f.subs.created))
	}
	created := f.subs.created[0]
	if created.AccountID != accountID || created.RequestLimit != 10000 || created.PlanName != "Pro" {
		t.Fatalf("unexpected subscription row %+v", created)
	}
	if created.CurrentPeriodStart.Unix() != 1700000000 || created.CurrentPeriodEnd.Unix() != 1702592000 {
		t.Fatalf("expected stripe period window, got %v..%v", created.CurrentPeriodStart, created.CurrentPeriodEnd)
	}
	if len(f.accounts.pointers) != 1 || f.accounts.pointers[0] == nil || *f.accounts.pointers[0] != created.ID {
		t.Fatal("expected account pointer set to new subscription")
	}
}

func TestHandleEvent_CheckoutCompletedSubscriptionMode(t *testing.T) {
	f := newFixture(t)
	accountID := uuid.New()
	planID := uuid.New()
	f.plans.plan = &models.Plan{ID: planID, Name: "Starter", RequestsPerMonth: 1000, Active: true}
	f.stripe.sub = &stripe.Subscription{
		ID:     "sub_from_checkout",
		Status: stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{CurrentPeriodStart: 1700000000, CurrentPeriodEnd: 1702592000}},
		},
	}

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{
		ID:   "cs_sub",
		Mode: stripe.CheckoutSessionModeSubscription,
		Metadata: map[string]string{
			"account_id": accountID.String(),
			"plan_id":    planID.String(),
		},
		Subscription: &stripe.Subscription{ID: "sub_from_checkout"},
	})

	if err := f.service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(f.subs.created) != 1 {
		t.Fatalf("expected subscription created, got %d", len(f.subs.created))
	}
	if f.subs.created[0].AccountID != accountID {
		t.Fatal("expected fallback account metadata from checkout session")
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != enums.NotificationTypeSubscription {
		t.Fatalf("expected subscription notification, got %v", f.notifier.sent)
	}
}

func TestHandleEvent_CheckoutCompletedPaymentMode(t *testing.T) {
	f := newFixture(t)
	productIDs := dbtypes.UUIDArray{uuid.New(), uuid.New()}
	f.sessions.session = &models.PaymentSession{
		ID:              uuid.New(),
		StripeSessionID: "cs_pay",
		AccountID:       uuid.New(),
		ProductIDs:      productIDs,
		Format:          enums.FileFormatZIP,
		Amount:          decimal.NewFromFloat(1.40),
		Currency:        "eur",
		Status:          enums.PaymentSessionStatusPending,
	}
	f.sessions.moved = true

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{
		ID:   "cs_pay",
		Mode: stripe.CheckoutSessionModePayment,
	})

	if err := f.service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(f.purchases.created) != 1 {
		t.Fatalf("expected purchase created, got %d", len(f.purchases.created))
	}
	purchase := f.purchases.created[0]
	if purchase.SessionID != f.sessions.session.ID || len(purchase.ProductIDs) != 2 {
		t.Fatalf("unexpected purchase %+v", purchase)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != enums.NotificationTypePurchase {
		t.Fatalf("expected purchase notification, got %v", f.notifier.sent)
	}
}

func TestHandleEvent_DuplicateCompletionCreatesNoPurchase(t *testing.T) {
	f := newFixture(t)
	f.sessions.session = &models.PaymentSession{
		ID:              uuid.New(),
		StripeSessionID: "cs_done",
		Status:          enums.PaymentSessionStatusCompleted,
	}
	f.sessions.moved = false

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{
		ID:   "cs_done",
		Mode: stripe.CheckoutSessionModePayment,
	})

	if err := f.service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(f.purchases.created) != 0 {
		t.Fatal("terminal session must not create a purchase")
	}
	if len(f.notifier.sent) != 0 {
		t.Fatal("terminal session must not notify")
	}
}

func TestHandleEvent_SubscriptionDeleted(t *testing.T) {
	f := newFixture(t)
	f.subs.existing = &models.Subscription{
		ID:                   uuid.New(),
		AccountID:            uuid.New(),
		PlanName:             "Pro",
		StripeSubscriptionID: "sub_gone",
		Status:               enums.SubscriptionStatusActive,
	}

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, &stripe.Subscription{ID: "sub_gone"})

	if err := f.service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(f.subs.saved) != 1 || f.subs.saved[0].Status != enums.SubscriptionStatusCancelled {
		t.Fatalf("expected cancelled row saved, got %+v", f.subs.saved)
	}
	if f.subs.saved[0].CancelledAt == nil {
		t.Fatal("expected cancelled_at stamped")
	}
	if len(f.accounts.pointers) != 1 || f.accounts.pointers[0] != nil {
		t.Fatal("expected account pointer cleared")
	}
}

func TestHandleEvent_InvoicePaymentFailed(t *testing.T) {
	f := newFixture(t)
	f.subs.existing = &models.Subscription{
		ID:                   uuid.New(),
		AccountID:            uuid.New(),
		PlanName:             "Pro",
		StripeSubscriptionID: "sub_late",
		Status:               enums.SubscriptionStatusActive,
	}

	// the subscription id sits under parent.subscription_details on
	// real invoice payloads
	raw, _ := json.Marshal(map[string]any{
		"id": "in_1",
		"parent": map[string]any{
			"type": "subscription_details",
			"subscription_details": map[string]any{
				"subscription": "sub_late",
			},
		},
	})
	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaymentFailed,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := f.service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(f.subs.saved) != 1 || f.subs.saved[0].Status != enums.SubscriptionStatusPaymentFailed {
		t.Fatalf("expected payment_failed saved, got %+v", f.subs.saved)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != enums.NotificationTypePayment {
		t.Fatalf("expected payment notification, got %v", f.notifier.sent)
	}
}

func TestHandleEvent_InvoiceWithoutSubscriptionParentIsIgnored(t *testing.T) {
	f := newFixture(t)

	raw, _ := json.Marshal(map[string]any{"id": "in_oneoff"})
	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaymentFailed,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := f.service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(f.subs.saved) != 0 {
		t.Fatalf("expected no subscription writes, got %+v", f.subs.saved)
	}
}

func TestHandleEvent_SessionExpired(t *testing.T) {
	f := newFixture(t)
	f.sessions.moved = true

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionExpired, &stripe.CheckoutSession{ID: "cs_old"})

	if err := f.service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(f.sessions.transitions) != 1 || f.sessions.transitions[0] != enums.PaymentSessionStatusExpired {
		t.Fatalf("expected expired transition, got %v", f.sessions.transitions)
	}
}

func TestHandleEvent_PaymentIntentFailed(t *testing.T) {
	f := newFixture(t)
	f.sessions.moved = true
	sessionID := uuid.New()

	raw, _ := json.Marshal(map[string]any{
		"id":       "pi_1",
		"metadata": map[string]string{"session_id": sessionID.String()},
	})
	event := &stripe.Event{
		Type: stripe.EventTypePaymentIntentPaymentFailed,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := f.service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(f.sessions.transitions) != 1 || f.sessions.transitions[0] != enums.PaymentSessionStatusFailed {
		t.Fatalf("expected failed transition, got %v", f.sessions.transitions)
	}
}

func TestHandleEvent_UnknownTypeAcknowledged(t *testing.T) {
	f := newFixture(t)

	event := &stripe.Event{Type: "charge.refunded", Data: &stripe.EventData{Raw: json.RawMessage(`{}`)}}
	if err := f.service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown event must be acknowledged: %v", err)
	}
	if len(f.sessions.transitions) != 0 || len(f.subs.saved) != 0 || len(f.subs.created) != 0 {
		t.Fatal("unknown event must not mutate state")
	}
}

func TestHandleEvent_NilEventRejected(t *testing.T) {
	f := newFixture(t)
	if err := f.service.HandleEvent(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}
}

func TestPeriodEndFromInterval(t *testing.T) {
	start := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if got := periodEndFromInterval(start, enums.PlanIntervalMonth); !got.Equal(start.AddDate(0, 1, 0)) {
		t.Fatalf("month interval: got %v", got)
	}
	if got := periodEndFromInterval(start, enums.PlanIntervalYear); !got.Equal(start.AddDate(1, 0, 0)) {
		t.Fatalf("year interval: got %v", got)
	}
}
