package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	pkgcheckout "github.com/pharmadata/pharmadata-backend/pkg/checkout"
	"github.com/pharmadata/pharmadata-backend/pkg/config"
	"github.com/pharmadata/pharmadata-backend/pkg/db"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	dbtypes "github.com/pharmadata/pharmadata-backend/pkg/db/types"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
)

type sessionsRepository interface {
	CreateSession(ctx context.Context, session *models.PaymentSession) error
	FindSessionByID(ctx context.Context, id uuid.UUID) (*models.PaymentSession, error)
}

type plansRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

type productsRepository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type accountsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Redirect is what a checkout call hands back to the frontend.
type Redirect struct {
	SessionID       *uuid.UUID `json:"session_id,omitempty"`
	StripeSessionID string     `json:"stripe_session_id"`
	URL             string     `json:"url"`
}

// Service starts Stripe checkout flows and reads back session state.
type Service interface {
	CreateSubscriptionCheckout(ctx context.Context, accountID, planID uuid.UUID) (*Redirect, error)
	CreateProductCheckout(ctx context.Context, accountID uuid.UUID, productIDs []uuid.UUID, format enums.FileFormat) (*Redirect, error)
	GetSession(ctx context.Context, accountID, sessionID uuid.UUID) (*models.PaymentSession, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	SessionsRepo sessionsRepository
	PlansRepo    plansRepository
	ProductsRepo productsRepository
	AccountsRepo accountsRepository
	StripeClient StripeCheckoutClient
	Config       config.CheckoutConfig
}

type service struct {
	sessions sessionsRepository
	plans    plansRepository
	products productsRepository
	accounts accountsRepository
	stripe   StripeCheckoutClient
	cfg      config.CheckoutConfig
}

// NewService builds a checkout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.SessionsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sessions repository required")
	}
	if params.PlansRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plans repository required")
	}
	if params.ProductsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "products repository required")
	}
	if params.AccountsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "accounts repository required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client required")
	}
	return &service{
		sessions: params.SessionsRepo,
		plans:    params.PlansRepo,
		products: params.ProductsRepo,
		accounts: params.AccountsRepo,
		stripe:   params.StripeClient,
		cfg:      params.Config,
	}, nil
}

// CreateSubscriptionCheckout starts a Stripe subscription checkout for the
// given plan and returns the hosted payment page URL.
func (s *service) CreateSubscriptionCheckout(ctx context.Context, accountID, planID uuid.UUID) (*Redirect, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plan")
	}
	if !plan.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	applyCustomer(params, account)
	params.AddMetadata("account_id", accountID.String())
	params.AddMetadata("plan_id", plan.ID.String())
	// carried onto the subscription object so subscription webhooks can
	// resolve the account and plan without a session lookup
	params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
		Metadata: map[string]string{
			"account_id": accountID.String(),
			"plan_id":    plan.ID.String(),
		},
	}

	stripeSession, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe session")
	}
	return &Redirect{StripeSessionID: stripeSession.ID, URL: stripeSession.URL}, nil
}

// CreateProductCheckout starts a one-time checkout for the selected product
// sheets. The local pending session row is the anchor the webhook later
// completes.
func (s *service) CreateProductCheckout(ctx context.Context, accountID uuid.UUID, productIDs []uuid.UUID, format enums.FileFormat) (*Redirect, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	if !format.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "unknown file format")
	}
	if err := pkgcheckout.ValidateSelection(productIDs); err != nil {
		return nil, err
	}

	rows, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	found := make(map[uuid.UUID]bool, len(rows))
	names := make([]string, 0, len(rows))
	for _, p := range rows {
		if !p.Published {
			continue
		}
		found[p.ID] = true
		names = append(names, p.Name)
	}
	if err := pkgcheckout.EnsureAllFound(productIDs, found); err != nil {
		return nil, err
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	count := int64(len(productIDs))
	amount := decimal.NewFromInt(count * s.cfg.UnitPriceCents).Div(decimal.NewFromInt(100))
	sessionID := uuid.New()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.cfg.Currency),
					UnitAmount: stripe.Int64(s.cfg.UnitPriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(orderLabel(names)),
					},
				},
				Quantity: stripe.Int64(count),
			},
		},
	}
	applyCustomer(params, account)
	params.AddMetadata("account_id", accountID.String())
	params.AddMetadata("session_id", sessionID.String())
	// payment_intent.payment_failed only carries the intent, so the local
	// session id rides along in its metadata
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
		Metadata: map[string]string{
			"account_id": accountID.String(),
			"session_id": sessionID.String(),
		},
	}

	stripeSession, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe session")
	}

	session := &models.PaymentSession{
		ID:              sessionID,
		StripeSessionID: stripeSession.ID,
		AccountID:       accountID,
		ProductIDs:      dbtypes.UUIDArray(productIDs),
		Format:          format,
		Amount:          amount,
		Currency:        s.cfg.Currency,
		Status:          enums.PaymentSessionStatusPending,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist session")
	}

	return &Redirect{SessionID: &sessionID, StripeSessionID: stripeSession.ID, URL: stripeSession.URL}, nil
}

// GetSession returns a session only to the account that opened it.
func (s *service) GetSession(ctx context.Context, accountID, sessionID uuid.UUID) (*models.PaymentSession, error) {
	if accountID == uuid.Nil || sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id and session id required")
	}
	session, err := s.sessions.FindSessionByID(ctx, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup session")
	}
	if session.AccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodePermissionDenied, "session belongs to another account")
	}
	return session, nil
}

func (s *service) loadAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}
	return account, nil
}

func applyCustomer(params *stripe.CheckoutSessionParams, account *models.Account) {
	if account.StripeCustomerID != nil && *account.StripeCustomerID != "" {
		params.Customer = stripe.String(*account.StripeCustomerID)
		return
	}
	params.CustomerEmail = stripe.String(account.Email)
}

func orderLabel(names []string) string {
	if len(names) == 1 {
		return "Fiche produit " + names[0]
	}
	return "Fiches produit PharmaData"
}
