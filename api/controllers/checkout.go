package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/api/middleware"
	"github.com/pharmadata/pharmadata-backend/api/responses"
	"github.com/pharmadata/pharmadata-backend/api/validators"
	"github.com/pharmadata/pharmadata-backend/internal/checkout"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

type subscriptionCheckoutRequest struct {
	PlanID uuid.UUID `json:"plan_id" validate:"required"`
}

type productCheckoutRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids" validate:"required,min=1,max=50"`
	Format     string      `json:"format" validate:"required,oneof=pdf json zip"`
}

type sessionLister interface {
	ListSessionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.PaymentSession, error)
}

// CheckoutSubscription starts a Stripe subscription checkout and returns
// the hosted payment page url.
func CheckoutSubscription(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		var req subscriptionCheckoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		redirect, err := svc.CreateSubscriptionCheckout(r.Context(), accountID, req.PlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, redirect)
	}
}

// CheckoutProducts starts a one-time checkout for a selection of product
// sheets in the requested export format.
func CheckoutProducts(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		var req productCheckoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		format, err := enums.ParseFileFormat(req.Format)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "invalid format"))
			return
		}
		redirect, err := svc.CreateProductCheckout(r.Context(), accountID, req.ProductIDs, format)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, redirect)
	}
}

// CheckoutSessionGet returns one of the caller's payment sessions.
func CheckoutSessionGet(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		sessionID, err := validators.ParseUUIDParam(r, "sessionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.GetSession(r.Context(), accountID, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// CheckoutSessionList returns the caller's payment sessions, newest first.
func CheckoutSessionList(repo sessionLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		sessions, err := repo.ListSessionsByAccount(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessions)
	}
}
