package webhooks

import (
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/pharmadata/pharmadata-backend/api/responses"
	stripewebhook "github.com/pharmadata/pharmadata-backend/internal/webhooks/stripe"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
	pkgstripe "github.com/pharmadata/pharmadata-backend/pkg/stripe"
)

const maxWebhookBody = 1 << 20

// StripeWebhook verifies the signature, deduplicates the delivery and
// hands the event to the webhook service. Replayed deliveries are
// acknowledged without re-processing.
func StripeWebhook(client *pkgstripe.Client, svc *stripewebhook.Service, guard *stripewebhook.IdempotencyGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "read webhook body"))
			return
		}

		event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), client.SigningSecret())
		if err != nil {
			// Stripe expects 400 on signature failure and retries
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInvalidArgument, err, "verify webhook signature"))
			return
		}

		ctx = logg.WithFields(ctx, map[string]any{
			"stripe_event_id":   event.ID,
			"stripe_event_type": string(event.Type),
		})

		seen, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if seen {
			logg.Info(ctx, "duplicate webhook delivery, skipping")
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			// clear the mark so Stripe's retry is not swallowed
			_ = guard.Delete(ctx, event.ID)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
