package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/api/responses"
	"github.com/pharmadata/pharmadata-backend/internal/usage"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

const ctxMeter contextKey = "meter_info"

// meterInfo lets the handler tag the request with the product it served,
// so repeat views of the same product stay free.
type meterInfo struct {
	productID *uuid.UUID
}

// SetMeteredProduct records which product the handler resolved. Only has
// an effect under the Metering middleware.
func SetMeteredProduct(ctx context.Context, productID uuid.UUID) {
	if info, ok := ctx.Value(ctxMeter).(*meterInfo); ok {
		id := productID
		info.productID = &id
	}
}

type usageRecorder interface {
	Record(ctx context.Context, input usage.RecordInput) (*usage.RecordResult, error)
	GetRemaining(ctx context.Context, accountID uuid.UUID) (*usage.Remaining, error)
}

// Metering enforces the monthly quota before serving and writes the usage
// event after the response. A call counts as successful when the handler
// answered below 400. Must run after TokenAuth.
func Metering(recorder usageRecorder, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := AccountFromContext(r.Context())
			token := TokenFromContext(r.Context())
			if account == nil || token == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing api token"))
				return
			}

			remaining, err := recorder.GetRemaining(r.Context(), account.ID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if remaining.Remaining <= 0 {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeRateLimited, "monthly quota exhausted"))
				return
			}

			info := &meterInfo{}
			ctx := context.WithValue(r.Context(), ctxMeter, info)

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			if _, err := recorder.Record(ctx, usage.RecordInput{
				AccountID: account.ID,
				TokenID:   token.ID,
				Endpoint:  r.URL.Path,
				LatencyMS: time.Since(start).Milliseconds(),
				Success:   rec.status < http.StatusBadRequest,
				ProductID: info.productID,
			}); err != nil && logg != nil {
				logg.Error(ctx, "usage record failed", err)
			}
		})
	}
}
