package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/api/responses"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

type tokenValidator interface {
	Validate(ctx context.Context, value string) (*models.AccessToken, error)
}

type accountLoader interface {
	Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
}

// TokenAuth authenticates public API calls with an opaque bearer token and
// seeds the context with both the token and its account.
func TokenAuth(tokens tokenValidator, accounts accountLoader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing api token"))
				return
			}

			token, err := tokens.Validate(r.Context(), raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			account, err := accounts.Get(r.Context(), token.AccountID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithAccount(WithToken(r.Context(), token), account)
			if logg != nil {
				ctx = logg.WithAccountID(ctx, account.ID.String())
				ctx = logg.WithTokenID(ctx, token.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
