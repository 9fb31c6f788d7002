package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pharmadata/pharmadata-backend/api/responses"
	pkgauth "github.com/pharmadata/pharmadata-backend/pkg/auth"
	"github.com/pharmadata/pharmadata-backend/pkg/config"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

type accountResolver interface {
	EnsureFromIdentity(ctx context.Context, claims *pkgauth.IdentityClaims) (*models.Account, error)
}

// Identity verifies the platform JWT and seeds the request context with the
// local account row, creating it on first sight.
func Identity(cfg config.JWTConfig, accounts accountResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseIdentityToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthenticated, err, "invalid token"))
				return
			}

			account, err := accounts.EnsureFromIdentity(r.Context(), claims)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithAccount(r.Context(), account)
			if logg != nil {
				ctx = logg.WithAccountID(ctx, account.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects non-admin accounts. Must run after Identity.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsAdmin(r.Context()) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodePermissionDenied, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
