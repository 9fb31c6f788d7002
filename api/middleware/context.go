package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
)

type contextKey string

const (
	ctxAccount contextKey = "account"
	ctxToken   contextKey = "access_token"
)

// AccountFromContext returns the authenticated account, or nil.
func AccountFromContext(ctx context.Context) *models.Account {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxAccount).(*models.Account); ok {
		return v
	}
	return nil
}

// AccountIDFromContext returns the authenticated account id, or uuid.Nil.
func AccountIDFromContext(ctx context.Context) uuid.UUID {
	if account := AccountFromContext(ctx); account != nil {
		return account.ID
	}
	return uuid.Nil
}

// IsAdmin reports whether the authenticated account has the admin role.
func IsAdmin(ctx context.Context) bool {
	account := AccountFromContext(ctx)
	return account != nil && account.Role == enums.AccountRoleAdmin
}

// TokenFromContext returns the public API token used for the request, or nil.
func TokenFromContext(ctx context.Context) *models.AccessToken {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxToken).(*models.AccessToken); ok {
		return v
	}
	return nil
}

// WithAccount injects the authenticated account into the context.
func WithAccount(ctx context.Context, account *models.Account) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccount, account)
}

// WithToken injects the public API token into the context.
func WithToken(ctx context.Context, token *models.AccessToken) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxToken, token)
}
