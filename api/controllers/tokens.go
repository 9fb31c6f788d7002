package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/api/middleware"
	"github.com/pharmadata/pharmadata-backend/api/responses"
	"github.com/pharmadata/pharmadata-backend/internal/tokens"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

// tokenView hides the raw credential. Only TokenIssue returns the value
// itself.
type tokenView struct {
	ID          uuid.UUID  `json:"id"`
	TokenPrefix string     `json:"token_prefix"`
	Revoked     bool       `json:"revoked"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type issuedTokenView struct {
	tokenView
	Token string `json:"token"`
}

func viewFromToken(t models.AccessToken) tokenView {
	prefix := t.Token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return tokenView{
		ID:          t.ID,
		TokenPrefix: prefix,
		Revoked:     t.Revoked,
		RevokedAt:   t.RevokedAt,
		LastUsedAt:  t.LastUsedAt,
		CreatedAt:   t.CreatedAt,
	}
}

// TokenIssue returns the caller's active API token, creating one on first
// call. This is the only endpoint that reveals the raw credential.
func TokenIssue(svc tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		token, err := svc.Issue(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, issuedTokenView{
			tokenView: viewFromToken(*token),
			Token:     token.Token,
		})
	}
}

// TokenRevoke retires the caller's active token.
func TokenRevoke(svc tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		if err := svc.Revoke(r.Context(), accountID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// TokenHistory lists the caller's tokens with the credential masked.
func TokenHistory(svc tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := middleware.AccountIDFromContext(r.Context())
		rows, err := svc.History(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]tokenView, 0, len(rows))
		for _, row := range rows {
			views = append(views, viewFromToken(row))
		}
		responses.WriteSuccess(w, views)
	}
}
