package controllers

import (
	"net/http"

	"github.com/pharmadata/pharmadata-backend/api/middleware"
	"github.com/pharmadata/pharmadata-backend/api/responses"
	"github.com/pharmadata/pharmadata-backend/api/validators"
	"github.com/pharmadata/pharmadata-backend/internal/accounts"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

type updateAccountRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

// AccountMe returns the authenticated account as materialized from the
// identity token.
func AccountMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, middleware.AccountFromContext(r.Context()))
	}
}

// AccountUpdate changes the display name.
func AccountUpdate(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateAccountRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.UpdateDisplayName(r.Context(), middleware.AccountIDFromContext(r.Context()), req.DisplayName)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}
