package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/pkg/enums"
)

// IdentityClaims is the typed shape of the JWT minted by the platform
// identity service. This backend verifies and trusts it; it never mints
// production tokens itself.
type IdentityClaims struct {
	AccountID     uuid.UUID         `json:"account_id"`
	Email         string            `json:"email"`
	EmailVerified bool              `json:"email_verified"`
	Role          enums.AccountRole `json:"role"`
	jwt.RegisteredClaims
}
