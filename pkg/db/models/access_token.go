package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessToken is an opaque bearer credential for the public read API.
// Tokens are kept after revocation for history; at most one non-revoked
// row exists per account.
type AccessToken struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	AccountID  uuid.UUID  `gorm:"column:account_id;type:uuid;not null;index;uniqueIndex:idx_access_tokens_active_account,where:revoked = false"`
	Token      string     `gorm:"column:token;not null;uniqueIndex:idx_access_tokens_token"`
	Revoked    bool       `gorm:"column:revoked;not null;default:false"`
	RevokedAt  *time.Time `gorm:"column:revoked_at"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
