package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/pkg/enums"
)

// Account mirrors the platform identity record and carries the pointers
// the metering and billing flows hang off it.
type Account struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Email            string            `gorm:"column:email;not null;uniqueIndex"`
	EmailVerified    bool              `gorm:"column:email_verified;not null;default:false"`
	DisplayName      *string           `gorm:"column:display_name"`
	Role             enums.AccountRole `gorm:"column:role;not null;default:'user'"`
	CurrentTokenID   *uuid.UUID        `gorm:"column:current_token_id;type:uuid"`
	SubscriptionID   *uuid.UUID        `gorm:"column:subscription_id;type:uuid"`
	StripeCustomerID *string           `gorm:"column:stripe_customer_id;index"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
