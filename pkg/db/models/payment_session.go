package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/pharmadata/pharmadata-backend/pkg/db/types"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
)

// PaymentSession records one initiated checkout attempt for product sheets.
// It only transitions forward from pending; the guarded repository update
// enforces that.
type PaymentSession struct {
	ID              uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	StripeSessionID string                     `gorm:"column:stripe_session_id;not null;uniqueIndex"`
	AccountID       uuid.UUID                  `gorm:"column:account_id;type:uuid;not null;index"`
	ProductIDs      dbtypes.UUIDArray          `gorm:"column:product_ids;type:uuid[]"`
	Format          enums.FileFormat           `gorm:"column:format;not null"`
	Amount          decimal.Decimal            `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        string                     `gorm:"column:currency;not null;default:'eur'"`
	Status          enums.PaymentSessionStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
