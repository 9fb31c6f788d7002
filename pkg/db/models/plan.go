package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/pkg/enums"
)

// Plan is one row of the subscription plan catalog.
type Plan struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name             string             `gorm:"column:name;not null;uniqueIndex"`
	StripePriceID    string             `gorm:"column:stripe_price_id;not null"`
	RequestsPerMonth int64              `gorm:"column:requests_per_month;not null"`
	AmountCents      int64              `gorm:"column:amount_cents;not null"`
	Currency         string             `gorm:"column:currency;not null;default:'eur'"`
	Interval         enums.PlanInterval `gorm:"column:interval;not null"`
	Active           bool               `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
