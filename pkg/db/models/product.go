package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is one pharmaceutical product sheet in the catalog. CIP13 is the
// French national product code and the lookup key of the public API.
type Product struct {
	ID               uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	CIP              string         `gorm:"column:cip;not null;uniqueIndex:idx_products_cip"`
	Name             string         `gorm:"column:name;not null"`
	Slug             string         `gorm:"column:slug;not null;uniqueIndex:idx_products_slug"`
	Laboratory       string         `gorm:"column:laboratory;not null;index"`
	Categories       pq.StringArray `gorm:"column:categories;type:text[]"`
	ActiveSubstances pq.StringArray `gorm:"column:active_substances;type:text[]"`
	Description      *string        `gorm:"column:description"`
	Dosage           *string        `gorm:"column:dosage"`
	PackSize         *string        `gorm:"column:pack_size"`
	PriceCents       *int64         `gorm:"column:price_cents"`
	Reimbursement    *string        `gorm:"column:reimbursement"`
	Published        bool           `gorm:"column:published;not null;default:false"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
