package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductView marks that an account has viewed a product through the
// metered API. The unique pair index is what makes first-view dedup hold
// under concurrent requests.
type ProductView struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	AccountID     uuid.UUID `gorm:"column:account_id;type:uuid;not null;uniqueIndex:idx_product_views_pair"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_product_views_pair"`
	FirstViewedAt time.Time `gorm:"column:first_viewed_at;not null"`
}
