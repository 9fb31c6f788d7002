package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageEvent records one call to a metered endpoint. Rows are append-only
// and never updated, except for archived_at which the archiver stamps once
// the row has been copied to the warehouse.
type UsageEvent struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	AccountID  uuid.UUID  `gorm:"column:account_id;type:uuid;not null;index:idx_usage_events_account_time"`
	TokenID    uuid.UUID  `gorm:"column:token_id;type:uuid;not null"`
	Endpoint   string     `gorm:"column:endpoint;not null"`
	OccurredAt time.Time  `gorm:"column:occurred_at;not null;index:idx_usage_events_account_time"`
	LatencyMS  int64      `gorm:"column:latency_ms;not null"`
	Success    bool       `gorm:"column:success;not null"`
	ProductID  *uuid.UUID `gorm:"column:product_id;type:uuid"`
	ArchivedAt *time.Time `gorm:"column:archived_at;index"`
}
