package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/pharmadata/pharmadata-backend/pkg/db/types"
)

// DailyUsageRollup aggregates one account's metered calls for one calendar
// day. TotalCalls always equals SuccessfulCalls + FailedCalls; the average
// latency is recomputed inside the same transaction that bumps the counts.
type DailyUsageRollup struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	AccountID       uuid.UUID                `gorm:"column:account_id;type:uuid;not null;uniqueIndex:idx_daily_rollups_account_day"`
	Day             string                   `gorm:"column:day;not null;uniqueIndex:idx_daily_rollups_account_day"`
	TotalCalls      int64                    `gorm:"column:total_calls;not null;default:0"`
	SuccessfulCalls int64                    `gorm:"column:successful_calls;not null;default:0"`
	FailedCalls     int64                    `gorm:"column:failed_calls;not null;default:0"`
	AvgLatencyMS    float64                  `gorm:"column:avg_latency_ms;not null;default:0"`
	Endpoints       dbtypes.EndpointCounters `gorm:"column:endpoints;type:jsonb"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// AccountUsageRollup is the lifetime counterpart of DailyUsageRollup,
// one row per account, updated under its own transaction.
type AccountUsageRollup struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	AccountID       uuid.UUID                `gorm:"column:account_id;type:uuid;not null;uniqueIndex:idx_account_rollups_account"`
	TotalCalls      int64                    `gorm:"column:total_calls;not null;default:0"`
	SuccessfulCalls int64                    `gorm:"column:successful_calls;not null;default:0"`
	FailedCalls     int64                    `gorm:"column:failed_calls;not null;default:0"`
	AvgLatencyMS    float64                  `gorm:"column:avg_latency_ms;not null;default:0"`
	Endpoints       dbtypes.EndpointCounters `gorm:"column:endpoints;type:jsonb"`
	FirstCallAt     *time.Time               `gorm:"column:first_call_at"`
	LastCallAt      *time.Time               `gorm:"column:last_call_at"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// RollupDay formats a timestamp as the rollup day key (UTC).
func RollupDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
