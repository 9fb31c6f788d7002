package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	dbtypes "github.com/pharmadata/pharmadata-backend/pkg/db/types"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
)

// Purchase is a completed one-time product-sheet order. FileObjects holds
// the GCS object names written by the generator; signed URLs are minted
// fresh on every read.
type Purchase struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	AccountID   uuid.UUID         `gorm:"column:account_id;type:uuid;not null;index"`
	SessionID   uuid.UUID         `gorm:"column:session_id;type:uuid;not null;uniqueIndex"`
	ProductIDs  dbtypes.UUIDArray `gorm:"column:product_ids;type:uuid[]"`
	Format      enums.FileFormat  `gorm:"column:format;not null"`
	FileObjects pq.StringArray    `gorm:"column:file_objects;type:text[]"`
	Amount      decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency    string            `gorm:"column:currency;not null;default:'eur'"`
	GeneratedAt *time.Time        `gorm:"column:generated_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
