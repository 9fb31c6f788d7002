package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/pkg/enums"
)

// ErrorReport is a user-submitted problem report about catalog data or
// the API. Critical reports fan out a notification to admins on intake.
type ErrorReport struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	AccountID uuid.UUID                 `gorm:"column:account_id;type:uuid;not null;index"`
	Severity  enums.ErrorReportSeverity `gorm:"column:severity;not null"`
	Status    enums.ErrorReportStatus   `gorm:"column:status;not null;default:'new'"`
	Message   string                    `gorm:"column:message;not null"`
	Context   *string                   `gorm:"column:context"`
	ProductID *uuid.UUID                `gorm:"column:product_id;type:uuid"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
