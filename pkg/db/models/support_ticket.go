package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/pkg/enums"
)

// SupportTicket is a user-filed support request. The row commits before
// the notification email goes out; a failed send never deletes it.
type SupportTicket struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	AccountID uuid.UUID                 `gorm:"column:account_id;type:uuid;not null;index"`
	Email     string                    `gorm:"column:email;not null"`
	Subject   string                    `gorm:"column:subject;not null"`
	Body      string                    `gorm:"column:body;not null"`
	Status    enums.SupportTicketStatus `gorm:"column:status;not null;default:'open'"`
	EmailSent bool                      `gorm:"column:email_sent;not null;default:false"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
