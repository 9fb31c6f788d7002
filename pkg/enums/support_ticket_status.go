package enums

import "fmt"

// SupportTicketStatus follows a ticket from intake to closure.
type SupportTicketStatus string

const (
	SupportTicketStatusOpen       SupportTicketStatus = "open"
	SupportTicketStatusInProgress SupportTicketStatus = "in_progress"
	SupportTicketStatusResolved   SupportTicketStatus = "resolved"
	SupportTicketStatusClosed     SupportTicketStatus = "closed"
)

var validSupportTicketStatuses = []SupportTicketStatus{
	SupportTicketStatusOpen,
	SupportTicketStatusInProgress,
	SupportTicketStatusResolved,
	SupportTicketStatusClosed,
}

// IsValid reports whether the value is known.
func (s SupportTicketStatus) IsValid() bool {
	for _, candidate := range validSupportTicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSupportTicketStatus converts raw input into a SupportTicketStatus.
func ParseSupportTicketStatus(value string) (SupportTicketStatus, error) {
	for _, candidate := range validSupportTicketStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid support ticket status %q", value)
}
