package enums

import "fmt"

// PaymentSessionStatus tracks a checkout attempt. Sessions only move
// forward: pending is the single non-terminal state.
type PaymentSessionStatus string

const (
	PaymentSessionStatusPending   PaymentSessionStatus = "pending"
	PaymentSessionStatusCompleted PaymentSessionStatus = "completed"
	PaymentSessionStatusExpired   PaymentSessionStatus = "expired"
	PaymentSessionStatusFailed    PaymentSessionStatus = "failed"
)

var validPaymentSessionStatuses = []PaymentSessionStatus{
	PaymentSessionStatusPending,
	PaymentSessionStatusCompleted,
	PaymentSessionStatusExpired,
	PaymentSessionStatusFailed,
}

// String implements fmt.Stringer.
func (s PaymentSessionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PaymentSessionStatus) IsValid() bool {
	for _, candidate := range validPaymentSessionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s PaymentSessionStatus) CanTransitionTo(next PaymentSessionStatus) bool {
	if s != PaymentSessionStatusPending {
		return false
	}
	switch next {
	case PaymentSessionStatusCompleted, PaymentSessionStatusExpired, PaymentSessionStatusFailed:
		return true
	default:
		return false
	}
}

// ParsePaymentSessionStatus converts raw input into a PaymentSessionStatus.
func ParsePaymentSessionStatus(value string) (PaymentSessionStatus, error) {
	for _, candidate := range validPaymentSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment session status %q", value)
}
