package enums

import "fmt"

// PlanInterval is the billing cadence of a subscription plan.
type PlanInterval string

const (
	PlanIntervalMonth    PlanInterval = "month"
	PlanIntervalYear     PlanInterval = "year"
	PlanIntervalLifetime PlanInterval = "lifetime"
)

var validPlanIntervals = []PlanInterval{
	PlanIntervalMonth,
	PlanIntervalYear,
	PlanIntervalLifetime,
}

// IsValid reports whether the value is known.
func (p PlanInterval) IsValid() bool {
	for _, candidate := range validPlanIntervals {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanInterval converts raw input into a PlanInterval.
func ParsePlanInterval(value string) (PlanInterval, error) {
	for _, candidate := range validPlanIntervals {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan interval %q", value)
}
