package enums

import "fmt"

// ErrorReportSeverity classifies user-submitted error reports.
type ErrorReportSeverity string

const (
	ErrorReportSeverityLow      ErrorReportSeverity = "low"
	ErrorReportSeverityMedium   ErrorReportSeverity = "medium"
	ErrorReportSeverityHigh     ErrorReportSeverity = "high"
	ErrorReportSeverityCritical ErrorReportSeverity = "critical"
)

var validErrorReportSeverities = []ErrorReportSeverity{
	ErrorReportSeverityLow,
	ErrorReportSeverityMedium,
	ErrorReportSeverityHigh,
	ErrorReportSeverityCritical,
}

// IsValid reports whether the value is known.
func (s ErrorReportSeverity) IsValid() bool {
	for _, candidate := range validErrorReportSeverities {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseErrorReportSeverity converts raw input into an ErrorReportSeverity.
func ParseErrorReportSeverity(value string) (ErrorReportSeverity, error) {
	for _, candidate := range validErrorReportSeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid error report severity %q", value)
}

// ErrorReportStatus tracks triage of an error report.
type ErrorReportStatus string

const (
	ErrorReportStatusNew           ErrorReportStatus = "new"
	ErrorReportStatusInvestigating ErrorReportStatus = "investigating"
	ErrorReportStatusResolved      ErrorReportStatus = "resolved"
	ErrorReportStatusDismissed     ErrorReportStatus = "dismissed"
)

var validErrorReportStatuses = []ErrorReportStatus{
	ErrorReportStatusNew,
	ErrorReportStatusInvestigating,
	ErrorReportStatusResolved,
	ErrorReportStatusDismissed,
}

// IsValid reports whether the value is known.
func (s ErrorReportStatus) IsValid() bool {
	for _, candidate := range validErrorReportStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseErrorReportStatus converts raw input into an ErrorReportStatus.
func ParseErrorReportStatus(value string) (ErrorReportStatus, error) {
	for _, candidate := range validErrorReportStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid error report status %q", value)
}
