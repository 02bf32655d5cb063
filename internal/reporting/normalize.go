package reporting

import "strings"

// StandardSeverity defines canonical severity levels used in report
// summaries. The analysis tool's own labels stay untouched on the finding.
type StandardSeverity string

const (
	SeverityCritical StandardSeverity = "CRITICAL"
	SeverityHigh     StandardSeverity = "HIGH"
	SeverityMedium   StandardSeverity = "MEDIUM"
	SeverityLow      StandardSeverity = "LOW"
	SeverityInfo     StandardSeverity = "INFO"
	SeverityUnknown  StandardSeverity = "UNKNOWN"
)

// NormalizeSeverity maps a raw tool severity string to a StandardSeverity.
// This is the central place to absorb variations across tool outputs.
func NormalizeSeverity(raw string) StandardSeverity {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CRITICAL", "FATAL":
		return SeverityCritical
	case "HIGH", "IMPORTANT", "ERROR":
		return SeverityHigh
	case "MEDIUM", "MODERATE", "WARN", "WARNING":
		return SeverityMedium
	case "LOW":
		return SeverityLow
	case "INFO", "INFORMATIONAL", "NEGLIGIBLE":
		return SeverityInfo
	default:
		return SeverityUnknown
	}
}
