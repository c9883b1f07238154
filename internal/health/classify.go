package health

import "strings"

// Category is the closed set of anomaly labels derived from activity text.
type Category string

const (
	CategoryNone       Category = "none"
	CategoryStall      Category = "stall"
	CategoryErrorLoop  Category = "error-loop"
	CategoryRetryStorm Category = "retry-storm"
)

// Classify derives an anomaly category from free text by case-insensitive
// substring matching. Priority order: error loop, then retry storm, then
// stall. The stall fallback only applies when neither higher-priority
// keyword matched, so text naming both a retry storm and a stall classifies
// as retry-storm.
func Classify(detail string) Category {
	text := strings.ToLower(detail)
	switch {
	case strings.Contains(text, "error loop") || strings.Contains(text, "error-loop"):
		return CategoryErrorLoop
	case strings.Contains(text, "retry storm") || strings.Contains(text, "retry-storm"):
		return CategoryRetryStorm
	case strings.Contains(text, "stall"):
		return CategoryStall
	default:
		return CategoryNone
	}
}

// ClassifyWithTelemetry prefers an explicit structured anomaly kind and only
// falls back to keyword matching when the field is absent or unrecognized.
func ClassifyWithTelemetry(detail, anomaly string) Category {
	switch Category(anomaly) {
	case CategoryStall, CategoryErrorLoop, CategoryRetryStorm, CategoryNone:
		return Category(anomaly)
	}
	return Classify(detail)
}
