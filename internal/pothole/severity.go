package pothole

import "fmt"

// Severity is a coarse size bucket for a pothole.
type Severity string

const (
	SeveritySmall  Severity = "small"
	SeverityMedium Severity = "medium"
	SeverityLarge  Severity = "large"
)

// Severities lists every tier in ascending order.
var Severities = []Severity{SeveritySmall, SeverityMedium, SeverityLarge}

// Default tier boundaries in px². They assume the resolution of the survey
// footage and are not normalised to frame size.
const (
	DefaultMediumArea = 5000.0
	DefaultLargeArea  = 15000.0
)

// SeverityThresholds holds the lower bound (inclusive) of the medium and
// large tiers.
type SeverityThresholds struct {
	MediumArea float64
	LargeArea  float64
}

// DefaultSeverityThresholds returns the 5000/15000 px² boundaries.
func DefaultSeverityThresholds() SeverityThresholds {
	return SeverityThresholds{MediumArea: DefaultMediumArea, LargeArea: DefaultLargeArea}
}

// Validate checks that the tiers are ordered.
func (t SeverityThresholds) Validate() error {
	if t.MediumArea <= 0 {
		return fmt.Errorf("medium area threshold must be positive, got %v", t.MediumArea)
	}
	if t.LargeArea <= t.MediumArea {
		return fmt.Errorf("large area threshold %v must exceed medium threshold %v", t.LargeArea, t.MediumArea)
	}
	return nil
}

// Classify maps a bounding-box area to its tier.
func (t SeverityThresholds) Classify(area float64) Severity {
	switch {
	case area >= t.LargeArea:
		return SeverityLarge
	case area >= t.MediumArea:
		return SeverityMedium
	default:
		return SeveritySmall
	}
}
