package counter

import (
	"time"

	"github.com/ayusman/formcoach/internal/classifier"
)

// Quality is the overall rating of a repetition.
type Quality int

const (
	QualityUnknown Quality = iota
	QualityPoor
	QualityFair
	QualityGood
	QualityExcellent
)

// String returns the quality name.
func (q Quality) String() string {
	switch q {
	case QualityPoor:
		return "poor"
	case QualityFair:
		return "fair"
	case QualityGood:
		return "good"
	case QualityExcellent:
		return "excellent"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Quality) UnmarshalText(b []byte) error {
	*q = ParseQuality(string(b))
	return nil
}

// ParseQuality is the inverse of Quality.String.
func ParseQuality(s string) Quality {
	switch s {
	case "poor":
		return QualityPoor
	case "fair":
		return QualityFair
	case "good":
		return QualityGood
	case "excellent":
		return QualityExcellent
	}
	return QualityUnknown
}

// qualityFor rates a repetition by its worst metric.
func qualityFor(worst float64) Quality {
	switch {
	case worst >= 0.9:
		return QualityExcellent
	case worst >= 0.75:
		return QualityGood
	case worst >= 0.5:
		return QualityFair
	}
	return QualityPoor
}

// RepetitionData describes one completed repetition. It is immutable once emitted.
type RepetitionData struct {
	RepNumber   uint32                 `json:"rep_number"`
	FormScore   float64                `json:"form_score"`
	Quality     Quality                `json:"quality"`
	Duration    time.Duration          `json:"duration"`
	FormMetrics classifier.FormMetrics `json:"form_metrics"`
	CompletedAt time.Time              `json:"completed_at"`
}

// Issues returns the metrics of the repetition that carry feedback.
func (r RepetitionData) Issues() []classifier.Metric {
	return r.FormMetrics.Issues()
}
