package classifier

import (
	"math"

	"github.com/ayusman/formcoach/internal/geometry"
	"github.com/ayusman/formcoach/internal/pose"
)

// OverallVisibility is the metric present in every FormMetrics.
const OverallVisibility = "overall_visibility"

const (
	visibilityThreshold = 0.6
	visibilityMessage   = "Move so your whole body is visible to the camera"

	// fallbackScore is reported for a metric that could not be computed.
	fallbackScore = 0.5

	// metricVisibility gates the joints a single metric relies on.
	metricVisibility = 0.5
)

// Metric is one named form-quality score in [0,1]. Message is set only
// when Score is below Threshold. Fallback marks a metric whose joints could
// not be measured; its Score is a placeholder and never carries a message.
type Metric struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message,omitempty"`
	Fallback  bool    `json:"fallback,omitempty"`
}

// BelowThreshold reports whether the metric needs attention.
func (m Metric) BelowThreshold() bool {
	return !m.Fallback && m.Score < m.Threshold
}

// FormMetrics is an ordered set of metrics, unique by name.
type FormMetrics []Metric

// Get returns the metric with the given name.
func (fm FormMetrics) Get(name string) (Metric, bool) {
	for _, m := range fm {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// Issues returns the metrics that carry a feedback message, in order.
func (fm FormMetrics) Issues() []Metric {
	var out []Metric
	for _, m := range fm {
		if m.Message != "" {
			out = append(out, m)
		}
	}
	return out
}

// measure evaluates fn and turns any failure into the fallback score.
func measure(name string, threshold float64, fn func() (score float64, message string, ok bool)) (m Metric) {
	m = Metric{Name: name, Score: fallbackScore, Threshold: threshold, Fallback: true}
	defer func() {
		if recover() != nil {
			m = Metric{Name: name, Score: fallbackScore, Threshold: threshold, Fallback: true}
		}
	}()

	score, message, ok := fn()
	if !ok || math.IsNaN(score) || math.IsInf(score, 0) {
		return m
	}

	m.Score = geometry.Clamp01(score)
	m.Fallback = false
	if m.Score < threshold {
		m.Message = message
	}
	return m
}

func visibilityMetric(lms *pose.Landmarks, joints ...int) Metric {
	return measure(OverallVisibility, visibilityThreshold, func() (float64, string, bool) {
		return geometry.MeanVisibility(lms, joints...), visibilityMessage, true
	})
}

// sideJoints collects the named joints for one side.
func sideJoints(s pose.Side, joints ...func(pose.Side) int) []int {
	out := make([]int, len(joints))
	for i, j := range joints {
		out[i] = j(s)
	}
	return out
}

// bothSides collects the named joints for both sides.
func bothSides(joints ...func(pose.Side) int) []int {
	return append(sideJoints(pose.Left, joints...), sideJoints(pose.Right, joints...)...)
}

// leanFromVertical is the image-space angle between the hip->shoulder
// segment and straight up.
func leanFromVertical(shoulder, hip pose.Landmark) float64 {
	up := pose.Landmark{X: hip.X, Y: hip.Y - 1}
	return geometry.Angle2D(shoulder, hip, up)
}
