package counter

import (
	"github.com/ayusman/formcoach/internal/classifier"
)

// accumulator aggregates per-frame form metrics across one repetition.
type accumulator struct {
	order []string
	stats map[string]*metricStats
}

type metricStats struct {
	sum       float64
	n         int
	threshold float64
	worst     float64
	message   string
	// fallback is the placeholder score while no frame could be measured
	fallback float64
}

func newAccumulator() *accumulator {
	return &accumulator{stats: make(map[string]*metricStats)}
}

func (a *accumulator) add(fm classifier.FormMetrics) {
	for _, m := range fm {
		st, ok := a.stats[m.Name]
		if !ok {
			st = &metricStats{threshold: m.Threshold}
			a.stats[m.Name] = st
			a.order = append(a.order, m.Name)
		}
		if m.Fallback {
			st.fallback = m.Score
			continue
		}
		if st.n == 0 || m.Score <= st.worst {
			st.worst = m.Score
			if m.Message != "" {
				st.message = m.Message
			}
		}
		st.sum += m.Score
		st.n++
		if st.message == "" && m.Message != "" {
			st.message = m.Message
		}
	}
}

func (a *accumulator) empty() bool {
	return len(a.order) == 0
}

// snapshot returns the mean of each metric over the frames where it could be
// measured, in first-seen order. A metric never measured is reported as a
// fallback. A message is attached only when the mean is below the threshold.
func (a *accumulator) snapshot() classifier.FormMetrics {
	fm := make(classifier.FormMetrics, 0, len(a.order))
	for _, name := range a.order {
		st := a.stats[name]
		m := classifier.Metric{
			Name:      name,
			Threshold: st.threshold,
		}
		if st.n == 0 {
			m.Score = st.fallback
			m.Fallback = true
			fm = append(fm, m)
			continue
		}
		m.Score = st.sum / float64(st.n)
		if m.Score < m.Threshold {
			m.Message = st.message
		}
		fm = append(fm, m)
	}
	return fm
}

func (a *accumulator) reset() {
	a.order = a.order[:0]
	clear(a.stats)
}

// score derives the 0-10 form score and quality from aggregated metrics.
// Visibility and fallback metrics are left out.
func score(fm classifier.FormMetrics) (float64, Quality) {
	sum, n := 0.0, 0
	worst := 1.0
	for _, m := range fm {
		if m.Name == classifier.OverallVisibility || m.Fallback {
			continue
		}
		sum += m.Score
		n++
		if m.Score < worst {
			worst = m.Score
		}
	}
	if n == 0 {
		return 0, QualityUnknown
	}
	return 10 * sum / float64(n), qualityFor(worst)
}
