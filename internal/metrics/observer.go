package metrics

import (
	"github.com/ayusman/formcoach/internal/session"
)

// OnEvent records session events. It makes the Manager a session.Observer.
func (m *Manager) OnEvent(e session.Event) {
	switch e.Type {
	case session.EventRepCompleted:
		if e.Rep == nil {
			return
		}
		m.CounterRepetitions.WithLabelValues(e.Exercise, e.Rep.Quality.String()).Inc()
		m.HistRepDuration.Observe(e.Rep.Duration.Seconds())
		m.HistFormScore.Observe(e.Rep.FormScore)
	case session.EventFeedbackSent:
		m.CounterFeedback.WithLabelValues(string(e.Feedback)).Inc()
	case session.EventFeedbackRetained:
		m.CounterFeedbackRetain.WithLabelValues(string(e.Feedback)).Inc()
	case session.EventExerciseCompleted:
		m.CounterExercisesDone.Inc()
	}
}
