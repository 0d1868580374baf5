package session

import (
	"time"

	"github.com/ayusman/formcoach/internal/coach"
	"github.com/ayusman/formcoach/internal/counter"
)

// EventType identifies a session event.
type EventType string

const (
	EventExerciseChanged   EventType = "exercise_changed"
	EventRepCompleted      EventType = "rep_completed"
	EventExerciseCompleted EventType = "exercise_completed"
	EventFeedbackSent      EventType = "feedback_sent"
	EventFeedbackRetained  EventType = "feedback_retained"
	EventPaused            EventType = "paused"
	EventResumed           EventType = "resumed"
	EventClosed            EventType = "closed"
)

// Event is delivered to observers after the state change it describes.
type Event struct {
	Type          EventType               `json:"type"`
	SessionID     string                  `json:"session_id"`
	ExerciseIndex int                     `json:"exercise_index"`
	Exercise      string                  `json:"exercise"`
	Rep           *counter.RepetitionData `json:"rep,omitempty"`
	Held          time.Duration           `json:"held,omitempty"`
	Feedback      coach.Kind              `json:"feedback,omitempty"`
	Err           error                   `json:"-"`
	Time          time.Time               `json:"time"`
}

// Observer receives session events. OnEvent runs on the session's event
// goroutine, never on the frame path, and must not call back into the session.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}
