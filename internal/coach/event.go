package coach

import (
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// EventSource is the default CloudEvents source for feedback events.
const EventSource = "formcoach/coach"

const eventTypePrefix = "com.formcoach.feedback."

// EventType returns the CloudEvents type for a message kind.
func EventType(k Kind) string {
	return eventTypePrefix + string(k)
}

// NewEvent wraps msg in a CloudEvent v1.0 with JSON data. The event id is
// the message id.
func NewEvent(source string, msg Message) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()
	e.SetSpecVersion("1.0")
	e.SetID(msg.ID)
	e.SetType(EventType(msg.Kind))
	e.SetSource(source)
	e.SetSubject(msg.SessionID)
	if !msg.CreatedAt.IsZero() {
		e.SetTime(msg.CreatedAt)
	}

	if err := e.SetData(cloudevents.ApplicationJSON, msg); err != nil {
		return e, err
	}
	return e, nil
}
