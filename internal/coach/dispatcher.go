package coach

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/ayusman/formcoach/internal/apperr"
)

// ErrBusy is returned by a Dispatcher that cannot accept a message right now.
// The caller keeps the repetitions and tries again on the next qualifying event.
var ErrBusy = apperr.ErrDispatchBusy

//go:generate mockgen -source=$GOFILE -destination=coachmock/dispatcher.go -package=coachmock

// Dispatcher delivers feedback to a coaching collaborator.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, msg Message) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogDispatcher writes feedback to the log.
type LogDispatcher struct {
	Level log.Level
}

// NewLogDispatcher creates a dispatcher logging at info level.
func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{Level: log.InfoLevel}
}

// Dispatch implements Dispatcher.
func (d *LogDispatcher) Dispatch(_ context.Context, msg Message) error {
	entry := log.WithFields(log.Fields{
		"session":  msg.SessionID,
		"exercise": msg.Exercise,
		"kind":     string(msg.Kind),
		"rep":      msg.RepNumber,
	})
	if len(msg.Issues) > 0 {
		entry = entry.WithField("issues", len(msg.Issues))
	}
	entry.Log(d.Level, msg.Text)
	return nil
}

// MultiDispatcher fans a message out to every dispatcher. It succeeds if at
// least one dispatcher accepts the message and returns the combined errors
// otherwise.
type MultiDispatcher []Dispatcher

// Dispatch implements Dispatcher.
func (m MultiDispatcher) Dispatch(ctx context.Context, msg Message) error {
	var errs error
	delivered := false
	for _, d := range m {
		if err := d.Dispatch(ctx, msg); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered {
		if errs != nil {
			log.WithError(errs).WithField("kind", string(msg.Kind)).Warn("feedback partially delivered")
		}
		return nil
	}
	return errs
}
