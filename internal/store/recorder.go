package store

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/session"
)

// DefaultRecorderQueue is the number of events a Recorder buffers.
const DefaultRecorderQueue = 256

// Recorder persists session events on its own goroutine. It implements
// session.Observer; events arriving while the queue is full are dropped.
type Recorder struct {
	store  *Store
	events chan session.Event

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRecorder starts a recorder writing to s.
func NewRecorder(s *Store, queue int) *Recorder {
	if queue <= 0 {
		queue = DefaultRecorderQueue
	}

	r := &Recorder{
		store:  s,
		events: make(chan session.Event, queue),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// OnEvent implements session.Observer.
func (r *Recorder) OnEvent(e session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	select {
	case r.events <- e:
	default:
		log.WithFields(log.Fields{
			"session": e.SessionID,
			"event":   e.Type,
		}).Warn("recorder queue full, dropping event")
	}
}

// Close stops accepting events and waits until the queue is written.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for e := range r.events {
		if err := r.record(e); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"session": e.SessionID,
				"event":   e.Type,
			}).Error("failed to record session event")
		}
	}
}

func (r *Recorder) record(e session.Event) error {
	switch e.Type {
	case session.EventRepCompleted:
		if e.Rep == nil {
			return nil
		}
		return r.store.Repetitions().Create(&Repetition{
			SessionID:        e.SessionID,
			ExercisePosition: e.ExerciseIndex,
			Exercise:         e.Exercise,
			RepetitionData:   *e.Rep,
		})

	case session.EventFeedbackSent, session.EventFeedbackRetained:
		f := &Feedback{
			SessionID: e.SessionID,
			Exercise:  e.Exercise,
			Kind:      string(e.Feedback),
			Delivered: e.Type == session.EventFeedbackSent,
			CreatedAt: e.Time,
		}
		if e.Rep != nil {
			f.RepNumber = e.Rep.RepNumber
		}
		if e.Err != nil {
			f.Error = e.Err.Error()
		}
		return r.store.Feedback().Create(f)

	case session.EventExerciseCompleted:
		return r.store.Workouts().CompleteExercise(e.SessionID, e.ExerciseIndex, e.Held, e.Time)

	case session.EventClosed:
		return r.store.Workouts().End(e.SessionID, e.Time)
	}
	return nil
}
