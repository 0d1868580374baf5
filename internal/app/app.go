// Package app wires sessions to their collaborators: feedback dispatch,
// history storage, metrics and pose detectors.
package app

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/ayusman/formcoach/internal/classifier"
	"github.com/ayusman/formcoach/internal/coach"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/session"
	"github.com/ayusman/formcoach/internal/store"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Config holds configuration options for the application.
type Config struct {
	// Store keeps repetition history. Nil disables persistence.
	Store *store.Store
	// Dispatcher receives feedback for every session. Nil keeps reps cached.
	Dispatcher coach.Dispatcher
	Metrics    *metrics.Manager
	Session    session.Config
	// RecorderQueue bounds the events waiting to be stored.
	RecorderQueue int
}

// App owns the open sessions.
type App struct {
	config   Config
	metrics  *metrics.Manager
	recorder *store.Recorder

	mu       sync.RWMutex
	sessions map[string]*session.Session
	closed   bool
}

// New creates an App. A nil Metrics manager gets a private registry.
func New(config Config) *App {
	m := config.Metrics
	if m == nil {
		m = metrics.NewTestManager()
	}

	a := &App{
		config:   config,
		metrics:  m,
		sessions: make(map[string]*session.Session),
	}
	if config.Store != nil {
		a.recorder = store.NewRecorder(config.Store, config.RecorderQueue)
	}
	return a
}

// Metrics returns the metrics manager.
func (a *App) Metrics() *metrics.Manager {
	return a.metrics
}

// Store returns the history store, nil when persistence is disabled.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// CreateSession starts a session for the given workout.
func (a *App) CreateSession(exercises []session.Exercise) (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, session.ErrClosed
	}

	opts := []session.Option{session.WithObservers(a.metrics)}
	if a.config.Dispatcher != nil {
		opts = append(opts, session.WithDispatcher(a.config.Dispatcher))
	}
	if a.recorder != nil {
		opts = append(opts, session.WithObservers(a.recorder))
	}

	s, err := session.New(exercises, a.config.Session, opts...)
	if err != nil {
		return nil, err
	}

	if a.config.Store != nil {
		if err := a.config.Store.Workouts().Create(workoutFor(s)); err != nil {
			s.Close()
			return nil, fmt.Errorf("store session: %w", err)
		}
	}

	a.sessions[s.ID()] = s
	a.metrics.GaugeActiveSessions.Inc()

	log.WithFields(log.Fields{
		"session":   s.ID(),
		"exercises": len(exercises),
	}).Info("session created")
	return s, nil
}

func workoutFor(s *session.Session) *store.Workout {
	w := &store.Workout{ID: s.ID(), CreatedAt: s.CreatedAt()}
	for _, ex := range s.Exercises() {
		rec := store.Exercise{
			Name:           ex.Name,
			TargetReps:     ex.TargetReps,
			TargetDuration: ex.TargetDuration,
		}
		if kind, ok := classifier.ParseExerciseName(ex.Name); ok {
			rec.Kind = kind.String()
		}
		w.Exercises = append(w.Exercises, rec)
	}
	return w
}

// Session returns an open session.
func (a *App) Session(id string) (*session.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Sessions returns the open sessions, oldest first.
func (a *App) Sessions() []*session.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*session.Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID() < out[j].ID()
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out
}

// EndSession closes a session and forgets it.
func (a *App) EndSession(id string) error {
	a.mu.Lock()
	s, ok := a.sessions[id]
	delete(a.sessions, id)
	a.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	a.metrics.GaugeActiveSessions.Dec()
	return s.Close()
}

// ProcessFrame feeds a frame to a session and records frame metrics. source
// labels where the frame came from.
func (a *App) ProcessFrame(id string, frame pose.Frame, source string) (session.FrameResult, error) {
	s, err := a.Session(id)
	if err != nil {
		return session.FrameResult{}, err
	}

	start := time.Now()
	res, err := s.ProcessFrame(frame)
	a.metrics.HistFrameDuration.Observe(time.Since(start).Seconds())
	a.metrics.CounterFrames.WithLabelValues(source).Inc()
	if res.Tracked && !res.Paused && res.Probabilities == classifier.Neutral {
		a.metrics.CounterNeutralFrames.Inc()
	}
	return res, err
}

// Close ends every session and flushes the recorder. The store itself is
// left open.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	sessions := a.sessions
	a.sessions = make(map[string]*session.Session)
	a.mu.Unlock()

	var err error
	for _, s := range sessions {
		a.metrics.GaugeActiveSessions.Dec()
		err = multierr.Append(err, s.Close())
	}
	if a.recorder != nil {
		err = multierr.Append(err, a.recorder.Close())
	}
	return err
}
