// Package session orchestrates a workout: an ordered list of exercises, the
// counter for the active one, and the feedback raised by completed repetitions.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/classifier"
	"github.com/ayusman/formcoach/internal/coach"
	"github.com/ayusman/formcoach/internal/counter"
	"github.com/ayusman/formcoach/internal/pose"
)

var (
	ErrClosed      = errors.New("session closed")
	ErrNoCounter   = errors.New("no counter available")
	ErrNoExercises = errors.New("session has no exercises")
	ErrOutOfRange  = errors.New("exercise index out of range")
)

// Exercise is one entry of a workout.
type Exercise struct {
	Name           string        `json:"name"`
	TargetReps     uint32        `json:"target_reps,omitempty"`
	TargetDuration time.Duration `json:"target_duration,omitempty"`
}

// Progress tracks one exercise of the session.
type Progress struct {
	Exercise
	Kind        string        `json:"kind,omitempty"`
	Tracked     bool          `json:"tracked"`
	Reps        uint32        `json:"reps"`
	Held        time.Duration `json:"held,omitempty"`
	Completed   bool          `json:"completed"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Record is a completed repetition with the exercise it belongs to.
type Record struct {
	ExerciseIndex int                    `json:"exercise_index"`
	Exercise      string                 `json:"exercise"`
	Rep           counter.RepetitionData `json:"rep"`
}

// Config holds the session tunables.
type Config struct {
	Counter         counter.Config     `toml:"counter"`
	Hold            counter.HoldConfig `toml:"hold"`
	Policy          Policy             `toml:"policy"`
	CacheSize       int                `toml:"cache_size"`
	HistorySize     int                `toml:"history_size"`
	QueueSize       int                `toml:"queue_size"`
	EventBuffer     int                `toml:"event_buffer"`
	DispatchTimeout time.Duration      `toml:"dispatch_timeout"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Counter:         counter.DefaultConfig(),
		Hold:            counter.DefaultHoldConfig(),
		Policy:          DefaultPolicy(),
		CacheSize:       DefaultCacheSize,
		HistorySize:     5,
		QueueSize:       8,
		EventBuffer:     64,
		DispatchTimeout: 5 * time.Second,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.Policy.PraiseScore <= 0 {
		cfg.Policy.PraiseScore = def.Policy.PraiseScore
	}
	if cfg.Policy.PraiseInterval == 0 {
		cfg.Policy.PraiseInterval = def.Policy.PraiseInterval
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.HistorySize < 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = def.DispatchTimeout
	}
	return cfg
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithDispatcher sets where feedback is delivered. Without one, repetitions
// stay cached.
func WithDispatcher(d coach.Dispatcher) Option {
	return func(s *Session) {
		s.dispatcher = d
	}
}

// WithObservers registers session event observers.
func WithObservers(obs ...Observer) Option {
	return func(s *Session) {
		s.observers = append(s.observers, obs...)
	}
}

// WithClock sets the clock used for timestamps and frames without one.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithCounterOptions passes options to every counter the session creates.
func WithCounterOptions(opts ...counter.Option) Option {
	return func(s *Session) {
		s.counterOpts = append(s.counterOpts, opts...)
	}
}

// FrameResult describes what one frame did to the session.
type FrameResult struct {
	ExerciseIndex int                      `json:"exercise_index"`
	Exercise      string                   `json:"exercise"`
	Tracked       bool                     `json:"tracked"`
	Paused        bool                     `json:"paused,omitempty"`
	Probabilities classifier.Probabilities `json:"probabilities"`
	Position      string                   `json:"position,omitempty"`
	Reps          uint32                   `json:"reps"`
	Held          time.Duration            `json:"held,omitempty"`
	Rep           *counter.RepetitionData  `json:"rep,omitempty"`
	Feedback      coach.Kind               `json:"feedback,omitempty"`
	Completed     bool                     `json:"completed,omitempty"`
}

// Status is a snapshot of the session.
type Status struct {
	ID         string              `json:"id"`
	CreatedAt  time.Time           `json:"created_at"`
	Index      int                 `json:"index"`
	Exercise   string              `json:"exercise"`
	Kind       string              `json:"kind,omitempty"`
	Tracked    bool                `json:"tracked"`
	Paused     bool                `json:"paused"`
	Closed     bool                `json:"closed"`
	Progress   []Progress          `json:"progress"`
	Counter    *counter.Status     `json:"counter,omitempty"`
	Hold       *counter.HoldStatus `json:"hold,omitempty"`
	CachedReps int                 `json:"cached_reps"`
}

type job struct {
	msg   coach.Message
	rep   counter.RepetitionData
	seq   uint64
	index int
}

// Session is safe for concurrent use. Frames and navigation share one lock, so
// an exercise switch never races a frame on the outgoing counter.
type Session struct {
	id          string
	cfg         Config
	exercises   []Exercise
	createdAt   time.Time
	now         func() time.Time
	counterOpts []counter.Option
	dispatcher  coach.Dispatcher
	observers   []Observer

	mu         sync.Mutex
	index      int
	kind       classifier.Kind
	reps       *counter.RepsCounter
	hold       *counter.HoldTimer
	progress   []Progress
	cache      *RepCache
	records    []Record
	lastPraise uint32
	paused     bool
	closed     bool

	ctx      context.Context
	cancel   context.CancelFunc
	jobs     chan job
	events   chan Event
	workerWG sync.WaitGroup
	eventsWG sync.WaitGroup
}

// New creates a session and activates its first exercise.
func New(exercises []Exercise, cfg Config, opts ...Option) (*Session, error) {
	if len(exercises) == 0 {
		return nil, ErrNoExercises
	}

	s := &Session{
		cfg:       cfg.withDefaults(),
		exercises: append([]Exercise(nil), exercises...),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.createdAt = s.now()
	s.counterOpts = append([]counter.Option{counter.WithClock(s.now)}, s.counterOpts...)
	s.cache = NewRepCache(s.cfg.CacheSize)
	s.progress = make([]Progress, len(s.exercises))
	for i, ex := range s.exercises {
		s.progress[i].Exercise = ex
		if kind, ok := classifier.ParseExerciseName(ex.Name); ok {
			s.progress[i].Kind = kind.String()
			s.progress[i].Tracked = true
		}
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	if s.dispatcher != nil {
		s.jobs = make(chan job, s.cfg.QueueSize)
		s.workerWG.Add(1)
		go s.dispatchLoop()
	}
	if len(s.observers) > 0 {
		s.events = make(chan Event, s.cfg.EventBuffer)
		s.eventsWG.Add(1)
		go s.notifyLoop()
	}

	s.mu.Lock()
	s.activate(0)
	s.mu.Unlock()

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Exercises returns the workout in order.
func (s *Session) Exercises() []Exercise {
	return append([]Exercise(nil), s.exercises...)
}

// ProcessFrame feeds one frame to the active counter. It never blocks on
// feedback delivery. ErrNoCounter is returned while the current exercise is
// not recognised.
func (s *Session) ProcessFrame(frame pose.Frame) (FrameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return FrameResult{}, ErrClosed
	}

	res := FrameResult{
		ExerciseIndex: s.index,
		Exercise:      s.exercises[s.index].Name,
		Paused:        s.paused,
	}
	if s.paused {
		res.Tracked = s.reps != nil || s.hold != nil
		return res, nil
	}

	p := &s.progress[s.index]
	switch {
	case s.reps != nil:
		rep, ok := s.reps.Process(frame)
		st := s.reps.Status()
		res.Tracked = true
		res.Probabilities = st.Probabilities
		res.Position = st.Position.String()
		res.Reps = st.Reps
		if ok {
			res.Rep = rep
			res.Feedback = s.onRep(*rep)
		}
	case s.hold != nil:
		res.Tracked = true
		res.Held = s.hold.Process(frame)
		res.Probabilities = s.hold.Status().Probabilities
		p.Held = res.Held
		if ex := s.exercises[s.index]; ex.TargetDuration > 0 && res.Held >= ex.TargetDuration && !p.Completed {
			s.completeLocked()
		}
	default:
		return res, ErrNoCounter
	}
	res.Completed = p.Completed
	return res, nil
}

func (s *Session) onRep(rep counter.RepetitionData) coach.Kind {
	ex := s.exercises[s.index]
	p := &s.progress[s.index]
	p.Reps = rep.RepNumber

	item := s.cache.Add(ex.Name, rep)
	s.records = append(s.records, Record{ExerciseIndex: s.index, Exercise: ex.Name, Rep: rep})

	kind := s.cfg.Policy.Decide(rep, s.lastPraise)
	if kind == coach.KindPraise {
		s.lastPraise = rep.RepNumber
	}

	log.WithFields(log.Fields{
		"session":  s.id,
		"exercise": ex.Name,
		"rep":      rep.RepNumber,
		"score":    rep.FormScore,
		"feedback": kind,
	}).Debug("repetition completed")

	s.emit(Event{Type: EventRepCompleted, Rep: &rep, Feedback: kind})
	s.enqueue(kind, item.Seq, rep)

	if ex.TargetReps > 0 && rep.RepNumber >= ex.TargetReps && !p.Completed {
		s.completeLocked()
	}
	return kind
}

func (s *Session) enqueue(kind coach.Kind, seq uint64, rep counter.RepetitionData) {
	if s.jobs == nil {
		return
	}

	var history []counter.RepetitionData
	if kind.Detailed() {
		history = s.cache.Before(seq, s.cfg.HistorySize)
	}
	msg := coach.NewMessage(kind, s.id, s.exercises[s.index].Name, rep, history)

	select {
	case s.jobs <- job{msg: msg, rep: rep, seq: seq, index: s.index}:
	default:
		log.WithFields(log.Fields{
			"session": s.id,
			"rep":     rep.RepNumber,
		}).Warn("feedback queue full, repetition stays cached")
		s.emit(Event{Type: EventFeedbackRetained, Rep: &rep, Feedback: kind})
	}
}

// Next activates the following exercise.
func (s *Session) Next() error {
	return s.move(func(i int) int { return i + 1 })
}

// Previous activates the preceding exercise.
func (s *Session) Previous() error {
	return s.move(func(i int) int { return i - 1 })
}

// Select activates the exercise at index i.
func (s *Session) Select(i int) error {
	return s.move(func(int) int { return i })
}

// Restart reactivates the current exercise with a fresh counter.
func (s *Session) Restart() error {
	return s.move(func(i int) int { return i })
}

func (s *Session) move(target func(int) int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	i := target(s.index)
	if i < 0 || i >= len(s.exercises) {
		return ErrOutOfRange
	}
	s.activate(i)
	return nil
}

// activate disposes the current counter and starts the exercise at index i.
// Callers hold s.mu.
func (s *Session) activate(i int) {
	s.release()
	s.index = i
	s.lastPraise = 0

	ex := s.exercises[i]
	logger := log.WithFields(log.Fields{
		"session":  s.id,
		"index":    i,
		"exercise": ex.Name,
	})
	if n := s.cache.Reset(); n > 0 {
		logger.WithField("cached", n).Info("discarding cached repetitions of the previous exercise")
	}

	p := &s.progress[i]
	p.Reps = 0
	p.Held = 0

	kind, ok := classifier.ParseExerciseName(ex.Name)
	s.kind = kind
	if ok {
		var err error
		if kind.IsDurationBased() {
			s.hold, err = counter.NewHoldTimer(kind, s.cfg.Hold, s.counterOpts...)
		} else {
			s.reps, err = counter.New(kind, s.cfg.Counter, s.counterOpts...)
		}
		if err != nil {
			logger.WithError(err).Warn("failed to create counter")
			ok = false
		}
	}

	if !ok {
		logger.Info("exercise activated, no counter available")
	} else {
		logger.WithField("kind", kind).Info("exercise activated")
		if s.paused {
			s.pauseCounter()
		}
	}
	s.emit(Event{Type: EventExerciseChanged})
}

func (s *Session) release() {
	if s.reps != nil {
		s.reps.Close()
		s.reps = nil
	}
	if s.hold != nil {
		s.hold.Close()
		s.hold = nil
	}
}

func (s *Session) pauseCounter() {
	if s.reps != nil {
		s.reps.Pause()
	}
	if s.hold != nil {
		s.hold.Pause()
	}
}

// Pause stops frame processing. Repetition numbering continues after Resume.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.paused {
		return nil
	}
	s.paused = true
	s.pauseCounter()
	s.emit(Event{Type: EventPaused})
	return nil
}

// Resume continues a paused session.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.paused {
		return nil
	}
	s.paused = false
	if s.reps != nil {
		s.reps.Resume()
	}
	if s.hold != nil {
		s.hold.Resume()
	}
	s.emit(Event{Type: EventResumed})
	return nil
}

// Complete marks the current exercise as completed.
func (s *Session) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.progress[s.index].Completed {
		s.completeLocked()
	}
	return nil
}

func (s *Session) completeLocked() {
	p := &s.progress[s.index]
	at := s.now()
	p.Completed = true
	p.CompletedAt = &at

	log.WithFields(log.Fields{
		"session":  s.id,
		"exercise": p.Name,
		"reps":     p.Reps,
		"held":     p.Held,
	}).Info("exercise completed")
	s.emit(Event{Type: EventExerciseCompleted, Held: p.Held})
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ID:         s.id,
		CreatedAt:  s.createdAt,
		Index:      s.index,
		Exercise:   s.exercises[s.index].Name,
		Paused:     s.paused,
		Closed:     s.closed,
		Progress:   append([]Progress(nil), s.progress...),
		CachedReps: s.cache.Len(),
	}
	if s.reps != nil || s.hold != nil {
		st.Tracked = true
		st.Kind = s.kind.String()
	}
	if s.reps != nil {
		cs := s.reps.Status()
		st.Counter = &cs
	}
	if s.hold != nil {
		hs := s.hold.Status()
		st.Hold = &hs
	}
	return st
}

// Repetitions returns every repetition completed in the session.
func (s *Session) Repetitions() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// CachedReps returns the repetitions still waiting for detailed feedback.
func (s *Session) CachedReps() []CachedRep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Items()
}

// Close stops the session. Queued feedback is abandoned and observers receive
// a final EventClosed. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.release()
	if s.jobs != nil {
		close(s.jobs)
	}
	s.mu.Unlock()

	s.cancel()
	s.workerWG.Wait()

	s.mu.Lock()
	s.emit(Event{Type: EventClosed})
	s.mu.Unlock()

	if s.events != nil {
		close(s.events)
		s.eventsWG.Wait()
	}

	log.WithField("session", s.id).Info("session closed")
	return nil
}

// emit queues an event for observers without blocking. Callers hold s.mu.
func (s *Session) emit(e Event) {
	if s.events == nil {
		return
	}
	e.SessionID = s.id
	if e.Exercise == "" {
		e.ExerciseIndex = s.index
		e.Exercise = s.exercises[s.index].Name
	}
	if e.Time.IsZero() {
		e.Time = s.now()
	}

	select {
	case s.events <- e:
	default:
		log.WithFields(log.Fields{
			"session": s.id,
			"event":   e.Type,
		}).Warn("observer queue full, dropping event")
	}
}

func (s *Session) notifyLoop() {
	defer s.eventsWG.Done()
	for e := range s.events {
		for _, o := range s.observers {
			o.OnEvent(e)
		}
	}
}
