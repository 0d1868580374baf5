// Package counter turns a stream of classified frames into repetitions.
package counter

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/classifier"
	"github.com/ayusman/formcoach/internal/pose"
)

// ErrDurationBased is returned when a repetition counter is requested for a
// held exercise.
var ErrDurationBased = errors.New("exercise is duration based")

// Config holds the repetition state machine settings.
type Config struct {
	// ConfirmThreshold is the smoothed probability the dominant class must
	// exceed to confirm the position that completes a repetition.
	ConfirmThreshold float64 `toml:"confirm_threshold"`

	// TurnThreshold confirms the turnaround position a repetition passes
	// through, such as the bottom of a push-up.
	TurnThreshold float64 `toml:"turn_threshold"`

	// ConfirmFrames is how many consecutive frames must agree before a
	// position change is confirmed.
	ConfirmFrames int `toml:"confirm_frames"`

	// MinRepDuration rejects cycles completed faster than this.
	MinRepDuration time.Duration `toml:"min_rep_duration"`

	// PositionAware passes the confirmed position to the classifier so it can
	// add position-specific metrics such as depth.
	PositionAware bool `toml:"position_aware"`

	// WindowSize is the classifier smoothing window.
	WindowSize int `toml:"window_size"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ConfirmThreshold: 0.65,
		TurnThreshold:    0.52,
		ConfirmFrames:    2,
		MinRepDuration:   300 * time.Millisecond,
		WindowSize:       classifier.DefaultWindowSize,
	}
}

// Option configures a RepsCounter or a HoldTimer.
type Option func(*options)

type options struct {
	now     func() time.Time
	clfOpts []classifier.Option
}

// WithClock sets the clock used for frames without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithClassifierOptions forwards options to the owned classifier.
func WithClassifierOptions(opts ...classifier.Option) Option {
	return func(o *options) {
		o.clfOpts = append(o.clfOpts, opts...)
	}
}

func newClassifier(kind classifier.Kind, window int, opts []Option) (*classifier.Classifier, func() time.Time, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	clfOpts := append([]classifier.Option{classifier.WithWindowSize(window)}, o.clfOpts...)
	clf, err := classifier.New(kind, clfOpts...)
	if err != nil {
		return nil, nil, err
	}
	return clf, o.now, nil
}

// Status is a snapshot of the counter state.
type Status struct {
	Kind          classifier.Kind          `json:"-"`
	Reps          uint32                   `json:"reps"`
	Position      classifier.Position      `json:"-"`
	Probabilities classifier.Probabilities `json:"probabilities"`
	Frames        uint64                   `json:"frames"`
	Paused        bool                     `json:"paused"`
	Closed        bool                     `json:"closed"`
}

// RepsCounter owns one classifier and detects repetitions from its smoothed
// output. It is not safe for concurrent use; frames must arrive in order.
type RepsCounter struct {
	cfg       Config
	clf       *classifier.Classifier
	direction classifier.Direction
	now       func() time.Time

	confirmed     classifier.Position
	pending       classifier.Position
	pendingFrames int
	reps          uint32
	baseline      time.Time
	frames        uint64
	acc           *accumulator
	paused        bool
	closed        bool
}

// New creates a counter for a repetition-based exercise kind.
func New(kind classifier.Kind, cfg Config, opts ...Option) (*RepsCounter, error) {
	if kind.IsDurationBased() {
		return nil, ErrDurationBased
	}
	cfg = cfg.withDefaults()

	clf, now, err := newClassifier(kind, cfg.WindowSize, opts)
	if err != nil {
		return nil, err
	}
	return &RepsCounter{
		cfg:       cfg,
		clf:       clf,
		direction: clf.RepDirection(),
		now:       now,
		acc:       newAccumulator(),
	}, nil
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.ConfirmThreshold <= 0.5 || cfg.ConfirmThreshold >= 1 {
		cfg.ConfirmThreshold = def.ConfirmThreshold
	}
	if cfg.TurnThreshold <= 0.5 || cfg.TurnThreshold >= 1 {
		cfg.TurnThreshold = def.TurnThreshold
	}
	if cfg.ConfirmFrames < 1 {
		cfg.ConfirmFrames = def.ConfirmFrames
	}
	if cfg.MinRepDuration < 0 {
		cfg.MinRepDuration = 0
	}
	if cfg.WindowSize < 1 {
		cfg.WindowSize = def.WindowSize
	}
	return cfg
}

// Kind returns the exercise kind being counted.
func (c *RepsCounter) Kind() classifier.Kind {
	return c.clf.Kind()
}

// Reps returns the number of repetitions completed since the last reset.
func (c *RepsCounter) Reps() uint32 {
	return c.reps
}

// Process classifies one frame and returns the repetition it completes, if any.
// Frames are ignored while paused or after Close.
func (c *RepsCounter) Process(frame pose.Frame) (*RepetitionData, bool) {
	if c.closed || c.paused {
		return nil, false
	}

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	if c.baseline.IsZero() {
		c.baseline = ts
	}
	c.frames++

	probs := c.clf.Classify(&frame.World, &frame.Image)

	hint := classifier.PositionUnknown
	if c.cfg.PositionAware {
		hint = c.confirmed
	}
	c.acc.add(c.clf.FormMetrics(&frame.World, &frame.Image, hint))

	candidate := c.candidate(probs)
	if candidate == classifier.PositionUnknown || candidate == c.confirmed {
		c.pending = classifier.PositionUnknown
		c.pendingFrames = 0
		return nil, false
	}

	if candidate == c.pending {
		c.pendingFrames++
	} else {
		c.pending = candidate
		c.pendingFrames = 1
	}
	if c.pendingFrames < c.cfg.ConfirmFrames {
		return nil, false
	}

	prev := c.confirmed
	c.confirmed = candidate
	c.pending = classifier.PositionUnknown
	c.pendingFrames = 0

	if prev != c.direction.From() || candidate != c.direction.To() {
		return nil, false
	}
	return c.complete(ts)
}

func (c *RepsCounter) candidate(p classifier.Probabilities) classifier.Position {
	switch {
	case p.Up > c.threshold(classifier.PositionUp):
		return classifier.PositionUp
	case p.Down > c.threshold(classifier.PositionDown):
		return classifier.PositionDown
	}
	return classifier.PositionUnknown
}

func (c *RepsCounter) threshold(pos classifier.Position) float64 {
	if pos == c.direction.From() {
		return c.cfg.TurnThreshold
	}
	return c.cfg.ConfirmThreshold
}

func (c *RepsCounter) complete(ts time.Time) (*RepetitionData, bool) {
	duration := ts.Sub(c.baseline)
	if duration < 0 {
		duration = 0
	}
	if duration < c.cfg.MinRepDuration {
		log.WithFields(log.Fields{
			"exercise": c.clf.Kind().String(),
			"duration": duration,
		}).Debug("repetition rejected as too fast")
		return nil, false
	}

	metrics := c.acc.snapshot()
	formScore, quality := score(metrics)

	c.reps++
	c.acc.reset()
	c.baseline = ts

	rep := &RepetitionData{
		RepNumber:   c.reps,
		FormScore:   formScore,
		Quality:     quality,
		Duration:    duration,
		FormMetrics: metrics,
		CompletedAt: ts,
	}

	log.WithFields(log.Fields{
		"exercise":   c.clf.Kind().String(),
		"rep":        rep.RepNumber,
		"form_score": rep.FormScore,
		"quality":    rep.Quality.String(),
		"duration":   rep.Duration,
	}).Debug("repetition completed")
	return rep, true
}

// Pause stops accepting frames and releases the smoothing and timing state.
// Repetition numbering continues after Resume.
func (c *RepsCounter) Pause() {
	c.paused = true
	c.release()
}

// Resume accepts frames again; the next frame restarts repetition timing.
func (c *RepsCounter) Resume() {
	c.paused = false
}

// Reset returns the counter to its initial state.
func (c *RepsCounter) Reset() {
	c.release()
	c.reps = 0
	c.frames = 0
	c.paused = false
}

// Close permanently stops the counter.
func (c *RepsCounter) Close() {
	c.closed = true
	c.release()
}

func (c *RepsCounter) release() {
	c.clf.Reset()
	c.confirmed = classifier.PositionUnknown
	c.pending = classifier.PositionUnknown
	c.pendingFrames = 0
	c.baseline = time.Time{}
	c.acc.reset()
}

// Status returns a snapshot of the counter state.
func (c *RepsCounter) Status() Status {
	return Status{
		Kind:          c.clf.Kind(),
		Reps:          c.reps,
		Position:      c.confirmed,
		Probabilities: c.clf.Last(),
		Frames:        c.frames,
		Paused:        c.paused,
		Closed:        c.closed,
	}
}

// HasPendingMetrics reports whether metrics have been sampled since the
// last repetition.
func (c *RepsCounter) HasPendingMetrics() bool {
	return !c.acc.empty()
}
