package counter

import (
	"errors"
	"time"

	"github.com/ayusman/formcoach/internal/classifier"
	"github.com/ayusman/formcoach/internal/pose"
)

// ErrRepetitionBased is returned when a hold timer is requested for an
// exercise counted in repetitions.
var ErrRepetitionBased = errors.New("exercise is repetition based")

// HoldConfig holds the hold timer settings.
type HoldConfig struct {
	// Threshold is the smoothed up probability above which the position counts as held.
	Threshold float64 `toml:"threshold"`

	// MaxGap caps the time credited between two consecutive frames.
	MaxGap time.Duration `toml:"max_gap"`

	WindowSize int `toml:"window_size"`
}

// DefaultHoldConfig returns a HoldConfig with sensible default values.
func DefaultHoldConfig() HoldConfig {
	return HoldConfig{
		Threshold:  0.6,
		MaxGap:     500 * time.Millisecond,
		WindowSize: classifier.DefaultWindowSize,
	}
}

// HoldStatus is a snapshot of a hold timer.
type HoldStatus struct {
	Held          time.Duration            `json:"held"`
	Holding       bool                     `json:"holding"`
	Probabilities classifier.Probabilities `json:"probabilities"`
	FormScore     float64                  `json:"form_score"`
	Quality       Quality                  `json:"quality"`
	FormMetrics   classifier.FormMetrics   `json:"form_metrics,omitempty"`
	Frames        uint64                   `json:"frames"`
	Paused        bool                     `json:"paused"`
	Closed        bool                     `json:"closed"`
}

// HoldTimer tracks how long a duration-based exercise is held. It produces no
// repetitions. It is not safe for concurrent use.
type HoldTimer struct {
	cfg HoldConfig
	clf *classifier.Classifier
	now func() time.Time

	held    time.Duration
	holding bool
	last    time.Time
	frames  uint64
	acc     *accumulator
	paused  bool
	closed  bool
}

// NewHoldTimer creates a hold timer for a duration-based exercise kind.
func NewHoldTimer(kind classifier.Kind, cfg HoldConfig, opts ...Option) (*HoldTimer, error) {
	if !kind.IsDurationBased() {
		return nil, ErrRepetitionBased
	}
	def := DefaultHoldConfig()
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MaxGap <= 0 {
		cfg.MaxGap = def.MaxGap
	}
	if cfg.WindowSize < 1 {
		cfg.WindowSize = def.WindowSize
	}

	clf, now, err := newClassifier(kind, cfg.WindowSize, opts)
	if err != nil {
		return nil, err
	}
	return &HoldTimer{
		cfg: cfg,
		clf: clf,
		now: now,
		acc: newAccumulator(),
	}, nil
}

// Kind returns the exercise kind being timed.
func (h *HoldTimer) Kind() classifier.Kind {
	return h.clf.Kind()
}

// Process classifies one frame and returns the total held time so far.
func (h *HoldTimer) Process(frame pose.Frame) time.Duration {
	if h.closed || h.paused {
		return h.held
	}

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = h.now()
	}
	h.frames++

	probs := h.clf.Classify(&frame.World, &frame.Image)
	holding := probs.Up > h.cfg.Threshold

	if holding {
		h.acc.add(h.clf.FormMetrics(&frame.World, &frame.Image, classifier.PositionUp))
		if h.holding && !h.last.IsZero() {
			gap := ts.Sub(h.last)
			if gap > h.cfg.MaxGap {
				gap = h.cfg.MaxGap
			}
			if gap > 0 {
				h.held += gap
			}
		}
	}

	h.holding = holding
	h.last = ts
	return h.held
}

// Held returns the accumulated hold time.
func (h *HoldTimer) Held() time.Duration {
	return h.held
}

// Pause stops accepting frames. Held time is kept; the hold must be
// re-established after Resume.
func (h *HoldTimer) Pause() {
	h.paused = true
	h.release()
}

// Resume accepts frames again.
func (h *HoldTimer) Resume() {
	h.paused = false
}

// Reset returns the timer to its initial state.
func (h *HoldTimer) Reset() {
	h.release()
	h.held = 0
	h.frames = 0
	h.paused = false
	h.acc.reset()
}

// Close permanently stops the timer.
func (h *HoldTimer) Close() {
	h.closed = true
	h.release()
}

func (h *HoldTimer) release() {
	h.clf.Reset()
	h.holding = false
	h.last = time.Time{}
}

// Status returns a snapshot of the timer, including the form metrics
// averaged over every held frame.
func (h *HoldTimer) Status() HoldStatus {
	fm := h.acc.snapshot()
	formScore, quality := score(fm)
	return HoldStatus{
		Held:          h.held,
		Holding:       h.holding,
		Probabilities: h.clf.Last(),
		FormScore:     formScore,
		Quality:       quality,
		FormMetrics:   fm,
		Frames:        h.frames,
		Paused:        h.paused,
		Closed:        h.closed,
	}
}
