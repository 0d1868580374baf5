// Package classifier maps body landmark frames to a smoothed up/down
// probability and a set of form-quality metrics for each supported exercise.
package classifier

import (
	"fmt"

	"github.com/ayusman/formcoach/internal/geometry"
	"github.com/ayusman/formcoach/internal/pose"
)

// Probabilities is the likelihood that the body is in the up or down
// configuration. Up + Down == 1.
type Probabilities struct {
	Up   float64 `json:"up"`
	Down float64 `json:"down"`
}

// Neutral is reported when the required joints cannot be trusted.
var Neutral = Probabilities{Up: 0.5, Down: 0.5}

func fromUp(up float64) Probabilities {
	up = geometry.Clamp01(up)
	return Probabilities{Up: up, Down: 1 - up}
}

// Position is a confirmed body configuration.
type Position int

const (
	PositionUnknown Position = iota
	PositionUp
	PositionDown
)

// String returns the position name.
func (p Position) String() string {
	switch p {
	case PositionUp:
		return "up"
	case PositionDown:
		return "down"
	}
	return "unknown"
}

// Direction is the confirmed transition that completes a repetition.
type Direction int

const (
	// DownThenUp completes a repetition when the body returns up, as in a push-up.
	DownThenUp Direction = iota
	// UpThenDown completes a repetition when the body returns down, as in a crunch.
	UpThenDown
)

// From returns the position a repetition passes through.
func (d Direction) From() Position {
	if d == UpThenDown {
		return PositionUp
	}
	return PositionDown
}

// To returns the position that completes a repetition.
func (d Direction) To() Position {
	if d == UpThenDown {
		return PositionDown
	}
	return PositionUp
}

// String returns the direction name.
func (d Direction) String() string {
	if d == UpThenDown {
		return "up_then_down"
	}
	return "down_then_up"
}

// input bundles one frame for the variant functions.
type input struct {
	world    *pose.Landmarks
	image    *pose.Landmarks
	side     pose.Side
	frontLeg pose.Side
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithWindowSize sets the number of samples averaged by Classify.
func WithWindowSize(size int) Option {
	return func(c *Classifier) {
		c.window = NewWindow(size)
	}
}

// WithFrontLeg fixes the front leg for split squats. By default the more
// visible side is used.
func WithFrontLeg(side pose.Side) Option {
	return func(c *Classifier) {
		c.frontLeg = side
		c.frontLegSet = true
	}
}

// Classifier is the per-activation state for one exercise kind.
// It is not safe for concurrent use.
type Classifier struct {
	kind        Kind
	v           *variant
	window      *Window
	frontLeg    pose.Side
	frontLegSet bool
	last        Probabilities
}

// New creates a classifier for kind.
func New(kind Kind, opts ...Option) (*Classifier, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown exercise kind %d", int(kind))
	}

	c := &Classifier{
		kind:   kind,
		v:      &variants[kind],
		window: NewWindow(DefaultWindowSize),
		last:   Neutral,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Kind returns the exercise kind.
func (c *Classifier) Kind() Kind {
	return c.kind
}

// IsDurationBased reports whether the exercise is held rather than repeated.
func (c *Classifier) IsDurationBased() bool {
	return c.v.durationBased
}

// RepDirection returns the transition that completes a repetition.
func (c *Classifier) RepDirection() Direction {
	return c.v.direction
}

// Classify computes the raw probability for the frame, pushes it into the
// smoothing window and returns the window mean. Unreliable frames push Neutral.
func (c *Classifier) Classify(world, image *pose.Landmarks) Probabilities {
	raw := Neutral
	if up, ok := c.v.raw(c.input(world, image)); ok {
		raw = fromUp(up)
	}
	c.window.Push(raw)
	c.last = c.window.Mean()
	return c.last
}

// Last returns the most recent smoothed probabilities.
func (c *Classifier) Last() Probabilities {
	return c.last
}

// FormMetrics scores the frame. PositionUnknown selects the
// position-agnostic metric set.
func (c *Classifier) FormMetrics(world, image *pose.Landmarks, pos Position) FormMetrics {
	return c.v.metrics(c.input(world, image), pos)
}

// Reset clears the smoothing window.
func (c *Classifier) Reset() {
	c.window.Reset()
	c.last = Neutral
}

func (c *Classifier) input(world, image *pose.Landmarks) input {
	in := input{
		world: world,
		image: image,
		side:  geometry.VisibleSide(world),
	}
	in.frontLeg = in.side
	if c.frontLegSet {
		in.frontLeg = c.frontLeg
	}
	return in
}

// ease maps t in [0,1] onto a quadratic ease-in-out curve, pushing values in
// the overlap band towards the extremes.
func ease(t float64) float64 {
	t = geometry.Clamp01(t)
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - 2*(1-t)*(1-t)
}

// rising is 0 at or below low, 1 at or above high, eased in between.
func rising(value, low, high float64) float64 {
	return ease(geometry.Normalize(value, low, high))
}

// falling is 1 at or below low, 0 at or above high, eased in between.
func falling(value, low, high float64) float64 {
	return ease(1 - geometry.Normalize(value, low, high))
}
