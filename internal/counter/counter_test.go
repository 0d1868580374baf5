package counter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/formcoach/internal/classifier"
	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/pose/posetest"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// pushUpCycle is a full down/up cycle: 170 down to 110 over ten frames and
// back up to 170 over the next ten.
func pushUpCycle() []float64 {
	return posetest.Concat(posetest.Linear(170, 110, 10), posetest.Linear(116, 170, 10))
}

func run(c *RepsCounter, frames []pose.Frame) []*RepetitionData {
	var reps []*RepetitionData
	for _, f := range frames {
		if rep, ok := c.Process(f); ok {
			reps = append(reps, rep)
		}
	}
	return reps
}

func newCounter(t *testing.T, kind classifier.Kind) *RepsCounter {
	t.Helper()
	c, err := New(kind, DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestNewRejectsDurationBased(t *testing.T) {
	_, err := New(classifier.Plank, DefaultConfig())
	assert.ErrorIs(t, err, ErrDurationBased)

	_, err = New(classifier.Kind(99), DefaultConfig())
	assert.Error(t, err)
}

func TestPushUpCycle(t *testing.T) {
	c := newCounter(t, classifier.PushUp)
	frames := posetest.Sequence(start, 50*time.Millisecond, posetest.Frames(pushUpCycle(), posetest.PushUp))

	reps := run(c, frames)

	require.Len(t, reps, 1)
	rep := reps[0]
	assert.Equal(t, uint32(1), rep.RepNumber)
	assert.Equal(t, uint32(1), c.Reps())
	assert.Equal(t, 850*time.Millisecond, rep.Duration)
	assert.InDelta(t, 10, rep.FormScore, 1e-6)
	assert.Equal(t, QualityExcellent, rep.Quality)
	assert.Empty(t, rep.Issues())

	vis, ok := rep.FormMetrics.Get(classifier.OverallVisibility)
	require.True(t, ok)
	assert.InDelta(t, 1, vis.Score, 1e-9)
}

func TestOcclusionMidRepetition(t *testing.T) {
	angles := posetest.Concat(posetest.Linear(170, 110, 10), posetest.Linear(110, 170, 10))

	for _, hidden := range [][2]int{{8, 12}, {7, 11}} {
		frames := posetest.Frames(angles, posetest.PushUp)
		for i := hidden[0]; i <= hidden[1]; i++ {
			frames[i] = posetest.WithVisibility(frames[i], 0.3, pose.LeftWrist, pose.RightWrist)
		}
		frames = posetest.Sequence(start, 50*time.Millisecond, frames)

		c := newCounter(t, classifier.PushUp)
		reps := run(c, frames)

		require.Len(t, reps, 1, "wrists hidden on frames %d..%d", hidden[0], hidden[1])
		assert.Equal(t, uint32(1), reps[0].RepNumber)
		assert.Equal(t, 850*time.Millisecond, reps[0].Duration)

		vis, ok := reps[0].FormMetrics.Get(classifier.OverallVisibility)
		require.True(t, ok)
		assert.Less(t, vis.Score, 1.0)
	}
}

func TestSideViewIgnoresUnmeasuredMetrics(t *testing.T) {
	far := []int{pose.RightShoulder, pose.RightElbow, pose.RightWrist, pose.RightHip, pose.RightKnee, pose.RightAnkle}
	frames := posetest.Frames(pushUpCycle(), func(a float64) pose.Frame {
		return posetest.WithVisibility(posetest.PushUp(a), 0.1, far...)
	})

	c := newCounter(t, classifier.PushUp)
	reps := run(c, posetest.Sequence(start, 50*time.Millisecond, frames))

	require.Len(t, reps, 1)
	rep := reps[0]
	for _, name := range []string{"hand_width", "elbow_symmetry"} {
		m, ok := rep.FormMetrics.Get(name)
		require.True(t, ok, name)
		assert.True(t, m.Fallback, name)
		assert.Empty(t, m.Message, name)
	}
	align, ok := rep.FormMetrics.Get("body_alignment")
	require.True(t, ok)
	assert.False(t, align.Fallback)

	assert.InDelta(t, 10, rep.FormScore, 1e-6)
	assert.Equal(t, QualityExcellent, rep.Quality)
	assert.Empty(t, rep.Issues())
}

func TestTurnThresholdDefaults(t *testing.T) {
	cfg := Config{ConfirmThreshold: 0.7, TurnThreshold: 0.4}.withDefaults()
	assert.Equal(t, 0.7, cfg.ConfirmThreshold)
	assert.Equal(t, DefaultConfig().TurnThreshold, cfg.TurnThreshold)
}

func TestLowVisibilityNeverCounts(t *testing.T) {
	c := newCounter(t, classifier.PushUp)

	var angles []float64
	for i := 0; i < 25; i++ {
		angles = append(angles, pushUpCycle()...)
	}
	frames := posetest.Frames(angles, func(a float64) pose.Frame {
		return posetest.WithVisibility(posetest.PushUp(a), 0.2)
	})
	require.Len(t, frames, 500)

	reps := run(c, posetest.Sequence(start, 33*time.Millisecond, frames))

	assert.Empty(t, reps)
	assert.Equal(t, uint32(0), c.Reps())
	st := c.Status()
	assert.InDelta(t, 0.5, st.Probabilities.Up, 1e-9)
	assert.Equal(t, classifier.PositionUnknown, st.Position)
}

func TestNumberingAndDurations(t *testing.T) {
	c := newCounter(t, classifier.PushUp)

	angles := posetest.Concat(pushUpCycle(), pushUpCycle())
	frames := posetest.Frames(angles, posetest.PushUp)
	// second cycle is twice as slow
	for i := range frames {
		if i < 20 {
			frames[i].Timestamp = start.Add(time.Duration(i) * 50 * time.Millisecond)
		} else {
			frames[i].Timestamp = start.Add(time.Second + time.Duration(i-20)*100*time.Millisecond)
		}
	}

	reps := run(c, frames)

	require.Len(t, reps, 2)
	for i, rep := range reps {
		assert.Equal(t, uint32(i+1), rep.RepNumber)
		assert.GreaterOrEqual(t, rep.Duration, time.Duration(0))
	}
	assert.Equal(t, 850*time.Millisecond, reps[0].Duration)
	assert.Equal(t, 1850*time.Millisecond, reps[1].Duration)
	assert.Greater(t, reps[1].Duration, reps[0].Duration)

	c.Reset()
	assert.Equal(t, uint32(0), c.Reps())

	reps = run(c, posetest.Sequence(start.Add(time.Minute), 50*time.Millisecond, posetest.Frames(pushUpCycle(), posetest.PushUp)))
	require.Len(t, reps, 1)
	assert.Equal(t, uint32(1), reps[0].RepNumber)
}

func TestRejectsTooFastCycle(t *testing.T) {
	c := newCounter(t, classifier.PushUp)
	frames := posetest.Sequence(start, 10*time.Millisecond, posetest.Frames(pushUpCycle(), posetest.PushUp))

	assert.Empty(t, run(c, frames))
	assert.Equal(t, uint32(0), c.Reps())
}

func TestResetTwiceIsInitialState(t *testing.T) {
	c := newCounter(t, classifier.Squat)
	initial := c.Status()

	c.Reset()
	c.Reset()

	assert.Equal(t, initial, c.Status())
	assert.False(t, c.HasPendingMetrics())

	run(c, posetest.Frames([]float64{170, 150}, posetest.Squat))
	assert.True(t, c.HasPendingMetrics())

	c.Reset()
	c.Reset()
	assert.Equal(t, initial, c.Status())
	assert.False(t, c.HasPendingMetrics())
}

func TestDirections(t *testing.T) {
	tests := []struct {
		name   string
		kind   classifier.Kind
		frames []pose.Frame
		want   int
	}{
		{
			name:   "squat",
			kind:   classifier.Squat,
			frames: posetest.Frames([]float64{170, 150, 130, 110, 90, 90, 90, 110, 130, 150, 170, 170, 170}, posetest.Squat),
			want:   12,
		},
		{
			name: "crunch",
			kind: classifier.Crunch,
			frames: posetest.Frames([]float64{175, 165, 150, 135, 135, 135, 150, 165, 175, 175, 175}, func(a float64) pose.Frame {
				return posetest.Crunch(a, 135, 90)
			}),
			want: 10,
		},
		{
			name: "reverse crunch",
			kind: classifier.ReverseCrunch,
			frames: posetest.Frames([]float64{115, 100, 80, 55, 55, 55, 80, 100, 115, 115, 115, 115, 115}, func(a float64) pose.Frame {
				return posetest.Crunch(175, a, 90)
			}),
			want: 11,
		},
		{
			name:   "superman",
			kind:   classifier.Superman,
			frames: posetest.Frames([]float64{0, 0, 5, 10, 15, 15, 15, 10, 5, 0, 0, 0, 0, 0}, posetest.Superman),
			want:   12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCounter(t, tt.kind)
			frames := posetest.Sequence(start, 100*time.Millisecond, tt.frames)

			completed := -1
			for i, f := range frames {
				if _, ok := c.Process(f); ok {
					require.Equal(t, -1, completed, "more than one repetition")
					completed = i
				}
			}
			assert.Equal(t, tt.want, completed)
		})
	}
}

func TestPauseKeepsNumbering(t *testing.T) {
	c := newCounter(t, classifier.PushUp)
	reps := run(c, posetest.Sequence(start, 50*time.Millisecond, posetest.Frames(pushUpCycle(), posetest.PushUp)))
	require.Len(t, reps, 1)

	c.Pause()
	assert.True(t, c.Status().Paused)
	_, ok := c.Process(posetest.PushUp(110))
	assert.False(t, ok)
	assert.Equal(t, uint64(20), c.Status().Frames)

	c.Resume()
	later := start.Add(time.Minute)
	reps = run(c, posetest.Sequence(later, 50*time.Millisecond, posetest.Frames(pushUpCycle(), posetest.PushUp)))
	require.Len(t, reps, 1)
	assert.Equal(t, uint32(2), reps[0].RepNumber)
	// timing restarts with the first frame after Resume
	assert.Equal(t, 850*time.Millisecond, reps[0].Duration)
}

func TestClosedIgnoresFrames(t *testing.T) {
	c := newCounter(t, classifier.PushUp)
	c.Close()

	assert.Empty(t, run(c, posetest.Sequence(start, 50*time.Millisecond, posetest.Frames(pushUpCycle(), posetest.PushUp))))
	assert.True(t, c.Status().Closed)
	assert.Equal(t, uint64(0), c.Status().Frames)
}

func TestZeroTimestampUsesClock(t *testing.T) {
	now := start
	c, err := New(classifier.PushUp, DefaultConfig(), WithClock(func() time.Time {
		now = now.Add(50 * time.Millisecond)
		return now
	}))
	require.NoError(t, err)

	reps := run(c, posetest.Frames(pushUpCycle(), posetest.PushUp))

	require.Len(t, reps, 1)
	assert.Equal(t, 850*time.Millisecond, reps[0].Duration)
	assert.Equal(t, start.Add(18*50*time.Millisecond), reps[0].CompletedAt)
}

func TestPositionAwareAddsDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PositionAware = true
	c, err := New(classifier.PushUp, cfg)
	require.NoError(t, err)

	reps := run(c, posetest.Sequence(start, 50*time.Millisecond, posetest.Frames(pushUpCycle(), posetest.PushUp)))

	require.Len(t, reps, 1)
	_, ok := reps[0].FormMetrics.Get("depth")
	assert.True(t, ok)

	plain := newCounter(t, classifier.PushUp)
	reps = run(plain, posetest.Sequence(start, 50*time.Millisecond, posetest.Frames(pushUpCycle(), posetest.PushUp)))
	require.Len(t, reps, 1)
	_, ok = reps[0].FormMetrics.Get("depth")
	assert.False(t, ok)
}
