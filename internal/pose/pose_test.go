package pose_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ayusman/formcoach/internal/apperr"
	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/pose/posetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func encode(t *testing.T, frames ...pose.Frame) string {
	t.Helper()
	var sb strings.Builder
	for _, f := range frames {
		b, err := json.Marshal(f)
		if err != nil {
			t.Fatalf("marshal frame: %v", err)
		}
		sb.Write(b)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func collect(d pose.Detector) ([]pose.Frame, []error) {
	var frames []pose.Frame
	var errs []error
	results, errc := d.Results(), d.Errors()
	for results != nil || errc != nil {
		select {
		case f, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			frames = append(frames, f)
		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			errs = append(errs, err)
		}
	}
	return frames, errs
}

func TestFrameJSON(t *testing.T) {
	t.Run("wire format round trip", func(t *testing.T) {
		in := posetest.PushUp(120)
		in.Timestamp = time.UnixMilli(1767225600123)

		b, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !strings.Contains(string(b), `"timestamp":1767225600123`) {
			t.Errorf("expected unix millisecond timestamp in %s", b)
		}

		var out pose.Frame
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if out.World != in.World || out.Image != in.Image {
			t.Error("landmarks changed across the wire")
		}
		if !out.Timestamp.Equal(in.Timestamp) {
			t.Errorf("expected timestamp %v, got %v", in.Timestamp, out.Timestamp)
		}
	})

	t.Run("rejects wrong landmark count", func(t *testing.T) {
		var f pose.Frame
		err := json.Unmarshal([]byte(`{"world":[{"x":0,"y":0,"z":0,"visibility":1}],"image":[],"timestamp":0}`), &f)
		if !errors.Is(err, pose.ErrLandmarkCount) {
			t.Errorf("expected ErrLandmarkCount, got %v", err)
		}
	})

	t.Run("missing timestamp decodes as zero", func(t *testing.T) {
		f := posetest.Squat(150)
		b, _ := json.Marshal(f)

		var out pose.Frame
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !out.Timestamp.IsZero() {
			t.Errorf("expected zero timestamp, got %v", out.Timestamp)
		}
	})
}

func TestSide(t *testing.T) {
	if pose.Left.Shoulder() != pose.LeftShoulder || pose.Right.Ankle() != pose.RightAnkle {
		t.Error("side lookup returned the wrong joint")
	}
	if pose.Left.Opposite() != pose.Right || pose.Right.Opposite() != pose.Left {
		t.Error("opposite side mismatch")
	}
	if pose.Left.String() != "left" || pose.Right.String() != "right" {
		t.Errorf("unexpected names %s %s", pose.Left, pose.Right)
	}
}

func TestStreamDetector(t *testing.T) {
	t.Run("decodes frames in order", func(t *testing.T) {
		start := time.UnixMilli(1767225600000)
		in := posetest.Sequence(start, 33*time.Millisecond, posetest.Frames(posetest.Linear(170, 110, 5), posetest.PushUp))

		d := pose.NewStreamDetector(strings.NewReader(encode(t, in...)), pose.DefaultConfig())
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		frames, errs := collect(d)
		if err := d.Stop(); err != nil {
			t.Errorf("stop: %v", err)
		}

		if len(errs) != 0 {
			t.Errorf("unexpected errors: %v", errs)
		}
		if len(frames) != len(in) {
			t.Fatalf("expected %d frames, got %d", len(in), len(frames))
		}
		for i := range frames {
			if !frames[i].Timestamp.Equal(in[i].Timestamp) {
				t.Errorf("frame %d out of order", i)
			}
		}
	})

	t.Run("reports malformed lines and keeps going", func(t *testing.T) {
		body := encode(t, posetest.PushUp(150)) + "not json\n\n" + `{"world":[],"image":[]}` + "\n" + encode(t, posetest.PushUp(120))

		d := pose.NewStreamDetector(strings.NewReader(body), pose.DefaultConfig())
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		frames, errs := collect(d)
		_ = d.Stop()

		if len(frames) != 2 {
			t.Errorf("expected 2 frames, got %d", len(frames))
		}
		if len(errs) != 2 {
			t.Fatalf("expected 2 errors, got %v", errs)
		}
		if !errors.Is(errs[1], pose.ErrLandmarkCount) {
			t.Errorf("expected landmark count error, got %v", errs[1])
		}
	})

	t.Run("stop unblocks a pending reader", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer pw.Close()

		d := pose.NewStreamDetector(pr, pose.DefaultConfig())
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		if err := d.Start(context.Background()); !errors.Is(err, pose.ErrAlreadyStarted) {
			t.Errorf("expected ErrAlreadyStarted, got %v", err)
		}

		stopped := make(chan error, 1)
		go func() { stopped <- d.Stop() }()

		select {
		case err := <-stopped:
			if err != nil {
				t.Errorf("stop: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("stop did not return")
		}

		if _, ok := <-d.Results(); ok {
			t.Error("expected results channel to be closed")
		}
	})

	t.Run("stop before start is a no-op", func(t *testing.T) {
		d := pose.NewStreamDetector(strings.NewReader(""), pose.DefaultConfig())
		if err := d.Stop(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("implements Detector interface", func(t *testing.T) {
		var _ pose.Detector = (*pose.MockDetector)(nil)
		var _ pose.Detector = (*pose.StreamDetector)(nil)
		var _ pose.Detector = (*pose.ServiceDetector)(nil)
	})

	t.Run("replays frames then closes", func(t *testing.T) {
		in := posetest.Frames(posetest.Linear(170, 110, 4), posetest.PushUp)
		m := pose.NewMockDetector(in...)
		m.SetStreamErrors([]error{errors.New("dropped frame")})

		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		frames, errs := collect(m)
		if err := m.Stop(); err != nil {
			t.Errorf("stop: %v", err)
		}

		if len(frames) != 4 {
			t.Errorf("expected 4 frames, got %d", len(frames))
		}
		if len(errs) != 1 {
			t.Errorf("expected 1 stream error, got %d", len(errs))
		}
	})

	t.Run("returns configured start error", func(t *testing.T) {
		m := pose.NewMockDetector()
		want := errors.New("camera busy")
		m.SetStartError(want)

		if err := m.Start(context.Background()); err != want {
			t.Errorf("expected %v, got %v", want, err)
		}
		if err := m.Stop(); err != nil {
			t.Errorf("stop: %v", err)
		}
	})

	t.Run("stop interrupts replay", func(t *testing.T) {
		m := pose.NewMockDetector(posetest.Frames(posetest.Repeat(150, 100), posetest.PushUp)...)
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		<-m.Results()

		if err := m.Stop(); err != nil {
			t.Errorf("stop: %v", err)
		}
		if err := m.Stop(); err != nil {
			t.Errorf("second stop: %v", err)
		}
	})
}

func TestServiceDetectorMissingScript(t *testing.T) {
	cfg := pose.DefaultConfig()
	cfg.ScriptPath = "/nonexistent/pose_service.py"

	d := pose.NewServiceDetector(cfg)
	err := d.Start(context.Background())
	if err == nil {
		_ = d.Stop()
		t.Fatal("expected start to fail without a pose service script")
	}
	if !errors.Is(err, apperr.ErrDetectorStart) {
		t.Errorf("expected detector start error, got %v", err)
	}
}
