package store

import (
	"context"
	"testing"
	"time"

	"github.com/ayusman/formcoach/internal/coach"
	"github.com/ayusman/formcoach/internal/counter"
	"github.com/ayusman/formcoach/internal/pose/posetest"
	"github.com/ayusman/formcoach/internal/session"
)

func TestRecorderPersistsSession(t *testing.T) {
	s := newTestStore(t)
	createWorkout(t, s, "w1")
	rec := NewRecorder(s, 0)

	sess, err := session.New(
		[]session.Exercise{{Name: "Push-Ups", TargetReps: 2}},
		session.DefaultConfig(),
		session.WithID("w1"),
		session.WithObservers(rec),
		session.WithDispatcher(coach.DispatcherFunc(func(context.Context, coach.Message) error { return nil })),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cycle := posetest.Concat(posetest.Linear(170, 110, 10), posetest.Linear(116, 170, 10))
	frames := posetest.Sequence(start, 50*time.Millisecond, posetest.Frames(posetest.Concat(cycle, cycle), posetest.PushUp))
	for _, f := range frames {
		if _, err := sess.ProcessFrame(f); err != nil {
			t.Fatalf("ProcessFrame failed: %v", err)
		}
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("failed to close session: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("failed to close recorder: %v", err)
	}

	reps, err := s.Repetitions().ListBySession("w1")
	if err != nil {
		t.Fatalf("ListBySession failed: %v", err)
	}
	if len(reps) != 2 {
		t.Fatalf("expected 2 repetitions, got %d", len(reps))
	}
	if reps[0].RepNumber != 1 || reps[1].RepNumber != 2 || reps[0].Quality != counter.QualityExcellent {
		t.Errorf("unexpected repetitions %+v", reps)
	}

	feedback, err := s.Feedback().ListBySession("w1")
	if err != nil {
		t.Fatalf("ListBySession failed: %v", err)
	}
	if len(feedback) != 2 || feedback[0].Kind != "praise" || feedback[1].Kind != "count" || !feedback[1].Delivered {
		t.Errorf("unexpected feedback %+v", feedback)
	}

	w, err := s.Workouts().GetByID("w1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if w.EndedAt == nil {
		t.Error("workout should be ended")
	}
	if !w.Exercises[0].Completed {
		t.Error("push-ups should be completed after the target")
	}
}

func TestRecorderIgnoresEventsAfterClose(t *testing.T) {
	s := newTestStore(t)
	rec := NewRecorder(s, 1)

	if err := rec.Close(); err != nil {
		t.Fatalf("failed to close recorder: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	rec.OnEvent(session.Event{Type: session.EventClosed, SessionID: "w1"})
}
