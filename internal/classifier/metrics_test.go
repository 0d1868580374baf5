package classifier

import (
	"math"
	"testing"

	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/pose/posetest"
)

func metricsFor(t *testing.T, k Kind, f pose.Frame, pos Position) FormMetrics {
	t.Helper()
	return mustNew(t, k).FormMetrics(&f.World, &f.Image, pos)
}

func mustMetric(t *testing.T, fm FormMetrics, name string) Metric {
	t.Helper()
	m, ok := fm.Get(name)
	if !ok {
		t.Fatalf("metric %q missing from %+v", name, fm)
	}
	return m
}

func TestVisibilityMetricAlwaysFirst(t *testing.T) {
	for _, k := range Kinds() {
		for _, pos := range []Position{PositionUnknown, PositionUp, PositionDown} {
			fm := metricsFor(t, k, fixture(k), pos)
			if len(fm) == 0 || fm[0].Name != OverallVisibility {
				t.Fatalf("%s/%s: expected %s first, got %+v", k, pos, OverallVisibility, fm)
			}

			names := make(map[string]bool)
			for _, m := range fm {
				if names[m.Name] {
					t.Errorf("%s/%s: duplicate metric %q", k, pos, m.Name)
				}
				names[m.Name] = true
				if m.Score < 0 || m.Score > 1 {
					t.Errorf("%s/%s: %s out of range: %v", k, pos, m.Name, m.Score)
				}
				if m.Message != "" && !m.BelowThreshold() {
					t.Errorf("%s/%s: %s has a message above threshold", k, pos, m.Name)
				}
			}
		}
	}
}

func TestSumoStanceWidth(t *testing.T) {
	fm := metricsFor(t, SumoSquat, posetest.SumoSquat(95, 1.55), PositionUnknown)

	m := mustMetric(t, fm, "sumo_stance_width")
	if m.Score < 0.95 {
		t.Errorf("expected near-ideal stance score, got %v", m.Score)
	}
	if m.Message != "" {
		t.Errorf("expected no message, got %q", m.Message)
	}

	narrow := mustMetric(t, metricsFor(t, SumoSquat, posetest.SumoSquat(120, 1.0), PositionUnknown), "sumo_stance_width")
	if narrow.Score >= narrow.Threshold {
		t.Errorf("expected narrow stance below threshold, got %v", narrow.Score)
	}
	if narrow.Message != "Widen your stance" {
		t.Errorf("unexpected message %q", narrow.Message)
	}

	wide := mustMetric(t, metricsFor(t, SumoSquat, posetest.SumoSquat(120, 2.5), PositionUnknown), "sumo_stance_width")
	if wide.Message != "Bring your feet slightly closer together" {
		t.Errorf("unexpected message %q", wide.Message)
	}
}

func TestPushUpBodyAlignment(t *testing.T) {
	straight := mustMetric(t, metricsFor(t, PushUp, posetest.PushUp(160), PositionUnknown), "body_alignment")
	if math.Abs(straight.Score-1) > 1e-6 || straight.Message != "" {
		t.Errorf("expected perfect alignment, got %+v", straight)
	}

	sag := mustMetric(t, metricsFor(t, PushUp, posetest.SaggingPushUp(160, 0.15), PositionUnknown), "body_alignment")
	if !sag.BelowThreshold() || sag.Message != "Keep your hips up, avoid sagging" {
		t.Errorf("expected sagging feedback, got %+v", sag)
	}

	pike := mustMetric(t, metricsFor(t, PushUp, posetest.SaggingPushUp(160, -0.15), PositionUnknown), "body_alignment")
	if !pike.BelowThreshold() || pike.Message != "Lower your hips to keep your body in a straight line" {
		t.Errorf("expected piking feedback, got %+v", pike)
	}
}

func TestHandWidthPerVariant(t *testing.T) {
	narrow := posetest.PushUpWithHands(160, 0.3)

	m := mustMetric(t, metricsFor(t, PushUp, narrow, PositionUnknown), "hand_width")
	if m.Message != "Place your hands a little wider than your shoulders" {
		t.Errorf("expected narrow-hands feedback, got %+v", m)
	}

	m = mustMetric(t, metricsFor(t, DiamondPushUp, narrow, PositionUnknown), "hand_width")
	if math.Abs(m.Score-1) > 1e-6 || m.Message != "" {
		t.Errorf("expected diamond hands to be ideal, got %+v", m)
	}

	m = mustMetric(t, metricsFor(t, WidePushUp, posetest.PushUp(160), PositionUnknown), "hand_width")
	if !m.BelowThreshold() || m.Message != "Place your hands wider apart" {
		t.Errorf("expected wide variant to ask for wider hands, got %+v", m)
	}
}

func TestMetricFallback(t *testing.T) {
	f := posetest.WithVisibility(posetest.PushUp(160), 0.1)
	fm := metricsFor(t, PushUp, f, PositionDown)

	vis := mustMetric(t, fm, OverallVisibility)
	if math.Abs(vis.Score-0.1) > epsilon || vis.Message == "" {
		t.Errorf("expected low visibility with feedback, got %+v", vis)
	}

	for _, name := range []string{"body_alignment", "hand_width", "elbow_symmetry", "depth"} {
		m := mustMetric(t, fm, name)
		if m.Score != fallbackScore || m.Message != "" || !m.Fallback || m.BelowThreshold() {
			t.Errorf("%s: expected silent fallback, got %+v", name, m)
		}
	}
}

func TestMeasureRecoversFromPanic(t *testing.T) {
	m := measure("broken", 0.6, func() (float64, string, bool) {
		var lms *pose.Landmarks
		return lms[0].X, "unreachable", true
	})
	if m.Score != fallbackScore || m.Message != "" || !m.Fallback {
		t.Errorf("expected fallback, got %+v", m)
	}

	m = measure("nan", 0.6, func() (float64, string, bool) {
		return math.NaN(), "unreachable", true
	})
	if m.Score != fallbackScore || m.Message != "" {
		t.Errorf("expected fallback for NaN, got %+v", m)
	}
}

func TestPositionSpecificMetrics(t *testing.T) {
	tests := []struct {
		kind  Kind
		frame pose.Frame
		pos   Position
		name  string
	}{
		{PushUp, posetest.PushUp(100), PositionDown, "depth"},
		{Squat, posetest.Squat(90), PositionDown, "depth"},
		{SplitSquat, posetest.SplitSquat(pose.Left, 90, 90), PositionDown, "back_knee"},
		{Crunch, posetest.Crunch(130, 135, 90), PositionUp, "range"},
		{Superman, posetest.Superman(15), PositionUp, "leg_lift"},
		{Superman, posetest.Superman(15), PositionUp, "chest_lift"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.name, func(t *testing.T) {
			if _, ok := metricsFor(t, tt.kind, tt.frame, PositionUnknown).Get(tt.name); ok {
				t.Errorf("expected %s to be omitted without a position", tt.name)
			}
			mustMetric(t, metricsFor(t, tt.kind, tt.frame, tt.pos), tt.name)
		})
	}
}

func TestCrunchNeckStrain(t *testing.T) {
	m := mustMetric(t, metricsFor(t, Crunch, posetest.Crunch(150, 120, 90), PositionUnknown), "neck_strain")
	if math.Abs(m.Score-1) > 1e-6 {
		t.Errorf("expected relaxed neck, got %+v", m)
	}

	if _, ok := metricsFor(t, ReverseCrunch, posetest.Crunch(150, 120, 90), PositionUnknown).Get("neck_strain"); ok {
		t.Error("reverse crunch should not score the neck")
	}
}

func TestPlankMetrics(t *testing.T) {
	fm := metricsFor(t, Plank, posetest.Plank(0), PositionUnknown)
	for _, name := range []string{"body_alignment", "hip_position", "arm_support"} {
		if m := mustMetric(t, fm, name); m.Score < 0.95 {
			t.Errorf("%s: expected ideal plank, got %+v", name, m)
		}
	}

	sag := mustMetric(t, metricsFor(t, Plank, posetest.Plank(0.2), PositionUnknown), "hip_position")
	if sag.Message != "Lift your hips, avoid sagging" {
		t.Errorf("expected sagging feedback, got %+v", sag)
	}

	pike := mustMetric(t, metricsFor(t, Plank, posetest.Plank(-0.2), PositionUnknown), "hip_position")
	if pike.Message != "Lower your hips in line with your shoulders and ankles" {
		t.Errorf("expected piking feedback, got %+v", pike)
	}
}

func TestFormMetricsIssues(t *testing.T) {
	fm := FormMetrics{
		{Name: "a", Score: 0.9, Threshold: 0.6},
		{Name: "b", Score: 0.2, Threshold: 0.6, Message: "fix b"},
		{Name: "c", Score: 0.5, Threshold: 0.6},
	}
	issues := fm.Issues()
	if len(issues) != 1 || issues[0].Name != "b" {
		t.Errorf("expected only b, got %+v", issues)
	}
	if _, ok := fm.Get("missing"); ok {
		t.Error("expected missing metric lookup to fail")
	}
}
