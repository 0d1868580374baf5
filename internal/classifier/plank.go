package classifier

import (
	"math"

	"github.com/ayusman/formcoach/internal/geometry"
)

type plankParams struct {
	visibility float64
	// hip distance from the shoulder-ankle line, as a fraction of body length
	hipTolerance float64
	alignWeight  float64
	armWeight    float64
	hipWeight    float64
}

var standardPlank = plankParams{
	visibility:   0.6,
	hipTolerance: 0.1,
	alignWeight:  0.5,
	armWeight:    0.2,
	hipWeight:    0.3,
}

var sidePlank = func() plankParams {
	p := standardPlank
	p.hipTolerance = 0.12
	return p
}()

func plankVariant(name string, p plankParams) variant {
	return variant{
		name:          name,
		durationBased: true,
		direction:     DownThenUp,
		raw: func(in input) (float64, bool) {
			return plankRaw(&p, in)
		},
		metrics: func(in input, pos Position) FormMetrics {
			return plankMetrics(&p, in)
		},
	}
}

// plankScores holds the three components of a plank hold.
type plankScores struct {
	alignment float64
	arm       float64
	hip       float64
	sag       float64
}

func scorePlank(p *plankParams, in input) (plankScores, bool) {
	w, img, s := in.world, in.image, in.side
	if !geometry.AllVisible(w, p.visibility, s.Shoulder(), s.Elbow(), s.Wrist(), s.Hip(), s.Ankle()) {
		return plankScores{}, false
	}

	body := geometry.Angle(w[s.Shoulder()], w[s.Hip()], w[s.Ankle()])
	arm := geometry.Angle(w[s.Shoulder()], w[s.Elbow()], w[s.Wrist()])

	length := geometry.Distance2D(img[s.Shoulder()], img[s.Ankle()])
	if length < 1e-6 {
		return plankScores{}, false
	}
	sag := geometry.LineDeviation(img[s.Hip()], img[s.Shoulder()], img[s.Ankle()]) / length

	return plankScores{
		alignment: 1 - geometry.Normalize(180-body, 0, 30),
		// forearm plank near 90 degrees or straight-arm plank near 180
		arm: math.Max(geometry.BandScore(arm, 75, 105, 30), geometry.BandScore(arm, 160, 180, 30)),
		hip: 1 - geometry.Normalize(math.Abs(sag), 0, p.hipTolerance),
		sag: sag,
	}, true
}

func plankRaw(p *plankParams, in input) (float64, bool) {
	sc, ok := scorePlank(p, in)
	if !ok {
		return 0, false
	}
	return p.alignWeight*sc.alignment + p.armWeight*sc.arm + p.hipWeight*sc.hip, true
}

func plankMetrics(p *plankParams, in input) FormMetrics {
	s := in.side
	sc, ok := scorePlank(p, in)

	hipMsg := "Lower your hips in line with your shoulders and ankles"
	if sc.sag > 0 {
		hipMsg = "Lift your hips, avoid sagging"
	}

	return FormMetrics{
		visibilityMetric(in.world, s.Shoulder(), s.Elbow(), s.Wrist(), s.Hip(), s.Knee(), s.Ankle()),
		measure("body_alignment", 0.7, func() (float64, string, bool) {
			return sc.alignment, "Keep your body in a straight line from head to heels", ok
		}),
		measure("hip_position", 0.6, func() (float64, string, bool) {
			return sc.hip, hipMsg, ok
		}),
		measure("arm_support", 0.6, func() (float64, string, bool) {
			return sc.arm, "Stack your shoulders over your elbows", ok
		}),
	}
}
