package classifier

import (
	"math"

	"github.com/ayusman/formcoach/internal/geometry"
	"github.com/ayusman/formcoach/internal/pose"
)

type squatStyle int

const (
	styleStandard squatStyle = iota
	styleSumo
	styleSplit
)

type squatParams struct {
	style      squatStyle
	visibility float64
	upAngle    float64
	downAngle  float64
	// hip height above the knee, as a fraction of shin length
	hipLow, hipHigh float64
	// acceptable torso lean from vertical before scoring drops
	leanOK, leanMax float64
}

var standardSquat = squatParams{
	style:      styleStandard,
	visibility: 0.6,
	upAngle:    160, downAngle: 100,
	hipLow: 0.1, hipHigh: 0.8,
	leanOK: 35, leanMax: 65,
}

var sumoSquat = squatParams{
	style:      styleSumo,
	visibility: 0.6,
	upAngle:    155, downAngle: 100,
	hipLow: 0.1, hipHigh: 0.8,
	leanOK: 15, leanMax: 40,
}

var splitSquat = squatParams{
	style:      styleSplit,
	visibility: 0.6,
	upAngle:    160, downAngle: 105,
	hipLow: 0.1, hipHigh: 0.8,
	leanOK: 10, leanMax: 35,
}

const (
	sumoStanceLow     = 1.4
	sumoStanceHigh    = 1.9
	sumoStanceFalloff = 0.6
)

func squatVariant(name string, p squatParams) variant {
	return variant{
		name:      name,
		direction: DownThenUp,
		raw: func(in input) (float64, bool) {
			return squatRaw(&p, in)
		},
		metrics: func(in input, pos Position) FormMetrics {
			return squatMetrics(&p, in, pos)
		},
	}
}

// legs returns the legs that drive the signal: both for sumo (frontal view),
// the front leg for split squats, otherwise the visible side.
func (p *squatParams) legs(in input) []pose.Side {
	switch p.style {
	case styleSumo:
		return []pose.Side{pose.Left, pose.Right}
	case styleSplit:
		return []pose.Side{in.frontLeg}
	}
	return []pose.Side{in.side}
}

func kneeAngle(lms *pose.Landmarks, s pose.Side) float64 {
	return geometry.Angle(lms[s.Hip()], lms[s.Knee()], lms[s.Ankle()])
}

// hipOverKnee is the image-space height of the hip above the knee divided
// by shin length.
func hipOverKnee(img *pose.Landmarks, s pose.Side) (float64, bool) {
	shin := geometry.Distance2D(img[s.Knee()], img[s.Ankle()])
	if shin < 1e-6 {
		return 0, false
	}
	return geometry.VerticalDistance(img[s.Hip()], img[s.Knee()]) / shin, true
}

// squatRaw weights the knee angle 85/15 with the hip height over the knee.
func squatRaw(p *squatParams, in input) (float64, bool) {
	legs := p.legs(in)

	angle, height, heights := 0.0, 0.0, 0
	for _, s := range legs {
		if !geometry.AllVisible(in.world, p.visibility, s.Hip(), s.Knee(), s.Ankle()) {
			return 0, false
		}
		angle += kneeAngle(in.world, s)
		if h, ok := hipOverKnee(in.image, s); ok {
			height += h
			heights++
		}
	}
	angle /= float64(len(legs))

	angleUp := rising(angle, p.downAngle, p.upAngle)
	if heights == 0 {
		return angleUp, true
	}
	heightUp := geometry.Normalize(height/float64(heights), p.hipLow, p.hipHigh)
	return 0.85*angleUp + 0.15*heightUp, true
}

func squatMetrics(p *squatParams, in input, pos Position) FormMetrics {
	w, img, s := in.world, in.image, in.side

	var fm FormMetrics
	switch p.style {
	case styleSumo:
		fm = FormMetrics{visibilityMetric(w, bothSides(pose.Side.Shoulder, pose.Side.Hip, pose.Side.Knee, pose.Side.Ankle)...)}
		fm = append(fm, sumoStanceMetric(w), kneesOutMetric(w))
	case styleSplit:
		fm = FormMetrics{visibilityMetric(w, append(bothSides(pose.Side.Hip, pose.Side.Knee, pose.Side.Ankle), s.Shoulder())...)}
		fm = append(fm, frontKneeMetric(img, w, in.frontLeg))
	default:
		fm = FormMetrics{visibilityMetric(w, s.Shoulder(), s.Hip(), s.Knee(), s.Ankle())}
		fm = append(fm, kneeTrackingMetric(img, w, s))
	}

	torsoName, torsoMsg := "back_angle", "Keep your chest up"
	if p.style == styleSplit {
		torsoName, torsoMsg = "torso_upright", "Keep your torso upright"
	}
	fm = append(fm, measure(torsoName, 0.6, func() (float64, string, bool) {
		if !geometry.AllVisible(w, metricVisibility, s.Shoulder(), s.Hip()) {
			return 0, "", false
		}
		lean := leanFromVertical(img[s.Shoulder()], img[s.Hip()])
		return 1 - geometry.Normalize(lean, p.leanOK, p.leanMax), torsoMsg, true
	}))

	if p.style == styleSumo {
		fm = append(fm, measure("knee_symmetry", 0.7, func() (float64, string, bool) {
			if !geometry.AllVisible(w, metricVisibility, bothSides(pose.Side.Hip, pose.Side.Knee, pose.Side.Ankle)...) {
				return 0, "", false
			}
			diff := math.Abs(kneeAngle(w, pose.Left) - kneeAngle(w, pose.Right))
			return 1 - geometry.Normalize(diff, 0, 25), "Keep your weight even on both legs", true
		}))
	}

	if pos == PositionDown {
		fm = append(fm, squatDepthMetric(p, in))
	}
	return fm
}

func squatDepthMetric(p *squatParams, in input) Metric {
	w := in.world
	if p.style == styleSplit {
		back := in.frontLeg.Opposite()
		return measure("back_knee", 0.6, func() (float64, string, bool) {
			if !geometry.AllVisible(w, metricVisibility, back.Hip(), back.Knee(), back.Ankle()) {
				return 0, "", false
			}
			return geometry.BandScore(kneeAngle(w, back), 80, 110, 40), "Lower your back knee toward the floor", true
		})
	}

	return measure("depth", 0.6, func() (float64, string, bool) {
		legs := p.legs(in)
		angle := 0.0
		for _, s := range legs {
			if !geometry.AllVisible(w, p.visibility, s.Hip(), s.Knee(), s.Ankle()) {
				return 0, "", false
			}
			angle += kneeAngle(w, s)
		}
		angle /= float64(len(legs))
		return 1 - geometry.Normalize(angle-90, 0, 30), "Squat a little deeper", true
	})
}

// kneeTrackingMetric penalises the knee travelling past the toes, seen from the side.
func kneeTrackingMetric(img, w *pose.Landmarks, s pose.Side) Metric {
	return measure("knee_tracking", 0.6, func() (float64, string, bool) {
		if !geometry.AllVisible(w, metricVisibility, s.Knee(), s.Ankle(), s.Heel(), s.FootIndex()) {
			return 0, "", false
		}
		toe, heel := img[s.FootIndex()], img[s.Heel()]
		facing := toe.X - heel.X
		if math.Abs(facing) < 1e-6 {
			return 0, "", false
		}
		shin := geometry.Distance2D(img[s.Knee()], img[s.Ankle()])
		if shin < 1e-6 {
			return 0, "", false
		}
		past := (img[s.Knee()].X - toe.X) * math.Copysign(1, facing) / shin
		return 1 - geometry.Normalize(past, 0, 0.3), "Keep your knees behind your toes", true
	})
}

func sumoStanceMetric(w *pose.Landmarks) Metric {
	return measure("sumo_stance_width", 0.7, func() (float64, string, bool) {
		if !geometry.AllVisible(w, metricVisibility, pose.LeftAnkle, pose.RightAnkle, pose.LeftShoulder, pose.RightShoulder) {
			return 0, "", false
		}
		shoulders := geometry.Distance(w[pose.LeftShoulder], w[pose.RightShoulder])
		if shoulders < 1e-6 {
			return 0, "", false
		}
		ratio := geometry.Distance(w[pose.LeftAnkle], w[pose.RightAnkle]) / shoulders

		msg := "Bring your feet slightly closer together"
		if ratio < sumoStanceLow {
			msg = "Widen your stance"
		}
		return geometry.BandScore(ratio, sumoStanceLow, sumoStanceHigh, sumoStanceFalloff), msg, true
	})
}

// kneesOutMetric compares knee spread with ankle spread; caving knees score low.
func kneesOutMetric(w *pose.Landmarks) Metric {
	return measure("knee_alignment", 0.6, func() (float64, string, bool) {
		if !geometry.AllVisible(w, metricVisibility, pose.LeftKnee, pose.RightKnee, pose.LeftAnkle, pose.RightAnkle) {
			return 0, "", false
		}
		ankles := geometry.Distance(w[pose.LeftAnkle], w[pose.RightAnkle])
		if ankles < 1e-6 {
			return 0, "", false
		}
		ratio := geometry.Distance(w[pose.LeftKnee], w[pose.RightKnee]) / ankles
		return geometry.Normalize(ratio, 0.6, 0.9), "Push your knees out over your toes", true
	})
}

func frontKneeMetric(img, w *pose.Landmarks, front pose.Side) Metric {
	return measure("front_knee_alignment", 0.6, func() (float64, string, bool) {
		if !geometry.AllVisible(w, metricVisibility, front.Knee(), front.Ankle()) {
			return 0, "", false
		}
		shin := geometry.Distance2D(img[front.Knee()], img[front.Ankle()])
		if shin < 1e-6 {
			return 0, "", false
		}
		drift := math.Abs(img[front.Knee()].X-img[front.Ankle()].X) / shin
		return 1 - geometry.Normalize(drift, 0.15, 0.45), "Keep your front knee stacked over your ankle", true
	})
}
