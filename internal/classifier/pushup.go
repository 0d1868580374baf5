package classifier

import (
	"math"

	"github.com/ayusman/formcoach/internal/geometry"
	"github.com/ayusman/formcoach/internal/pose"
)

type pushUpParams struct {
	visibility float64
	// elbow angle at or above upAngle is fully up, at or below downAngle fully down
	upAngle   float64
	downAngle float64
	// shoulder lift over the wrists, as a fraction of torso length
	liftLow  float64
	liftHigh float64
	// wall push-ups lift horizontally away from the wall
	horizontal bool
	// knee push-ups align shoulder, hip and knee instead of the ankle
	alignToKnee bool
	// wrist spread as a fraction of shoulder width
	handLow, handHigh, handFalloff float64
	handNarrowMsg, handWideMsg     string
}

var standardPushUp = pushUpParams{
	visibility: 0.7,
	upAngle:    150, downAngle: 110,
	liftLow: 0.3, liftHigh: 0.9,
	handLow: 0.9, handHigh: 1.6, handFalloff: 0.5,
	handNarrowMsg: "Place your hands a little wider than your shoulders",
	handWideMsg:   "Bring your hands a little closer together",
}

var kneePushUp = func() pushUpParams {
	p := standardPushUp
	p.upAngle, p.downAngle = 145, 105
	p.alignToKnee = true
	return p
}()

var wallPushUp = func() pushUpParams {
	p := standardPushUp
	p.upAngle, p.downAngle = 155, 115
	p.horizontal = true
	return p
}()

var inclinePushUp = func() pushUpParams {
	p := standardPushUp
	p.downAngle = 105
	return p
}()

var declinePushUp = func() pushUpParams {
	p := standardPushUp
	p.upAngle, p.downAngle = 155, 100
	return p
}()

var diamondPushUp = func() pushUpParams {
	p := standardPushUp
	p.downAngle = 100
	p.handLow, p.handHigh, p.handFalloff = 0.15, 0.45, 0.3
	p.handNarrowMsg = "Keep a small gap between your hands"
	p.handWideMsg = "Bring your hands together under your chest to form a diamond"
	return p
}()

var widePushUp = func() pushUpParams {
	p := standardPushUp
	p.downAngle = 115
	p.handLow, p.handHigh, p.handFalloff = 1.6, 2.2, 0.5
	p.handNarrowMsg = "Place your hands wider apart"
	p.handWideMsg = "Bring your hands in slightly, they are too wide"
	return p
}()

func pushUpVariant(name string, p pushUpParams) variant {
	return variant{
		name:      name,
		direction: DownThenUp,
		raw: func(in input) (float64, bool) {
			return pushUpRaw(&p, in)
		},
		metrics: func(in input, pos Position) FormMetrics {
			return pushUpMetrics(&p, in, pos)
		},
	}
}

// pushUpRaw weights the elbow angle 90/10 with the shoulder lift above the wrists.
func pushUpRaw(p *pushUpParams, in input) (float64, bool) {
	w, s := in.world, in.side
	if !geometry.AllVisible(w, p.visibility, s.Shoulder(), s.Elbow(), s.Wrist()) {
		return 0, false
	}

	elbow := geometry.Angle(w[s.Shoulder()], w[s.Elbow()], w[s.Wrist()])
	angleUp := rising(elbow, p.downAngle, p.upAngle)

	if !w[s.Hip()].Visible(p.visibility) {
		return angleUp, true
	}

	img := in.image
	shoulder, wrist, hip := img[s.Shoulder()], img[s.Wrist()], img[s.Hip()]
	torso := geometry.Distance2D(shoulder, hip)
	if torso < 1e-6 {
		return angleUp, true
	}

	lift := geometry.VerticalDistance(shoulder, wrist)
	if p.horizontal {
		lift = math.Abs(wrist.X - shoulder.X)
	}
	heightUp := geometry.Normalize(lift/torso, p.liftLow, p.liftHigh)

	return 0.9*angleUp + 0.1*heightUp, true
}

func pushUpMetrics(p *pushUpParams, in input, pos Position) FormMetrics {
	w, img, s := in.world, in.image, in.side

	end := s.Ankle()
	if p.alignToKnee {
		end = s.Knee()
	}

	fm := FormMetrics{
		visibilityMetric(w, s.Shoulder(), s.Elbow(), s.Wrist(), s.Hip(), s.Knee(), s.Ankle()),
	}

	fm = append(fm, measure("body_alignment", 0.7, func() (float64, string, bool) {
		if !geometry.AllVisible(w, metricVisibility, s.Shoulder(), s.Hip(), end) {
			return 0, "", false
		}
		a := geometry.Angle(w[s.Shoulder()], w[s.Hip()], w[end])
		score := 1 - geometry.Normalize(180-a, 0, 30)

		msg := "Lower your hips to keep your body in a straight line"
		if geometry.LineDeviation(img[s.Hip()], img[s.Shoulder()], img[end]) > 0 {
			msg = "Keep your hips up, avoid sagging"
		}
		return score, msg, true
	}))

	fm = append(fm, measure("hand_width", 0.6, func() (float64, string, bool) {
		if !geometry.AllVisible(w, metricVisibility, pose.LeftWrist, pose.RightWrist, pose.LeftShoulder, pose.RightShoulder) {
			return 0, "", false
		}
		shoulders := geometry.Distance(w[pose.LeftShoulder], w[pose.RightShoulder])
		if shoulders < 1e-6 {
			return 0, "", false
		}
		ratio := geometry.Distance(w[pose.LeftWrist], w[pose.RightWrist]) / shoulders

		msg := p.handWideMsg
		if ratio < p.handLow {
			msg = p.handNarrowMsg
		}
		return geometry.BandScore(ratio, p.handLow, p.handHigh, p.handFalloff), msg, true
	}))

	fm = append(fm, measure("elbow_symmetry", 0.6, func() (float64, string, bool) {
		arms := bothSides(pose.Side.Shoulder, pose.Side.Elbow, pose.Side.Wrist)
		if !geometry.AllVisible(w, metricVisibility, arms...) {
			return 0, "", false
		}
		left := geometry.Angle(w[pose.LeftShoulder], w[pose.LeftElbow], w[pose.LeftWrist])
		right := geometry.Angle(w[pose.RightShoulder], w[pose.RightElbow], w[pose.RightWrist])
		return 1 - geometry.Normalize(math.Abs(left-right), 0, 30), "Lower both sides of your body evenly", true
	}))

	if pos == PositionDown {
		fm = append(fm, measure("depth", 0.6, func() (float64, string, bool) {
			if !geometry.AllVisible(w, p.visibility, s.Shoulder(), s.Elbow(), s.Wrist()) {
				return 0, "", false
			}
			elbow := geometry.Angle(w[s.Shoulder()], w[s.Elbow()], w[s.Wrist()])
			return 1 - geometry.Normalize(elbow-p.downAngle, 0, 40), "Lower your chest closer to the floor", true
		}))
	}

	return fm
}
