package classifier

import (
	"github.com/ayusman/formcoach/internal/geometry"
	"github.com/ayusman/formcoach/internal/pose"
)

type crunchSignal int

const (
	signalTorso crunchSignal = iota
	signalHip
	signalBoth
)

type crunchParams struct {
	signal     crunchSignal
	visibility float64
	// knees straighter than this are not a crunch position
	kneeGate    float64
	useKneeGate bool
	// torso flexion (nose, shoulders, hips): contracted at or below torsoUp
	torsoUp, torsoDown float64
	// hip flexion (shoulders, hips, knees): contracted at or below hipUp
	hipUp, hipDown float64
}

var standardCrunch = crunchParams{
	signal:      signalTorso,
	visibility:  0.5,
	kneeGate:    160,
	useKneeGate: true,
	torsoUp:     140, torsoDown: 165,
	hipUp: 65, hipDown: 105,
}

var reverseCrunch = func() crunchParams {
	p := standardCrunch
	p.signal = signalHip
	p.useKneeGate = false
	return p
}()

var doubleCrunch = func() crunchParams {
	p := standardCrunch
	p.signal = signalBoth
	return p
}()

func crunchVariant(name string, p crunchParams) variant {
	return variant{
		name:      name,
		direction: UpThenDown,
		raw: func(in input) (float64, bool) {
			return crunchRaw(&p, in)
		},
		metrics: func(in input, pos Position) FormMetrics {
			return crunchMetrics(&p, in, pos)
		},
	}
}

// crunchFrame holds the midline joints of a lying body.
type crunchFrame struct {
	nose, shoulder, hip, knee, ankle pose.Landmark
}

func midline(w *pose.Landmarks) crunchFrame {
	return crunchFrame{
		nose:     w[pose.Nose],
		shoulder: geometry.Midpoint(w[pose.LeftShoulder], w[pose.RightShoulder]),
		hip:      geometry.Midpoint(w[pose.LeftHip], w[pose.RightHip]),
		knee:     geometry.Midpoint(w[pose.LeftKnee], w[pose.RightKnee]),
		ankle:    geometry.Midpoint(w[pose.LeftAnkle], w[pose.RightAnkle]),
	}
}

func (f crunchFrame) torsoFlexion() float64 {
	return geometry.Angle(f.nose, f.shoulder, f.hip)
}

func (f crunchFrame) hipFlexion() float64 {
	return geometry.Angle(f.shoulder, f.hip, f.knee)
}

func (f crunchFrame) kneeAngle() float64 {
	return geometry.Angle(f.hip, f.knee, f.ankle)
}

func (f crunchFrame) visible(threshold float64, withAnkles bool) bool {
	joints := []pose.Landmark{f.nose, f.shoulder, f.hip, f.knee}
	if withAnkles {
		joints = append(joints, f.ankle)
	}
	for _, j := range joints {
		if !j.Visible(threshold) {
			return false
		}
	}
	return true
}

func crunchRaw(p *crunchParams, in input) (float64, bool) {
	f := midline(in.world)
	if !f.visible(p.visibility, p.useKneeGate) {
		return 0, false
	}
	if p.useKneeGate && f.kneeAngle() > p.kneeGate {
		return 0, false
	}

	torsoUp := falling(f.torsoFlexion(), p.torsoUp, p.torsoDown)
	hipUp := falling(f.hipFlexion(), p.hipUp, p.hipDown)

	switch p.signal {
	case signalHip:
		return hipUp, true
	case signalBoth:
		return (torsoUp + hipUp) / 2, true
	}
	return torsoUp, true
}

func crunchMetrics(p *crunchParams, in input, pos Position) FormMetrics {
	w := in.world
	f := midline(w)

	fm := FormMetrics{
		visibilityMetric(w, append(bothSides(pose.Side.Shoulder, pose.Side.Hip, pose.Side.Knee), pose.Nose)...),
	}

	if p.signal != signalHip {
		fm = append(fm, measure("neck_strain", 0.5, func() (float64, string, bool) {
			if !f.visible(metricVisibility, false) {
				return 0, "", false
			}
			torso := geometry.Distance(f.shoulder, f.hip)
			if torso < 1e-6 {
				return 0, "", false
			}
			gap := geometry.Distance(f.nose, f.shoulder) / torso
			return geometry.Normalize(gap, 0.2, 0.32), "Keep a fist-sized gap between your chin and chest", true
		}))
	}

	fm = append(fm, measure("knee_angle", 0.6, func() (float64, string, bool) {
		if !f.visible(metricVisibility, true) {
			return 0, "", false
		}
		return geometry.BandScore(f.kneeAngle(), 70, 110, 30), "Keep your knees bent at about 90 degrees", true
	}))

	if pos == PositionUp {
		fm = append(fm, measure("range", 0.6, func() (float64, string, bool) {
			if !f.visible(metricVisibility, false) {
				return 0, "", false
			}
			torso := geometry.Normalize(p.torsoDown-f.torsoFlexion(), 0, p.torsoDown-p.torsoUp)
			hip := geometry.Normalize(p.hipDown-f.hipFlexion(), 0, p.hipDown-p.hipUp)
			switch p.signal {
			case signalHip:
				return hip, "Bring your knees closer to your chest", true
			case signalBoth:
				return (torso + hip) / 2, "Curl your shoulders and knees closer together", true
			}
			return torso, "Curl your shoulders a little higher", true
		}))
	}

	return fm
}
