// Package posetest builds synthetic pose frames for tests.
//
// World landmarks are in metres with Y growing downwards and the floor at
// Y=0. Image landmarks are the same skeleton uniformly scaled into [0,1], so
// every angle and ratio matches between the two sets.
package posetest

import (
	"math"
	"time"

	"github.com/ayusman/formcoach/internal/pose"
)

type vec struct{ x, y, z float64 }

func (a vec) add(b vec) vec       { return vec{a.x + b.x, a.y + b.y, a.z + b.z} }
func (a vec) sub(b vec) vec       { return vec{a.x - b.x, a.y - b.y, a.z - b.z} }
func (a vec) scale(k float64) vec { return vec{a.x * k, a.y * k, a.z * k} }
func (a vec) withZ(z float64) vec { return vec{a.x, a.y, z} }

// dir returns the unit vector at deg degrees in the x-y plane.
func dir(deg float64) vec {
	r := deg * math.Pi / 180
	return vec{math.Cos(r), math.Sin(r), 0}
}

func lerp(a, b vec, t float64) vec {
	return a.add(b.sub(a).scale(t))
}

func mix(a, b, t float64) float64 {
	return a + (b-a)*t
}

type skeleton map[int]vec

// frame converts a skeleton into a fully visible frame. Joints not placed
// explicitly sit at the nose.
func (s skeleton) frame() pose.Frame {
	var f pose.Frame
	nose := s[pose.Nose]
	for i := 0; i < pose.NumLandmarks; i++ {
		p, ok := s[i]
		if !ok {
			p = nose
		}
		f.World[i] = pose.Landmark{X: p.x, Y: p.y, Z: p.z, Visibility: 1}
		f.Image[i] = pose.Landmark{X: 0.5 + 0.3*p.x, Y: 0.5 + 0.3*p.y, Z: 0.3 * p.z, Visibility: 1}
	}
	return f
}

// mirror places a joint pair at ±z around the same x-y position.
func (s skeleton) mirror(left, right int, p vec, halfWidth float64) {
	s[left] = p.withZ(-halfWidth)
	s[right] = p.withZ(halfWidth)
}

// PushUp builds a side-view push-up with both elbows at elbowAngle degrees
// and hands shoulder-width apart.
func PushUp(elbowAngle float64) pose.Frame {
	return PushUpWithHands(elbowAngle, 1)
}

// PushUpWithHands builds a push-up whose wrist spread is handRatio times the
// shoulder width. The elbow angle is exact only for handRatio 1.
func PushUpWithHands(elbowAngle, handRatio float64) pose.Frame {
	return pushUpSkeleton(elbowAngle, handRatio, 0).frame()
}

// KneePushUp builds a push-up supported on the knees.
func KneePushUp(elbowAngle float64) pose.Frame {
	s := pushUpSkeleton(elbowAngle, 1, 0)
	shoulder := s[pose.LeftShoulder].withZ(0)
	knee := vec{0.95, 0, 0}
	hip := lerp(shoulder, knee, 0.6)
	ankle := knee.add(vec{0.3, -0.25, 0})
	s.mirror(pose.LeftHip, pose.RightHip, hip, mix(0.2, 0.12, 0.6))
	s.mirror(pose.LeftKnee, pose.RightKnee, knee, 0.12)
	s.mirror(pose.LeftAnkle, pose.RightAnkle, ankle, 0.1)
	return s.frame()
}

// SaggingPushUp builds a push-up whose hips drop sag metres below the
// shoulder-ankle line.
func SaggingPushUp(elbowAngle, sag float64) pose.Frame {
	return pushUpSkeleton(elbowAngle, 1, sag).frame()
}

func pushUpSkeleton(elbowAngle, handRatio, sag float64) skeleton {
	s := skeleton{}
	wrist := vec{0, 0, 0}
	elbow := vec{0, -0.28, 0}
	// elbow->wrist points along +y; rotate it by the elbow angle.
	shoulder := elbow.add(dir(90 + elbowAngle).scale(0.3))
	ankle := vec{1.5, 0, 0}

	hip := lerp(shoulder, ankle, 0.45).add(vec{0, sag, 0})
	knee := lerp(hip, ankle, 0.5)

	s[pose.Nose] = shoulder.add(vec{-0.22, -0.05, 0})
	s.mirror(pose.LeftEar, pose.RightEar, shoulder.add(vec{-0.16, -0.08, 0}), 0.07)
	s.mirror(pose.LeftShoulder, pose.RightShoulder, shoulder, 0.2)
	s.mirror(pose.LeftElbow, pose.RightElbow, elbow, 0.2*handRatio)
	s.mirror(pose.LeftWrist, pose.RightWrist, wrist, 0.2*handRatio)
	// hip and knee widths follow the shoulder-ankle line so a straight body
	// is straight in 3D too
	hipHalf := mix(0.2, 0.1, 0.45)
	s.mirror(pose.LeftHip, pose.RightHip, hip, hipHalf)
	s.mirror(pose.LeftKnee, pose.RightKnee, knee, mix(hipHalf, 0.1, 0.5))
	s.mirror(pose.LeftAnkle, pose.RightAnkle, ankle, 0.1)
	s.mirror(pose.LeftHeel, pose.RightHeel, ankle.add(vec{0.05, -0.02, 0}), 0.1)
	s.mirror(pose.LeftFootIndex, pose.RightFootIndex, ankle.add(vec{-0.02, 0.05, 0}), 0.1)
	return s
}

// Squat builds a side-view squat facing +x with both knees at kneeAngle degrees.
func Squat(kneeAngle float64) pose.Frame {
	s := skeleton{}
	legs := squatLeg(kneeAngle)
	for _, side := range []pose.Side{pose.Left, pose.Right} {
		z := -0.12
		if side == pose.Right {
			z = 0.12
		}
		for j, p := range legs.joints(side) {
			s[j] = p.withZ(z)
		}
	}

	lean := 0.3 * (180 - kneeAngle)
	hip := legs.hip
	shoulder := hip.add(dir(lean - 90).scale(0.5))
	s.mirror(pose.LeftShoulder, pose.RightShoulder, shoulder, 0.2)
	s[pose.Nose] = shoulder.add(vec{0.08, -0.2, 0})
	s.mirror(pose.LeftEar, pose.RightEar, shoulder.add(vec{0.02, -0.2, 0}), 0.07)
	s.mirror(pose.LeftElbow, pose.RightElbow, shoulder.add(vec{0.25, 0.05, 0}), 0.22)
	s.mirror(pose.LeftWrist, pose.RightWrist, shoulder.add(vec{0.5, 0.02, 0}), 0.2)
	return s.frame()
}

type leg struct {
	ankle, knee, hip, heel, toe vec
}

func (l leg) joints(side pose.Side) map[int]vec {
	return map[int]vec{
		side.Ankle():     l.ankle,
		side.Knee():      l.knee,
		side.Hip():       l.hip,
		side.Heel():      l.heel,
		side.FootIndex(): l.toe,
	}
}

// squatLeg builds one leg facing +x. The shin tilts forward a quarter of the
// knee flexion; the thigh closes the requested knee angle behind it.
func squatLeg(kneeAngle float64) leg {
	tilt := (180 - kneeAngle) / 4
	ankle := vec{0, -0.08, 0}
	knee := ankle.add(dir(-90 + tilt).scale(0.45))
	// knee->ankle points at 90+tilt; the hip rotates a further kneeAngle.
	hip := knee.add(dir(90 + tilt + kneeAngle).scale(0.45))
	return leg{
		ankle: ankle,
		knee:  knee,
		hip:   hip,
		heel:  ankle.add(vec{-0.06, 0.06, 0}),
		toe:   ankle.add(vec{0.16, 0.07, 0}),
	}
}

// SumoSquat builds a front-view squat with both knees at kneeAngle degrees
// and the ankles stanceRatio shoulder widths apart.
func SumoSquat(kneeAngle, stanceRatio float64) pose.Frame {
	s := skeleton{}
	shoulderHalf := 0.2
	ankleHalf := shoulderHalf * stanceRatio

	tilt := (180 - kneeAngle) / 4
	// each leg lies in its own y-z plane; the knee travels towards the camera (-z)
	shin := vec{0, -math.Cos(tilt * math.Pi / 180), -math.Sin(tilt * math.Pi / 180)}
	thighAngle := (tilt + kneeAngle) * math.Pi / 180
	// knee->ankle is (0, cos t, sin t); rotate by kneeAngle inside the y-z plane
	thigh := vec{0, math.Cos(thighAngle), math.Sin(thighAngle)}

	var hipY, shoulderZ float64
	for _, side := range []pose.Side{pose.Left, pose.Right} {
		x := -ankleHalf
		if side == pose.Right {
			x = ankleHalf
		}
		ankle := vec{x, -0.08, 0}
		knee := ankle.add(shin.scale(0.45))
		hip := knee.add(thigh.scale(0.45))
		s[side.Ankle()] = ankle
		s[side.Knee()] = knee
		s[side.Hip()] = hip
		s[side.Heel()] = ankle.add(vec{0, 0.06, 0.05})
		s[side.FootIndex()] = ankle.add(vec{0, 0.07, -0.16})
		hipY, shoulderZ = hip.y, hip.z
	}

	shoulderY := hipY - 0.5
	s[pose.LeftShoulder] = vec{-shoulderHalf, shoulderY, shoulderZ}
	s[pose.RightShoulder] = vec{shoulderHalf, shoulderY, shoulderZ}
	s[pose.Nose] = vec{0, shoulderY - 0.2, shoulderZ - 0.05}
	s[pose.LeftEar] = vec{-0.07, shoulderY - 0.2, shoulderZ}
	s[pose.RightEar] = vec{0.07, shoulderY - 0.2, shoulderZ}
	s[pose.LeftElbow] = vec{-shoulderHalf - 0.05, shoulderY + 0.25, shoulderZ}
	s[pose.RightElbow] = vec{shoulderHalf + 0.05, shoulderY + 0.25, shoulderZ}
	s[pose.LeftWrist] = vec{-0.05, shoulderY + 0.3, shoulderZ - 0.1}
	s[pose.RightWrist] = vec{0.05, shoulderY + 0.3, shoulderZ - 0.1}
	return s.frame()
}

// SplitSquat builds a side-view split squat facing +x. The front leg bends to
// frontKnee degrees and the back leg to backKnee degrees.
func SplitSquat(front pose.Side, frontKnee, backKnee float64) pose.Frame {
	s := skeleton{}
	fl := squatLeg(frontKnee)
	hip := fl.hip

	// back thigh hangs down and slightly behind the hip
	backKnee3 := hip.add(dir(100).scale(0.45))
	// knee->hip points at -80; rotate the shin by backKnee towards the rear
	backAnkle := backKnee3.add(dir(-80 - backKnee).scale(0.45))
	bl := leg{
		ankle: backAnkle,
		knee:  backKnee3,
		hip:   hip,
		heel:  backAnkle.add(vec{-0.04, -0.05, 0}),
		toe:   backAnkle.add(vec{0.1, 0.02, 0}),
	}

	frontZ, backZ := -0.12, 0.12
	if front == pose.Right {
		frontZ, backZ = 0.12, -0.12
	}
	for j, p := range fl.joints(front) {
		s[j] = p.withZ(frontZ)
	}
	for j, p := range bl.joints(front.Opposite()) {
		s[j] = p.withZ(backZ)
	}

	shoulder := hip.add(vec{0, -0.5, 0})
	s.mirror(pose.LeftShoulder, pose.RightShoulder, shoulder, 0.2)
	s[pose.Nose] = shoulder.add(vec{0.08, -0.2, 0})
	s.mirror(pose.LeftEar, pose.RightEar, shoulder.add(vec{0.02, -0.2, 0}), 0.07)
	s.mirror(pose.LeftElbow, pose.RightElbow, shoulder.add(vec{0, 0.28, 0}), 0.22)
	s.mirror(pose.LeftWrist, pose.RightWrist, shoulder.add(vec{0, 0.55, 0}), 0.22)
	return s.frame()
}

// Crunch builds a side-view lying pose, head towards -x. torsoAngle is the
// nose-shoulder-hip angle, hipAngle the shoulder-hip-knee angle and kneeAngle
// the hip-knee-ankle angle, all in degrees.
func Crunch(torsoAngle, hipAngle, kneeAngle float64) pose.Frame {
	s := skeleton{}
	lift := (180 - torsoAngle) / 2

	hip := vec{0, -0.1, 0}
	shoulder := hip.add(dir(180 + lift).scale(0.5))
	nose := shoulder.add(dir(lift - torsoAngle).scale(0.2))
	kneeDir := 180 + lift + hipAngle
	knee := hip.add(dir(kneeDir).scale(0.45))
	ankle := knee.add(dir(kneeDir + 180 - kneeAngle).scale(0.45))

	s[pose.Nose] = nose
	s.mirror(pose.LeftEar, pose.RightEar, lerp(shoulder, nose, 0.6), 0.07)
	s.mirror(pose.LeftShoulder, pose.RightShoulder, shoulder, 0.18)
	s.mirror(pose.LeftElbow, pose.RightElbow, shoulder.add(vec{-0.1, -0.1, 0}), 0.25)
	s.mirror(pose.LeftWrist, pose.RightWrist, lerp(shoulder, nose, 0.9), 0.1)
	s.mirror(pose.LeftHip, pose.RightHip, hip, 0.15)
	s.mirror(pose.LeftKnee, pose.RightKnee, knee, 0.12)
	s.mirror(pose.LeftAnkle, pose.RightAnkle, ankle, 0.1)
	s.mirror(pose.LeftHeel, pose.RightHeel, ankle.add(vec{-0.03, 0.04, 0}), 0.1)
	s.mirror(pose.LeftFootIndex, pose.RightFootIndex, ankle.add(vec{0.1, 0.04, 0}), 0.1)
	return s.frame()
}

// Plank builds a side-view forearm plank, head towards -x, with the hips
// offset metres below (positive) or above (negative) the shoulder-ankle line.
func Plank(hipOffset float64) pose.Frame {
	s := skeleton{}
	elbow := vec{0, 0, 0}
	shoulder := vec{0, -0.35, 0}
	wrist := vec{-0.25, 0, 0}
	ankle := vec{1.4, -0.05, 0}
	hip := lerp(shoulder, ankle, 0.45).add(vec{0, hipOffset, 0})
	knee := lerp(hip, ankle, 0.5)

	s[pose.Nose] = shoulder.add(vec{-0.25, -0.02, 0})
	s.mirror(pose.LeftEar, pose.RightEar, shoulder.add(vec{-0.18, -0.05, 0}), 0.07)
	s.mirror(pose.LeftShoulder, pose.RightShoulder, shoulder, 0.2)
	s.mirror(pose.LeftElbow, pose.RightElbow, elbow, 0.2)
	s.mirror(pose.LeftWrist, pose.RightWrist, wrist, 0.2)
	// hip and knee widths follow the shoulder-ankle line so a straight body
	// is straight in 3D too
	hipHalf := mix(0.2, 0.1, 0.45)
	s.mirror(pose.LeftHip, pose.RightHip, hip, hipHalf)
	s.mirror(pose.LeftKnee, pose.RightKnee, knee, mix(hipHalf, 0.1, 0.5))
	s.mirror(pose.LeftAnkle, pose.RightAnkle, ankle, 0.1)
	s.mirror(pose.LeftHeel, pose.RightHeel, ankle.add(vec{0.04, -0.04, 0}), 0.1)
	s.mirror(pose.LeftFootIndex, pose.RightFootIndex, ankle.add(vec{0.02, 0.05, 0}), 0.1)
	return s.frame()
}

// Superman builds a side-view prone pose, head towards -x, with chest and
// legs raised lift degrees off the floor.
func Superman(lift float64) pose.Frame {
	s := skeleton{}
	hip := vec{0, -0.1, 0}
	toHead := dir(180 + lift)
	toFeet := dir(-lift)

	shoulder := hip.add(toHead.scale(0.5))
	ear := shoulder.add(toHead.scale(0.15))
	knee := hip.add(toFeet.scale(0.45))
	ankle := hip.add(toFeet.scale(0.85))

	s[pose.Nose] = ear.add(vec{-0.06, 0.05, 0})
	s.mirror(pose.LeftEar, pose.RightEar, ear, 0.07)
	s.mirror(pose.LeftShoulder, pose.RightShoulder, shoulder, 0.2)
	s.mirror(pose.LeftElbow, pose.RightElbow, shoulder.add(toHead.scale(0.3)), 0.22)
	s.mirror(pose.LeftWrist, pose.RightWrist, shoulder.add(toHead.scale(0.55)), 0.2)
	s.mirror(pose.LeftHip, pose.RightHip, hip, 0.15)
	s.mirror(pose.LeftKnee, pose.RightKnee, knee, 0.12)
	s.mirror(pose.LeftAnkle, pose.RightAnkle, ankle, 0.1)
	s.mirror(pose.LeftHeel, pose.RightHeel, ankle.add(vec{0.02, -0.05, 0}), 0.1)
	s.mirror(pose.LeftFootIndex, pose.RightFootIndex, ankle.add(vec{0.06, 0.03, 0}), 0.1)
	return s.frame()
}

// WithVisibility returns a copy of f with the given joints, or every joint
// when none are given, set to visibility v in both landmark sets.
func WithVisibility(f pose.Frame, v float64, joints ...int) pose.Frame {
	if len(joints) == 0 {
		for i := 0; i < pose.NumLandmarks; i++ {
			joints = append(joints, i)
		}
	}
	for _, j := range joints {
		f.World[j].Visibility = v
		f.Image[j].Visibility = v
	}
	return f
}

// Sequence stamps frames at a fixed interval starting at start.
func Sequence(start time.Time, interval time.Duration, frames []pose.Frame) []pose.Frame {
	out := make([]pose.Frame, len(frames))
	for i, f := range frames {
		f.Timestamp = start.Add(time.Duration(i) * interval)
		out[i] = f
	}
	return out
}

// Linear returns n values evenly spaced from from to to inclusive.
func Linear(from, to float64, n int) []float64 {
	if n == 1 {
		return []float64{from}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = from + (to-from)*float64(i)/float64(n-1)
	}
	return out
}

// Repeat returns v repeated n times.
func Repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Concat joins value slices.
func Concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Frames maps build over values.
func Frames(values []float64, build func(float64) pose.Frame) []pose.Frame {
	out := make([]pose.Frame, len(values))
	for i, v := range values {
		out[i] = build(v)
	}
	return out
}
