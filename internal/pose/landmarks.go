// Package pose provides body landmark types and the pose detector boundary.
package pose

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Body landmark indices following the MediaPipe Pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// ErrLandmarkCount is returned when a decoded frame does not carry exactly
// NumLandmarks entries in each landmark set.
var ErrLandmarkCount = errors.New("unexpected landmark count")

// Landmark is a tracked joint position plus the detector's visibility confidence.
// World landmarks are metric and camera-relative; image landmarks are normalized
// to [0,1] screen space. Y grows downwards in both.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Visible reports whether the landmark confidence reaches threshold.
func (l Landmark) Visible(threshold float64) bool {
	return l.Visibility >= threshold
}

// Landmarks is a full joint set indexed by the constants above.
type Landmarks [NumLandmarks]Landmark

// Frame is one pose detection result.
type Frame struct {
	World     Landmarks
	Image     Landmarks
	Timestamp time.Time
}

// jsonFrame is the wire format produced by the pose service: one object per line,
// timestamp in unix milliseconds.
type jsonFrame struct {
	World     []Landmark `json:"world"`
	Image     []Landmark `json:"image"`
	Timestamp int64      `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler.
func (f Frame) MarshalJSON() ([]byte, error) {
	jf := jsonFrame{
		World: f.World[:],
		Image: f.Image[:],
	}
	if !f.Timestamp.IsZero() {
		jf.Timestamp = f.Timestamp.UnixMilli()
	}
	return json.Marshal(jf)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var jf jsonFrame
	if err := json.Unmarshal(data, &jf); err != nil {
		return err
	}
	if len(jf.World) != NumLandmarks || len(jf.Image) != NumLandmarks {
		return fmt.Errorf("%w: world=%d image=%d", ErrLandmarkCount, len(jf.World), len(jf.Image))
	}

	copy(f.World[:], jf.World)
	copy(f.Image[:], jf.Image)
	f.Timestamp = time.Time{}
	if jf.Timestamp > 0 {
		f.Timestamp = time.UnixMilli(jf.Timestamp)
	}
	return nil
}

// Side selects the left or right half of the body.
type Side int

const (
	Left Side = iota
	Right
)

// String returns "left" or "right".
func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Right {
		return Left
	}
	return Right
}

func (s Side) pick(left, right int) int {
	if s == Right {
		return right
	}
	return left
}

func (s Side) Shoulder() int  { return s.pick(LeftShoulder, RightShoulder) }
func (s Side) Elbow() int     { return s.pick(LeftElbow, RightElbow) }
func (s Side) Wrist() int     { return s.pick(LeftWrist, RightWrist) }
func (s Side) Hip() int       { return s.pick(LeftHip, RightHip) }
func (s Side) Knee() int      { return s.pick(LeftKnee, RightKnee) }
func (s Side) Ankle() int     { return s.pick(LeftAnkle, RightAnkle) }
func (s Side) Heel() int      { return s.pick(LeftHeel, RightHeel) }
func (s Side) FootIndex() int { return s.pick(LeftFootIndex, RightFootIndex) }
func (s Side) Ear() int       { return s.pick(LeftEar, RightEar) }
