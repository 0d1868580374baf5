// Package geometry provides pure helpers over pose landmarks.
// Every function is total: degenerate input yields a defined value, never NaN.
package geometry

import (
	"math"

	"github.com/ayusman/formcoach/internal/pose"
)

// degenerate is the squared length below which a vector is treated as zero.
const degenerate = 1e-12

// Angle returns the angle at vertex b formed by rays b->a and b->c, in degrees [0,180].
// Zero-length rays yield 0.
func Angle(a, b, c pose.Landmark) float64 {
	return angle(a.X-b.X, a.Y-b.Y, a.Z-b.Z, c.X-b.X, c.Y-b.Y, c.Z-b.Z)
}

// Angle2D is Angle with z ignored, for image-space landmarks.
func Angle2D(a, b, c pose.Landmark) float64 {
	return angle(a.X-b.X, a.Y-b.Y, 0, c.X-b.X, c.Y-b.Y, 0)
}

func angle(ux, uy, uz, vx, vy, vz float64) float64 {
	nu := ux*ux + uy*uy + uz*uz
	nv := vx*vx + vy*vy + vz*vz
	if nu < degenerate || nv < degenerate {
		return 0
	}
	cos := (ux*vx + uy*vy + uz*vz) / math.Sqrt(nu*nv)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Midpoint averages p and q per axis; visibility is the lower of the two.
func Midpoint(p, q pose.Landmark) pose.Landmark {
	return pose.Landmark{
		X:          (p.X + q.X) / 2,
		Y:          (p.Y + q.Y) / 2,
		Z:          (p.Z + q.Z) / 2,
		Visibility: math.Min(p.Visibility, q.Visibility),
	}
}

// Normalize linearly rescales value from [min,max] to [0,1] and clamps.
// A degenerate range returns 0.
func Normalize(value, min, max float64) float64 {
	if max == min || math.IsNaN(value) {
		return 0
	}
	n := (value - min) / (max - min)
	return Clamp01(n)
}

// Clamp01 clamps v to [0,1]; NaN becomes 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// BandScore is 1 inside [lo,hi] and falls off linearly to 0 over falloff outside it.
func BandScore(value, lo, hi, falloff float64) float64 {
	switch {
	case value < lo:
		return 1 - Normalize(lo-value, 0, falloff)
	case value > hi:
		return 1 - Normalize(value-hi, 0, falloff)
	}
	return 1
}

// Distance is the 3D euclidean distance.
func Distance(a, b pose.Landmark) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Distance2D ignores z.
func Distance2D(a, b pose.Landmark) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// VerticalDistance is how far a sits above b. Y grows downwards, so the
// result is positive when a is higher in the frame.
func VerticalDistance(a, b pose.Landmark) float64 {
	return b.Y - a.Y
}

// LineDeviation is the signed perpendicular distance of p from the 2D line
// through a and b. Positive means p lies below the line (larger Y).
// A degenerate line returns 0.
func LineDeviation(p, a, b pose.Landmark) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Sqrt(dx*dx + dy*dy)
	if length < 1e-9 {
		return 0
	}
	cross := (dx*(p.Y-a.Y) - dy*(p.X-a.X)) / length
	if dx < 0 {
		cross = -cross
	}
	return cross
}

// IsLeftBodyVisible reports whether the left shoulder, hip, knee and ankle are
// jointly at least as visible as their right counterparts.
func IsLeftBodyVisible(lms *pose.Landmarks) bool {
	left := lms[pose.LeftShoulder].Visibility + lms[pose.LeftHip].Visibility +
		lms[pose.LeftKnee].Visibility + lms[pose.LeftAnkle].Visibility
	right := lms[pose.RightShoulder].Visibility + lms[pose.RightHip].Visibility +
		lms[pose.RightKnee].Visibility + lms[pose.RightAnkle].Visibility
	return left >= right
}

// VisibleSide returns the side chosen by IsLeftBodyVisible.
func VisibleSide(lms *pose.Landmarks) pose.Side {
	if IsLeftBodyVisible(lms) {
		return pose.Left
	}
	return pose.Right
}

// MeanVisibility averages the visibility of the given joints, or of all
// landmarks when none are given.
func MeanVisibility(lms *pose.Landmarks, joints ...int) float64 {
	if len(joints) == 0 {
		sum := 0.0
		for _, l := range lms {
			sum += l.Visibility
		}
		return sum / pose.NumLandmarks
	}
	sum := 0.0
	for _, j := range joints {
		sum += lms[j].Visibility
	}
	return sum / float64(len(joints))
}

// AllVisible reports whether every given joint reaches threshold.
func AllVisible(lms *pose.Landmarks, threshold float64, joints ...int) bool {
	for _, j := range joints {
		if !lms[j].Visible(threshold) {
			return false
		}
	}
	return true
}
