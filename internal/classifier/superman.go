package classifier

import (
	"math"

	"github.com/ayusman/formcoach/internal/geometry"
	"github.com/ayusman/formcoach/internal/pose"
)

type supermanParams struct {
	visibility float64
	// body angle below neutral counts as extension, saturating extensionRange lower
	neutral        float64
	extensionRange float64
	extWeight      float64
	legWeight      float64
	chestWeight    float64
	legLow         float64
	legHigh        float64
	chestLow       float64
	chestHigh      float64
}

var standardSuperman = supermanParams{
	visibility:     0.6,
	neutral:        170,
	extensionRange: 15,
	extWeight:      0.6,
	legWeight:      0.8,
	chestWeight:    0.2,
	legLow:         0.02, legHigh: 0.2,
	chestLow: 0.02, chestHigh: 0.25,
}

func supermanVariant(name string, p supermanParams) variant {
	return variant{
		name:      name,
		direction: UpThenDown,
		raw: func(in input) (float64, bool) {
			return supermanRaw(&p, in)
		},
		metrics: func(in input, pos Position) FormMetrics {
			return supermanMetrics(&p, in, pos)
		},
	}
}

// lifts returns how far the ankle and shoulder rise above the hip in the
// image, each relative to its segment length.
func lifts(img *pose.Landmarks, s pose.Side) (leg, chest float64, ok bool) {
	legLen := geometry.Distance2D(img[s.Hip()], img[s.Ankle()])
	torsoLen := geometry.Distance2D(img[s.Hip()], img[s.Shoulder()])
	if legLen < 1e-6 || torsoLen < 1e-6 {
		return 0, 0, false
	}
	leg = geometry.VerticalDistance(img[s.Ankle()], img[s.Hip()]) / legLen
	chest = geometry.VerticalDistance(img[s.Shoulder()], img[s.Hip()]) / torsoLen
	return leg, chest, true
}

func supermanRaw(p *supermanParams, in input) (float64, bool) {
	w, s := in.world, in.side
	if !geometry.AllVisible(w, p.visibility, s.Shoulder(), s.Hip(), s.Knee(), s.Ankle()) {
		return 0, false
	}
	leg, chest, ok := lifts(in.image, s)
	if !ok {
		return 0, false
	}

	body := geometry.Angle(w[s.Shoulder()], w[s.Hip()], w[s.Ankle()])
	extension := geometry.Normalize(p.neutral-body, 0, p.extensionRange)
	if leg <= 0 && chest <= 0 {
		// bent without lifting off the floor
		extension = 0
	}
	elevation := p.legWeight*geometry.Normalize(leg, p.legLow, p.legHigh) +
		p.chestWeight*geometry.Normalize(chest, p.chestLow, p.chestHigh)

	return p.extWeight*extension + (1-p.extWeight)*elevation, true
}

func supermanMetrics(p *supermanParams, in input, pos Position) FormMetrics {
	w, img, s := in.world, in.image, in.side

	fm := FormMetrics{
		visibilityMetric(w, s.Ear(), s.Shoulder(), s.Hip(), s.Knee(), s.Ankle()),
		measure("neck_neutral", 0.6, func() (float64, string, bool) {
			if !geometry.AllVisible(w, metricVisibility, s.Ear(), s.Shoulder(), s.Hip()) {
				return 0, "", false
			}
			neck := geometry.Angle(w[s.Ear()], w[s.Shoulder()], w[s.Hip()])
			return geometry.Normalize(neck, 135, 160), "Keep your neck neutral and gaze at the floor", true
		}),
		measure("symmetry", 0.6, func() (float64, string, bool) {
			if !geometry.AllVisible(w, metricVisibility, pose.LeftAnkle, pose.RightAnkle, s.Hip()) {
				return 0, "", false
			}
			leg := geometry.Distance2D(img[s.Hip()], img[s.Ankle()])
			if leg < 1e-6 {
				return 0, "", false
			}
			diff := math.Abs(img[pose.LeftAnkle].Y-img[pose.RightAnkle].Y) / leg
			return 1 - geometry.Normalize(diff, 0, 0.15), "Lift both legs evenly", true
		}),
	}

	if pos == PositionUp {
		leg, chest, ok := lifts(img, s)
		fm = append(fm,
			measure("leg_lift", 0.5, func() (float64, string, bool) {
				return geometry.Normalize(leg, p.legLow, p.legHigh), "Lift your legs a little higher", ok
			}),
			measure("chest_lift", 0.5, func() (float64, string, bool) {
				return geometry.Normalize(chest, p.chestLow, p.chestHigh), "Lift your chest a little higher", ok
			}),
		)
	}

	return fm
}
