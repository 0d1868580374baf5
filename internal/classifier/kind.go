package classifier

import "strings"

// Kind identifies a supported exercise variant.
type Kind int

const (
	PushUp Kind = iota
	KneePushUp
	WallPushUp
	InclinePushUp
	DeclinePushUp
	DiamondPushUp
	WidePushUp
	Squat
	SumoSquat
	SplitSquat
	Crunch
	ReverseCrunch
	DoubleCrunch
	Plank
	SidePlank
	Superman

	numKinds
)

// variant is the parameter table and function pair for one kind.
type variant struct {
	name          string
	durationBased bool
	direction     Direction
	raw           func(in input) (up float64, ok bool)
	metrics       func(in input, pos Position) FormMetrics
}

var variants = [numKinds]variant{
	PushUp:        pushUpVariant("push_up", standardPushUp),
	KneePushUp:    pushUpVariant("knee_push_up", kneePushUp),
	WallPushUp:    pushUpVariant("wall_push_up", wallPushUp),
	InclinePushUp: pushUpVariant("incline_push_up", inclinePushUp),
	DeclinePushUp: pushUpVariant("decline_push_up", declinePushUp),
	DiamondPushUp: pushUpVariant("diamond_push_up", diamondPushUp),
	WidePushUp:    pushUpVariant("wide_push_up", widePushUp),
	Squat:         squatVariant("squat", standardSquat),
	SumoSquat:     squatVariant("sumo_squat", sumoSquat),
	SplitSquat:    squatVariant("split_squat", splitSquat),
	Crunch:        crunchVariant("crunch", standardCrunch),
	ReverseCrunch: crunchVariant("reverse_crunch", reverseCrunch),
	DoubleCrunch:  crunchVariant("double_crunch", doubleCrunch),
	Plank:         plankVariant("plank", standardPlank),
	SidePlank:     plankVariant("side_plank", sidePlank),
	Superman:      supermanVariant("superman", standardSuperman),
}

// Kinds returns every supported kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	return k >= 0 && k < numKinds
}

// String returns the snake_case kind name.
func (k Kind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return variants[k].name
}

// IsDurationBased reports whether the kind is held rather than repeated.
func (k Kind) IsDurationBased() bool {
	return k.Valid() && variants[k].durationBased
}

// ParseExerciseName maps a free-form exercise name onto a kind by substring
// matching. Names come from generated workout plans and vary in phrasing, so
// an unmatched name is not an error: the exercise simply has no counter.
func ParseExerciseName(name string) (Kind, bool) {
	n := strings.ToLower(name)
	has := func(s string) bool { return strings.Contains(n, s) }

	switch {
	case has("push") && has("up"):
		switch {
		case has("knee"):
			return KneePushUp, true
		case has("wall"):
			return WallPushUp, true
		case has("incline"):
			return InclinePushUp, true
		case has("decline"):
			return DeclinePushUp, true
		case has("diamond"):
			return DiamondPushUp, true
		case has("wide"):
			return WidePushUp, true
		}
		return PushUp, true

	case has("squat"):
		switch {
		case has("sumo"):
			return SumoSquat, true
		case has("split"):
			return SplitSquat, true
		}
		return Squat, true

	case has("crunch"):
		switch {
		case has("reverse"):
			return ReverseCrunch, true
		case has("double"):
			return DoubleCrunch, true
		}
		return Crunch, true

	case has("plank"):
		if has("side") {
			return SidePlank, true
		}
		return Plank, true

	case has("superman"):
		return Superman, true
	}

	return 0, false
}
