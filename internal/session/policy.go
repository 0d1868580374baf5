package session

import (
	"github.com/ayusman/formcoach/internal/coach"
	"github.com/ayusman/formcoach/internal/counter"
)

// Policy controls which feedback a completed repetition triggers.
type Policy struct {
	// PraiseScore is the form score a repetition must exceed to earn praise.
	PraiseScore float64 `toml:"praise_score"`
	// PraiseInterval is the minimum number of repetitions between two praises.
	PraiseInterval uint32 `toml:"praise_interval"`
}

// DefaultPolicy returns a Policy with sensible default values.
func DefaultPolicy() Policy {
	return Policy{
		PraiseScore:    9.0,
		PraiseInterval: 3,
	}
}

// Decide picks the feedback for rep. lastPraise is the number of the last
// praised repetition in this activation, 0 if none.
//
// Any metric carrying a message yields corrective feedback. Otherwise a score above
// PraiseScore yields praise when enough repetitions have passed since the last
// one. Everything else is a plain count.
func (p Policy) Decide(rep counter.RepetitionData, lastPraise uint32) coach.Kind {
	if len(rep.Issues()) > 0 {
		return coach.KindCorrective
	}

	if rep.FormScore > p.PraiseScore && p.praiseAllowed(rep.RepNumber, lastPraise) {
		return coach.KindPraise
	}
	return coach.KindCount
}

func (p Policy) praiseAllowed(rep, lastPraise uint32) bool {
	if lastPraise == 0 || rep < lastPraise {
		return true
	}
	return rep-lastPraise >= p.PraiseInterval
}
