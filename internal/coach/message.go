// Package coach builds feedback messages for completed repetitions and
// delivers them to coaching collaborators.
package coach

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/formcoach/internal/classifier"
	"github.com/ayusman/formcoach/internal/counter"
)

// Kind is the type of feedback carried by a Message.
type Kind string

const (
	// KindCorrective points out sub-threshold form metrics.
	KindCorrective Kind = "corrective"
	// KindPraise acknowledges consistently excellent form.
	KindPraise Kind = "praise"
	// KindCount is a lightweight repetition count with no analysis.
	KindCount Kind = "count"
)

// Detailed reports whether the kind carries a full summary.
func (k Kind) Detailed() bool {
	return k == KindCorrective || k == KindPraise
}

// Message is one feedback event for a coaching collaborator.
type Message struct {
	ID        string                   `json:"id"`
	Kind      Kind                     `json:"kind"`
	SessionID string                   `json:"session_id"`
	Exercise  string                   `json:"exercise"`
	RepNumber uint32                   `json:"rep_number"`
	Text      string                   `json:"text"`
	Issues    []classifier.Metric      `json:"issues,omitempty"`
	Rep       *counter.RepetitionData  `json:"rep,omitempty"`
	History   []counter.RepetitionData `json:"history,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
}

// NewMessage builds a message of the given kind for rep. Count messages carry
// only the repetition number; detailed kinds carry the summary, the rep and
// its history.
func NewMessage(kind Kind, sessionID, exercise string, rep counter.RepetitionData, history []counter.RepetitionData) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		SessionID: sessionID,
		Exercise:  exercise,
		RepNumber: rep.RepNumber,
		CreatedAt: time.Now(),
	}

	if !kind.Detailed() {
		msg.Text = strconv.FormatUint(uint64(rep.RepNumber), 10)
		return msg
	}

	r := rep
	msg.Rep = &r
	msg.Issues = rep.Issues()
	msg.History = append([]counter.RepetitionData(nil), history...)
	msg.Text = BuildSummary(kind, exercise, rep, history)
	return msg
}

// BuildSummary renders the system-context text for a detailed message: the
// exercise, recent repetition history, the current repetition and any
// feedback for sub-threshold metrics.
func BuildSummary(kind Kind, exercise string, rep counter.RepetitionData, history []counter.RepetitionData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Exercise: %s\n", exercise)

	if len(history) > 0 {
		b.WriteString("Recent repetitions:\n")
		for _, h := range history {
			fmt.Fprintf(&b, "- %s\n", repLine(h))
		}
	}

	fmt.Fprintf(&b, "Current repetition: %s\n", repLine(rep))
	for _, m := range rep.FormMetrics {
		fmt.Fprintf(&b, "  %s: %.2f (threshold %.2f)\n", m.Name, m.Score, m.Threshold)
	}

	switch issues := rep.Issues(); {
	case len(issues) > 0:
		b.WriteString("Form issues:\n")
		for _, m := range issues {
			fmt.Fprintf(&b, "- %s\n", m.Message)
		}
	case kind == KindPraise:
		b.WriteString("Form is excellent. Encourage the user to keep it up.\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func repLine(r counter.RepetitionData) string {
	return fmt.Sprintf("rep %d, form %.1f/10 (%s), %.1fs", r.RepNumber, r.FormScore, r.Quality, r.Duration.Seconds())
}
