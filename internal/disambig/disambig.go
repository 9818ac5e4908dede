// Package disambig resolves a candidate set of reminders to none, exactly
// one, or a numbered selection the user must answer, and resolves that
// answer on the following turn.
package disambig

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kikilabs/kiki-reminders/internal/model"
	"github.com/kikilabs/kiki-reminders/internal/timeparse"
)

// Kind tags a Resolution.
type Kind int

const (
	None Kind = iota
	Unique
	Ambiguous
)

// selectionTolerance bounds how far a spoken selection time may sit from a
// candidate's displayed time.
const selectionTolerance = 60 * time.Second

// Candidate is one entry of the selection list round-tripped through a
// conversation context between turns.
type Candidate struct {
	ID          string `json:"id"`
	Task        string `json:"task"`
	DisplayTime string `json:"displayTime"`
	RawTime     string `json:"rawTime"`
}

// Resolution is the outcome of matching a find query.
type Resolution struct {
	Kind       Kind
	Reminder   *model.Reminder
	Candidates []Candidate
}

// Resolve classifies a candidate list. loc is the presentation zone used for
// display times carried into the selection prompt.
func Resolve(matches []*model.Reminder, loc *time.Location) Resolution {
	switch len(matches) {
	case 0:
		return Resolution{Kind: None}
	case 1:
		return Resolution{Kind: Unique, Reminder: matches[0]}
	}
	cands := make([]Candidate, len(matches))
	for i, m := range matches {
		cands[i] = Candidate{
			ID:          m.ID,
			Task:        m.Task,
			DisplayTime: timeparse.FormatDisplay(m.RemindAt, loc),
			RawTime:     m.RemindAt.Format(time.RFC3339),
		}
	}
	return Resolution{Kind: Ambiguous, Candidates: cands}
}

// Prompt builds the numbered (1-based) selection question.
func Prompt(cands []Candidate, verb string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d reminders. Which one would you like to %s?", len(cands), verb)
	for i, c := range cands {
		fmt.Fprintf(&b, "\n%d. '%s' at %s", i+1, c.Task, c.DisplayTime)
	}
	return b.String()
}

// EncodeCandidates serializes a candidate set for storage in a context
// parameter.
func EncodeCandidates(cands []Candidate) (string, error) {
	b, err := json.Marshal(cands)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeCandidates restores a candidate set from a context parameter.
func DecodeCandidates(s string) ([]Candidate, error) {
	var cands []Candidate
	if err := json.Unmarshal([]byte(s), &cands); err != nil {
		return nil, err
	}
	return cands, nil
}

// Select resolves a user's answer against the candidate set. A numeric
// indexText is a list answer and must be within [1, len]; an explicit number
// outside the list is unresolved, never reinterpreted. Non-numeric text falls
// through to selAt, which, when present, is matched against each candidate's
// display time re-parsed back to an instant; the comparison deliberately uses
// what the user was shown, not the internal higher-precision instant.
// Anything else is unresolved; the caller re-prompts and never guesses.
func Select(cands []Candidate, indexText string, selAt *time.Time, loc *time.Location) (Candidate, bool) {
	if indexText = strings.TrimSpace(indexText); indexText != "" {
		if i, err := strconv.Atoi(indexText); err == nil {
			if i < 1 || i > len(cands) {
				return Candidate{}, false
			}
			return cands[i-1], true
		}
	}

	if selAt != nil {
		for _, c := range cands {
			shown, err := timeparse.ParseDisplay(c.DisplayTime, loc)
			if err != nil {
				continue
			}
			d := selAt.Sub(shown)
			if d < 0 {
				d = -d
			}
			if d <= selectionTolerance {
				return c, true
			}
		}
	}
	return Candidate{}, false
}
