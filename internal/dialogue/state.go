package dialogue

import (
	"github.com/kikilabs/kiki-reminders/internal/convctx"
	"github.com/kikilabs/kiki-reminders/internal/flow"
)

// StateKind names the clarifying question currently pending, if any.
type StateKind int

const (
	Idle StateKind = iota
	AwaitingTask
	AwaitingTime
	AwaitingSelection
	AwaitingNewTime
	AwaitingConfirmation
)

// State is the dialogue position for one turn, derived from the live
// contexts. Tag is the context carrying it, empty when Idle.
type State struct {
	Kind StateKind
	Tag  string
}

// DeriveState classifies the turn. Confirmations outrank selections and
// slot-capture states because a pending yes/no question is always the most
// recent thing the user was asked.
func DeriveState(cs *convctx.Set) State {
	ordered := []struct {
		tag  string
		kind StateKind
	}{
		{flow.TagDeleteConfirmation, AwaitingConfirmation},
		{flow.TagUpdateConfirmation, AwaitingConfirmation},
		{flow.TagUpdateNewTime, AwaitingNewTime},
		{flow.TagDeleteSelection, AwaitingSelection},
		{flow.TagUpdateSelection, AwaitingSelection},
		{flow.TagAwaitingTime, AwaitingTime},
		{flow.TagAwaitingTask, AwaitingTask},
	}
	for _, o := range ordered {
		if cs.Has(o.tag) {
			return State{Kind: o.kind, Tag: o.tag}
		}
	}
	return State{Kind: Idle}
}
