package convctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikilabs/kiki-reminders/internal/dialogflow"
)

const session = "projects/p/agent/sessions/abc"

func requestWith(contexts ...dialogflow.Context) *dialogflow.WebhookRequest {
	return &dialogflow.WebhookRequest{
		Session:     session,
		QueryResult: dialogflow.QueryResult{OutputContexts: contexts},
	}
}

func TestParamReadsRequestContexts(t *testing.T) {
	s := New(requestWith(dialogflow.Context{
		Name:          dialogflow.ContextName(session, "awaiting_time"),
		LifespanCount: 2,
		Parameters:    map[string]interface{}{"task": "take pills"},
	}))

	v, ok := s.Param("awaiting_time", "task")
	require.True(t, ok)
	assert.Equal(t, "take pills", v)
}

func TestLifespanZeroIsInvisible(t *testing.T) {
	s := New(requestWith(dialogflow.Context{
		Name:          dialogflow.ContextName(session, "awaiting_time"),
		LifespanCount: 0,
		Parameters:    map[string]interface{}{"task": "take pills"},
	}))

	assert.False(t, s.Has("awaiting_time"))
	_, ok := s.Param("awaiting_time", "task")
	assert.False(t, ok)
}

func TestExactTagBeatsSubstringMatch(t *testing.T) {
	// Two tags sharing a substring: the exact tag must win even when the
	// longer name appears first in the list.
	s := New(requestWith(
		dialogflow.Context{
			Name:          dialogflow.ContextName(session, "awaiting_update_selection_old"),
			LifespanCount: 2,
			Parameters:    map[string]interface{}{"id": "stale"},
		},
		dialogflow.Context{
			Name:          dialogflow.ContextName(session, "awaiting_update_selection"),
			LifespanCount: 2,
			Parameters:    map[string]interface{}{"id": "fresh"},
		},
	))

	v, ok := s.Param("awaiting_update_selection", "id")
	require.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestSubstringFallback(t *testing.T) {
	s := New(requestWith(dialogflow.Context{
		Name:          session + "/contexts/generated_awaiting_time_followup",
		LifespanCount: 1,
		Parameters:    map[string]interface{}{"task": "water plants"},
	}))

	v, ok := s.Param("awaiting_time", "task")
	require.True(t, ok)
	assert.Equal(t, "water plants", v)
}

func TestEmittedContextIsReadableSameTurn(t *testing.T) {
	s := New(requestWith())
	s.Emit("awaiting_deletion_confirmation", 2, map[string]string{"id": "r-1"})

	v, ok := s.Param("awaiting_deletion_confirmation", "id")
	require.True(t, ok)
	assert.Equal(t, "r-1", v)
}

func TestEmitReplacesPriorEmission(t *testing.T) {
	s := New(requestWith())
	s.Emit("awaiting_time", 2, map[string]string{"task": "old"})
	s.Emit("awaiting_time", 2, map[string]string{"task": "new"})

	out := s.Output()
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].Parameters["task"])
}

func TestClearEmitsLifespanZero(t *testing.T) {
	s := New(requestWith())
	s.Emit("awaiting_deletion_confirmation", 2, map[string]string{"id": "r-1"})
	s.Clear("awaiting_deletion_confirmation", "awaiting_deletion_selection")

	out := s.Output()
	require.Len(t, out, 2)
	for _, c := range out {
		assert.Equal(t, 0, c.LifespanCount)
		assert.Empty(t, c.Parameters)
	}
	assert.False(t, s.Has("awaiting_deletion_confirmation"))
}

func TestNumericParamCoercion(t *testing.T) {
	s := New(requestWith(dialogflow.Context{
		Name:          dialogflow.ContextName(session, "awaiting_deletion_selection"),
		LifespanCount: 2,
		Parameters:    map[string]interface{}{"number": float64(2)},
	}))

	v, ok := s.Param("awaiting_deletion_selection", "number")
	require.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestOutputUsesFullContextNames(t *testing.T) {
	s := New(requestWith())
	s.Emit("awaiting_task", 2, map[string]string{"when": "2025-07-03T10:00:00Z"})

	out := s.Output()
	require.Len(t, out, 1)
	assert.Equal(t, session+"/contexts/awaiting_task", out[0].Name)
	assert.Equal(t, "awaiting_task", dialogflow.ContextTag(out[0].Name))
}
