package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikilabs/kiki-reminders/internal/convctx"
	"github.com/kikilabs/kiki-reminders/internal/dialogflow"
	"github.com/kikilabs/kiki-reminders/internal/reminders"
	"github.com/kikilabs/kiki-reminders/internal/store/sqlite"
)

const session = "projects/p/agent/sessions/flow-test"

var loc = func() *time.Location {
	l, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		panic(err)
	}
	return l
}()

func newTestController(t *testing.T) (*Controller, *reminders.Service) {
	t.Helper()
	st, err := sqlite.New("")
	require.NoError(t, err)
	svc := reminders.NewService(st)
	return NewController(svc, loc), svc
}

func emptySet() *convctx.Set {
	return convctx.New(&dialogflow.WebhookRequest{Session: session})
}

// nextTurn simulates the engine echoing this turn's contexts back.
func nextTurn(cs *convctx.Set) *convctx.Set {
	return convctx.New(&dialogflow.WebhookRequest{
		Session: session,
		QueryResult: dialogflow.QueryResult{
			OutputContexts: cs.Output(),
		},
	})
}

func TestDeleteConfirmationFlow(t *testing.T) {
	ctrl, svc := newTestController(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "owner-a", "medicine", time.Date(2025, 7, 3, 10, 0, 0, 0, loc))
	require.NoError(t, err)

	cs := emptySet()
	msg := ctrl.BeginDelete(cs, r)
	assert.Contains(t, msg, "'medicine'")
	assert.Contains(t, msg, "10:00 AM on July 03, 2025")

	cs2 := nextTurn(cs)
	msg, err = ctrl.ConfirmDelete(ctx, cs2, "owner-a")
	require.NoError(t, err)
	assert.Contains(t, msg, "deleted")

	_, err = svc.Get(ctx, "owner-a", r.ID)
	assert.Error(t, err)
}

func TestConfirmDeleteTwiceIsIdempotent(t *testing.T) {
	ctrl, svc := newTestController(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "owner-a", "medicine", time.Date(2025, 7, 3, 10, 0, 0, 0, loc))
	require.NoError(t, err)

	cs := emptySet()
	ctrl.BeginDelete(cs, r)

	// A replayed confirmation turn: the first delete succeeds, the second
	// finds nothing but must not surface an error.
	confirm := nextTurn(cs)
	_, err = ctrl.ConfirmDelete(ctx, confirm, "owner-a")
	require.NoError(t, err)

	replay := nextTurn(cs)
	msg, err := ctrl.ConfirmDelete(ctx, replay, "owner-a")
	require.NoError(t, err)
	assert.Contains(t, msg, "deleted")
}

func TestCancelDeleteLeavesReminder(t *testing.T) {
	ctrl, svc := newTestController(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "owner-a", "medicine", time.Date(2025, 7, 3, 10, 0, 0, 0, loc))
	require.NoError(t, err)

	cs := emptySet()
	ctrl.BeginDelete(cs, r)
	msg := ctrl.CancelDelete(nextTurn(cs))
	assert.Contains(t, msg, "won't delete")

	_, err = svc.Get(ctx, "owner-a", r.ID)
	assert.NoError(t, err)
}

func TestConfirmDeleteWithoutPendingFlow(t *testing.T) {
	ctrl, _ := newTestController(t)
	msg, err := ctrl.ConfirmDelete(context.Background(), emptySet(), "owner-a")
	require.NoError(t, err)
	assert.Contains(t, msg, "don't have a deletion")
}

func TestUpdateFlowWithKnownNewTime(t *testing.T) {
	ctrl, svc := newTestController(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "owner-a", "medicine", time.Date(2025, 7, 3, 10, 0, 0, 0, loc))
	require.NoError(t, err)

	newAt := time.Date(2025, 7, 3, 20, 0, 0, 0, loc)
	cs := emptySet()
	msg := ctrl.BeginUpdate(cs, r, &newAt)
	assert.Contains(t, msg, "from 10:00 AM on July 03, 2025 to 08:00 PM on July 03, 2025")

	msg, err = ctrl.ConfirmUpdate(ctx, nextTurn(cs), "owner-a")
	require.NoError(t, err)
	assert.Contains(t, msg, "moved")

	got, err := svc.Get(ctx, "owner-a", r.ID)
	require.NoError(t, err)
	assert.True(t, got.RemindAt.Equal(newAt))
}

func TestUpdateFlowAsksForMissingTime(t *testing.T) {
	ctrl, svc := newTestController(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "owner-a", "medicine", time.Date(2025, 7, 3, 10, 0, 0, 0, loc))
	require.NoError(t, err)

	cs := emptySet()
	msg := ctrl.BeginUpdate(cs, r, nil)
	assert.Contains(t, msg, "What time should I move it to?")

	newAt := time.Date(2025, 7, 3, 20, 0, 0, 0, loc)
	cs2 := nextTurn(cs)
	msg, ok := ctrl.CaptureNewTime(cs2, newAt)
	require.True(t, ok)
	assert.Contains(t, msg, "Is that right?")

	msg, err = ctrl.ConfirmUpdate(ctx, nextTurn(cs2), "owner-a")
	require.NoError(t, err)
	assert.Contains(t, msg, "moved")

	got, err := svc.Get(ctx, "owner-a", r.ID)
	require.NoError(t, err)
	assert.True(t, got.RemindAt.Equal(newAt))
}

func TestConfirmUpdateTwiceSameTime(t *testing.T) {
	ctrl, svc := newTestController(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "owner-a", "medicine", time.Date(2025, 7, 3, 10, 0, 0, 0, loc))
	require.NoError(t, err)

	newAt := time.Date(2025, 7, 3, 20, 0, 0, 0, loc)
	cs := emptySet()
	ctrl.BeginUpdate(cs, r, &newAt)

	first := nextTurn(cs)
	_, err = ctrl.ConfirmUpdate(ctx, first, "owner-a")
	require.NoError(t, err)

	replay := nextTurn(cs)
	_, err = ctrl.ConfirmUpdate(ctx, replay, "owner-a")
	require.NoError(t, err)

	got, err := svc.Get(ctx, "owner-a", r.ID)
	require.NoError(t, err)
	assert.True(t, got.RemindAt.Equal(newAt), "replayed confirmation must leave the time unchanged")
}

func TestConfirmUpdateAfterReminderVanished(t *testing.T) {
	ctrl, svc := newTestController(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "owner-a", "medicine", time.Date(2025, 7, 3, 10, 0, 0, 0, loc))
	require.NoError(t, err)

	newAt := time.Date(2025, 7, 3, 20, 0, 0, 0, loc)
	cs := emptySet()
	ctrl.BeginUpdate(cs, r, &newAt)

	require.NoError(t, svc.Delete(ctx, "owner-a", r.ID))

	msg, err := ctrl.ConfirmUpdate(ctx, nextTurn(cs), "owner-a")
	require.NoError(t, err)
	assert.Contains(t, msg, "gone already")
}

func TestNewFlowClearsOtherFlows(t *testing.T) {
	ctrl, svc := newTestController(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, "owner-a", "medicine", time.Date(2025, 7, 3, 10, 0, 0, 0, loc))
	require.NoError(t, err)

	cs := emptySet()
	ctrl.BeginDelete(cs, r)
	ctrl.BeginUpdate(cs, r, nil)

	// the delete confirmation must have been cleared by the update flow
	cleared := map[string]bool{}
	for _, c := range cs.Output() {
		if c.LifespanCount == 0 {
			cleared[dialogflow.ContextTag(c.Name)] = true
		}
	}
	assert.True(t, cleared[TagDeleteConfirmation])
}
