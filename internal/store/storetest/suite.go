// Package storetest provides a driver-agnostic conformance suite for
// store.Store implementations. Each backend's tests call RunSuite with a
// constructor for a fresh, empty store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikilabs/kiki-reminders/internal/model"
	"github.com/kikilabs/kiki-reminders/internal/store"
)

// RunSuite exercises the full store contract against a fresh store.
func RunSuite(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("CreateAssignsIDAndStatus", func(t *testing.T) { testCreate(t, newStore(t)) })
	t.Run("FindByTaskOrdersAscending", func(t *testing.T) { testFindByTask(t, newStore(t)) })
	t.Run("FindByTaskHonorsLimit", func(t *testing.T) { testFindLimit(t, newStore(t)) })
	t.Run("WindowMatchesWithinTolerance", func(t *testing.T) { testWindow(t, newStore(t)) })
	t.Run("OwnerIsolation", func(t *testing.T) { testOwnerIsolation(t, newStore(t)) })
	t.Run("CompletedExcluded", func(t *testing.T) { testCompletedExcluded(t, newStore(t)) })
	t.Run("UpdateAndDeleteNotFound", func(t *testing.T) { testMutationsNotFound(t, newStore(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
}

func mustCreate(t *testing.T, st store.Store, owner, task string, at time.Time) *model.Reminder {
	t.Helper()
	r, err := st.Reminders().Create(context.Background(), &model.Reminder{
		OwnerID:  owner,
		Task:     task,
		RemindAt: at,
	})
	require.NoError(t, err)
	return r
}

func testCreate(t *testing.T, st store.Store) {
	at := time.Date(2025, 7, 3, 2, 0, 0, 0, time.UTC)
	r := mustCreate(t, st, "owner-a", "take pills", at)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, model.StatusPending, r.Status)
	assert.False(t, r.CreatedAt.IsZero())

	got, err := st.Reminders().Get(context.Background(), "owner-a", r.ID)
	require.NoError(t, err)
	assert.Equal(t, "take pills", got.Task)
	assert.True(t, got.RemindAt.Equal(at))
}

func testFindByTask(t *testing.T, st store.Store) {
	ctx := context.Background()
	base := time.Date(2025, 7, 3, 2, 0, 0, 0, time.UTC)
	mustCreate(t, st, "owner-a", "medicine", base.Add(2*time.Hour))
	mustCreate(t, st, "owner-a", "medicine", base)
	mustCreate(t, st, "owner-a", "medicine", base.Add(time.Hour))

	got, err := st.Reminders().FindByTask(ctx, "owner-a", "medicine", 5)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].RemindAt.Before(got[1].RemindAt))
	assert.True(t, got[1].RemindAt.Before(got[2].RemindAt))
}

func testFindLimit(t *testing.T, st store.Store) {
	ctx := context.Background()
	base := time.Date(2025, 7, 3, 2, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		mustCreate(t, st, "owner-a", "medicine", base.Add(time.Duration(i)*time.Hour))
	}

	got, err := st.Reminders().FindByTask(ctx, "owner-a", "medicine", 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func testWindow(t *testing.T, st store.Store) {
	ctx := context.Background()
	// 2025-07-03T10:00:00+08:00
	at := time.Date(2025, 7, 3, 10, 0, 0, 0, time.FixedZone("SGT", 8*3600))
	mustCreate(t, st, "owner-a", "medicine", at)

	tol := time.Minute

	// 30 seconds off: inside the ±1 min window
	q := at.Add(30 * time.Second)
	got, err := st.Reminders().FindByTaskInWindow(ctx, "owner-a", "medicine", q.Add(-tol), q.Add(tol))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// 2 minutes off: outside
	q = at.Add(2 * time.Minute)
	got, err = st.Reminders().FindByTaskInWindow(ctx, "owner-a", "medicine", q.Add(-tol), q.Add(tol))
	require.NoError(t, err)
	assert.Empty(t, got)

	// task-less window lookup
	q = at.Add(30 * time.Second)
	got, err = st.Reminders().FindInWindow(ctx, "owner-a", q.Add(-tol), q.Add(tol))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func testOwnerIsolation(t *testing.T, st store.Store) {
	ctx := context.Background()
	at := time.Date(2025, 7, 3, 2, 0, 0, 0, time.UTC)
	rA := mustCreate(t, st, "owner-a", "medicine", at)
	mustCreate(t, st, "owner-b", "medicine", at)

	got, err := st.Reminders().FindByTask(ctx, "owner-a", "medicine", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rA.ID, got[0].ID)

	// owner B must not be able to touch A's reminder
	err = st.Reminders().Delete(ctx, "owner-b", rA.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = st.Reminders().Get(ctx, "owner-b", rA.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testCompletedExcluded(t *testing.T, st store.Store) {
	ctx := context.Background()
	at := time.Date(2025, 7, 3, 2, 0, 0, 0, time.UTC)
	r := mustCreate(t, st, "owner-a", "medicine", at)

	require.NoError(t, st.Reminders().MarkCompleted(ctx, "owner-a", r.ID))

	got, err := st.Reminders().FindByTask(ctx, "owner-a", "medicine", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = st.Reminders().Get(ctx, "owner-a", r.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// completed is terminal: a second completion reports not found
	err = st.Reminders().MarkCompleted(ctx, "owner-a", r.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testMutationsNotFound(t *testing.T, st store.Store) {
	ctx := context.Background()
	at := time.Date(2025, 7, 3, 2, 0, 0, 0, time.UTC)
	r := mustCreate(t, st, "owner-a", "medicine", at)

	newAt := at.Add(time.Hour)
	require.NoError(t, st.Reminders().UpdateRemindAt(ctx, "owner-a", r.ID, newAt))
	got, err := st.Reminders().Get(ctx, "owner-a", r.ID)
	require.NoError(t, err)
	assert.True(t, got.RemindAt.Equal(newAt))

	// applying the same instant again is a no-op, not an error
	require.NoError(t, st.Reminders().UpdateRemindAt(ctx, "owner-a", r.ID, newAt))

	require.NoError(t, st.Reminders().Delete(ctx, "owner-a", r.ID))
	assert.ErrorIs(t, st.Reminders().Delete(ctx, "owner-a", r.ID), model.ErrNotFound)
	assert.ErrorIs(t, st.Reminders().UpdateRemindAt(ctx, "owner-a", r.ID, newAt), model.ErrNotFound)
}

func testSessions(t *testing.T, st store.Store) {
	ctx := context.Background()

	_, err := st.Sessions().Get(ctx, "sess-1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, st.Sessions().Put(ctx, "sess-1", "owner-a"))
	owner, err := st.Sessions().Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-a", owner)

	// re-binding a session overwrites
	require.NoError(t, st.Sessions().Put(ctx, "sess-1", "owner-b"))
	owner, err = st.Sessions().Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-b", owner)
}
