package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikilabs/kiki-reminders/internal/model"
	"github.com/kikilabs/kiki-reminders/internal/store"
	"github.com/kikilabs/kiki-reminders/internal/store/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := sqlite.New("")
	require.NoError(t, err)
	return NewService(st)
}

func TestNormalizeTask(t *testing.T) {
	assert.Equal(t, "take pills", NormalizeTask("  Take   Pills "))
	assert.Equal(t, "", NormalizeTask("   "))
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 7, 3, 12, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, "owner-a", "   ", at)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Create(ctx, "", "take pills", at)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Create(ctx, "owner-a", "take pills", time.Time{})
	assert.ErrorIs(t, err, model.ErrValidation)

	r, err := svc.Create(ctx, "owner-a", " Take  Pills ", at)
	require.NoError(t, err)
	assert.Equal(t, "take pills", r.Task)
}

func TestCreateThenFindIsUnique(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 7, 3, 10, 0, 0, 0, time.FixedZone("SGT", 8*3600))

	_, err := svc.Create(ctx, "owner-a", "medicine", at)
	require.NoError(t, err)

	q := at
	got, err := svc.FindCandidates(ctx, "owner-a", "medicine", &q)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFindCandidatesToleranceWindow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 7, 3, 10, 0, 0, 0, time.FixedZone("SGT", 8*3600))
	_, err := svc.Create(ctx, "owner-a", "medicine", at)
	require.NoError(t, err)

	inside := at.Add(30 * time.Second)
	got, err := svc.FindCandidates(ctx, "owner-a", "medicine", &inside)
	require.NoError(t, err)
	assert.Len(t, got, 1, "30s off must match the ±1 min window")

	outside := at.Add(2 * time.Minute)
	got, err = svc.FindCandidates(ctx, "owner-a", "medicine", &outside)
	require.NoError(t, err)
	assert.Empty(t, got, "2 min off must miss the ±1 min window")

	// time but no task disambiguates across tasks
	got, err = svc.FindCandidates(ctx, "owner-a", "", &inside)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// neither task nor time is a validation error, not a store query
	_, err = svc.FindCandidates(ctx, "owner-a", "", nil)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestFindCandidatesCapped(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := time.Date(2025, 7, 3, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		_, err := svc.Create(ctx, "owner-a", "medicine", base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	got, err := svc.FindCandidates(ctx, "owner-a", "medicine", nil)
	require.NoError(t, err)
	assert.Len(t, got, DefaultCandidateLimit)
}

func TestResolveOwner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// payload wins and is remembered
	owner, err := svc.ResolveOwner(ctx, "sess-1", "client-42")
	require.NoError(t, err)
	assert.Equal(t, "client-42", owner)

	// later turn without payload falls back to the stored mapping
	owner, err = svc.ResolveOwner(ctx, "sess-1", "")
	require.NoError(t, err)
	assert.Equal(t, "client-42", owner)

	// unknown session with no payload keys off the session id, durably
	owner, err = svc.ResolveOwner(ctx, "sess-2", "")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", owner)
	owner, err = svc.ResolveOwner(ctx, "sess-2", "")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", owner)
}

// flakySessions fails the next Get with a non-NotFound error, standing in
// for a transient database outage.
type flakySessions struct {
	inner    store.Sessions
	failNext bool
}

func (f *flakySessions) Put(ctx context.Context, sessionID, ownerID string) error {
	return f.inner.Put(ctx, sessionID, ownerID)
}

func (f *flakySessions) Get(ctx context.Context, sessionID string) (string, error) {
	if f.failNext {
		f.failNext = false
		return "", errors.New("connection reset")
	}
	return f.inner.Get(ctx, sessionID)
}

type flakySessionsStore struct {
	store.Store
	sessions *flakySessions
}

func (s *flakySessionsStore) Sessions() store.Sessions { return s.sessions }

func TestResolveOwnerStoreFailureDoesNotRebindSession(t *testing.T) {
	st, err := sqlite.New("")
	require.NoError(t, err)
	flaky := &flakySessions{inner: st.Sessions()}
	svc := NewService(&flakySessionsStore{Store: st, sessions: flaky})
	ctx := context.Background()

	owner, err := svc.ResolveOwner(ctx, "sess-1", "client-42")
	require.NoError(t, err)
	require.Equal(t, "client-42", owner)

	// a transient lookup failure surfaces as an error instead of minting a
	// new owner over the existing binding
	flaky.failNext = true
	_, err = svc.ResolveOwner(ctx, "sess-1", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrNotFound)

	// once the store recovers the original mapping is intact
	owner, err = svc.ResolveOwner(ctx, "sess-1", "")
	require.NoError(t, err)
	assert.Equal(t, "client-42", owner)
}
