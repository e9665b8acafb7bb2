package session_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionkit/sessionkit/core/session"
)

// fakeDatabase is an in-memory session.Database that mirrors the expiry
// semantics of the real backends and counts calls for assertions.
type fakeDatabase struct {
	mu      sync.Mutex
	rows    map[string]fakeRow
	inits   int
	stores  int
	sweeps  int
	deletes int
	fail    error
}

type fakeRow struct {
	payload string
	expires int64
}

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{rows: make(map[string]fakeRow)}
}

func (f *fakeDatabase) Initiate(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.fail
}

func (f *fakeDatabase) Load(_ context.Context, id, _ string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", false, f.fail
	}
	row, ok := f.rows[id]
	if !ok || row.expires <= time.Now().Unix() {
		return "", false, nil
	}
	return row.payload, true, nil
}

func (f *fakeDatabase) Store(_ context.Context, id, payload string, expires int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.stores++
	f.rows[id] = fakeRow{payload: payload, expires: expires}
	return nil
}

func (f *fakeDatabase) DeleteByExpiry(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	now := time.Now().Unix()
	for id, row := range f.rows {
		if row.expires <= now {
			delete(f.rows, id)
		}
	}
	return f.fail
}

func (f *fakeDatabase) DeleteOneByID(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.rows, id)
	return f.fail
}

func (f *fakeDatabase) DeleteAll(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.rows)
	return f.fail
}

func (f *fakeDatabase) Count(_ context.Context, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), f.fail
}

func (f *fakeDatabase) storeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores
}

func newSession(t *testing.T, store *session.Store) string {
	t.Helper()
	id := uuid.NewString()
	store.Insert(store.NewRecord(id))
	require.True(t, store.Service(id))
	return id
}

func TestService_UnknownIdentifier(t *testing.T) {
	t.Parallel()

	store := session.New(nil)

	assert.False(t, store.Service("never-inserted"))

	// Every accessor is a no-op with an absent result, never a failure.
	_, ok := session.Get[string](store, "never-inserted", "k")
	assert.False(t, ok)
	_, ok = session.GetRemove[string](store, "never-inserted", "k")
	assert.False(t, ok)
	store.Set("never-inserted", "k", 1)
	store.RemoveKey("never-inserted", "k")
	store.ClearSessionData("never-inserted")
	store.Renew("never-inserted")
	store.Destroy("never-inserted")
	store.SetLongterm("never-inserted", true)
	store.SetStorable("never-inserted", false)
}

func TestSetGet(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	id := newSession(t, store)

	store.Set(id, "count", 42)
	store.Set(id, "name", "alice")

	count, ok := session.Get[int](store, id, "count")
	require.True(t, ok)
	assert.Equal(t, 42, count)

	name, ok := session.Get[string](store, id, "name")
	require.True(t, ok)
	assert.Equal(t, "alice", name)

	_, ok = session.Get[string](store, id, "missing")
	assert.False(t, ok)
}

func TestGet_TypeMismatchIsAbsent(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	id := newSession(t, store)

	store.Set(id, "k", "not a number")

	_, ok := session.Get[int](store, id, "k")
	assert.False(t, ok, "value that fails to decode must read as absent")

	// The entry itself is untouched and still readable at the right type.
	v, ok := session.Get[string](store, id, "k")
	require.True(t, ok)
	assert.Equal(t, "not a number", v)
}

func TestSet_UnserializableValueDropped(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	id := newSession(t, store)

	store.Set(id, "bad", make(chan int))

	_, ok := session.Get[json.RawMessage](store, id, "bad")
	assert.False(t, ok)
}

func TestGetRemove(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	id := newSession(t, store)

	store.Set(id, "once", "value")

	v, ok := session.GetRemove[string](store, id, "once")
	require.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = session.Get[string](store, id, "once")
	assert.False(t, ok, "get_remove must delete the entry")
}

func TestRemoveKeyAndClear(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	id := newSession(t, store)

	store.Set(id, "a", 1)
	store.Set(id, "b", 2)

	store.RemoveKey(id, "a")
	_, ok := session.Get[int](store, id, "a")
	assert.False(t, ok)

	store.ClearSessionData(id)
	_, ok = session.Get[int](store, id, "b")
	assert.False(t, ok)
}

func TestDestroy_ClearsLazilyOnNextService(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	id := newSession(t, store)

	store.Set(id, "k", "v")
	store.SetLongterm(id, true)
	store.Destroy(id)

	// Within the same cycle the data is still a consistent, un-cleared view.
	v, ok := session.Get[string](store, id, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	rec, ok := store.Lookup(id)
	require.True(t, ok)
	assert.True(t, rec.Destroyed())

	// Next service clears data and resets both flags.
	require.True(t, store.Service(id))
	_, ok = session.Get[string](store, id, "k")
	assert.False(t, ok)
	assert.False(t, rec.Destroyed())
	assert.False(t, rec.Longterm())

	// The identifier stays reusable under the same record.
	store.Set(id, "k2", "fresh")
	v, ok = session.Get[string](store, id, "k2")
	require.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestService_ExpiryConvergesWithDestroy(t *testing.T) {
	t.Parallel()

	// Negative lifespan: every record is created already past its expiry.
	store := session.New(nil, session.WithOptions(session.WithLifespan(-time.Minute)))
	id := uuid.NewString()
	store.Insert(store.NewRecord(id))

	rec, ok := store.Lookup(id)
	require.True(t, ok)
	assert.False(t, rec.Valid(time.Now()))

	store.SetLongterm(id, true)
	store.Set(id, "k", "stale")

	require.True(t, store.Service(id))

	_, ok = session.Get[string](store, id, "k")
	assert.False(t, ok, "expired record must be cleared exactly as a destroyed one")
	assert.False(t, rec.Longterm())
	assert.False(t, rec.Destroyed())
}

func TestService_RefreshesResidencyWindow(t *testing.T) {
	t.Parallel()

	store := session.New(nil, session.WithOptions(
		session.WithMemoryLifespan(60*time.Millisecond),
		session.WithMemorySweepInterval(0),
	))
	id := newSession(t, store)

	// Keep servicing within the window; the record must never be evicted mid-use.
	for i := 0; i < 3; i++ {
		time.Sleep(40 * time.Millisecond)
		require.True(t, store.Service(id))
		require.NoError(t, store.SweepIfDue(context.Background()))
		assert.True(t, store.Resident(id))
	}

	// Stop servicing; the window lapses and the sweep evicts.
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, store.SweepIfDue(context.Background()))
	assert.False(t, store.Resident(id))
	assert.False(t, store.Service(id))
}

func TestSweepIfDue_Idempotent(t *testing.T) {
	t.Parallel()

	store := session.New(nil, session.WithOptions(
		session.WithMemoryLifespan(-time.Minute), // records expire from memory immediately
		session.WithMemorySweepInterval(150*time.Millisecond),
	))

	idA := uuid.NewString()
	store.Insert(store.NewRecord(idA))

	// The first sweep is scheduled one interval from startup.
	require.NoError(t, store.SweepIfDue(context.Background()))
	assert.True(t, store.Resident(idA))

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, store.SweepIfDue(context.Background()))
	assert.False(t, store.Resident(idA))

	// A second call within the interval must not scan again.
	idB := uuid.NewString()
	store.Insert(store.NewRecord(idB))
	require.NoError(t, store.SweepIfDue(context.Background()))
	assert.True(t, store.Resident(idB))
}

func TestSweepIfDue_DatabaseSweep(t *testing.T) {
	t.Parallel()

	db := newFakeDatabase()
	store := session.New(db, session.WithOptions(
		session.WithMemorySweepInterval(time.Hour),
		session.WithDatabaseSweepInterval(100*time.Millisecond),
	))

	require.NoError(t, store.SweepIfDue(context.Background()))
	db.mu.Lock()
	sweeps := db.sweeps
	db.mu.Unlock()
	assert.Equal(t, 0, sweeps, "backend sweep must not run before its first interval elapses")

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, store.SweepIfDue(context.Background()))
	require.NoError(t, store.SweepIfDue(context.Background()))
	db.mu.Lock()
	sweeps = db.sweeps
	db.mu.Unlock()
	assert.Equal(t, 1, sweeps, "only one backend sweep per interval")
}

func TestStorableOptOut_NeverPersisted(t *testing.T) {
	t.Parallel()

	db := newFakeDatabase()
	store := session.New(db)
	id := newSession(t, store)

	store.Set(id, "k", 1)
	store.SetStorable(id, false)

	require.NoError(t, store.StoreSession(context.Background(), id))
	assert.Equal(t, 0, db.storeCalls())

	store.SetStorable(id, true)
	require.NoError(t, store.StoreSession(context.Background(), id))
	assert.Equal(t, 1, db.storeCalls())
}

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()

	db := newFakeDatabase()
	store := session.New(db)
	id := newSession(t, store)

	store.Set(id, "cart", []string{"sku-1", "sku-2"})
	store.Set(id, "visits", 7)
	store.SetLongterm(id, true)
	require.NoError(t, store.StoreSession(context.Background(), id))

	stored, ok := store.Lookup(id)
	require.True(t, ok)

	store.ClearMemory()
	require.False(t, store.Resident(id))

	loaded, err := store.LoadSession(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, id, loaded.ID())
	assert.Equal(t, stored.ExpiresAt().Unix(), loaded.ExpiresAt().Unix())
	assert.True(t, loaded.Longterm())

	store.Insert(loaded)
	cart, ok := session.Get[[]string](store, id, "cart")
	require.True(t, ok)
	assert.Equal(t, []string{"sku-1", "sku-2"}, cart)
	visits, ok := session.Get[int](store, id, "visits")
	require.True(t, ok)
	assert.Equal(t, 7, visits)
}

func TestLoadSession_Absent(t *testing.T) {
	t.Parallel()

	db := newFakeDatabase()
	store := session.New(db)

	rec, err := store.LoadSession(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLoadSession_CorruptPayload(t *testing.T) {
	t.Parallel()

	db := newFakeDatabase()
	db.rows["broken"] = fakeRow{payload: "{not json", expires: time.Now().Add(time.Hour).Unix()}
	store := session.New(db)

	_, err := store.LoadSession(context.Background(), "broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrDecode)
	assert.NotErrorIs(t, err, session.ErrDatabase)
}

func TestLoadSession_NoBackend(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	rec, err := store.LoadSession(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, rec)

	store = session.New(session.NullDatabase{})
	rec, err = store.LoadSession(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRenewAndRotate(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	id := newSession(t, store)
	store.Set(id, "k", "kept")
	store.SetLongterm(id, true)

	store.Renew(id)
	rec, ok := store.Lookup(id)
	require.True(t, ok)
	assert.True(t, rec.Renewed())

	newID := uuid.NewString()
	require.True(t, store.Rotate(id, newID))

	assert.False(t, store.Resident(id), "old identifier must be gone")
	rotated, ok := store.Lookup(newID)
	require.True(t, ok)
	assert.False(t, rotated.Renewed())
	assert.True(t, rotated.Longterm())

	v, ok := session.Get[string](store, newID, "k")
	require.True(t, ok)
	assert.Equal(t, "kept", v, "rotation must not discard data")

	assert.False(t, store.Rotate("missing", uuid.NewString()))
}

func TestCountSessions(t *testing.T) {
	t.Parallel()

	t.Run("in-memory counts residents across sweeps", func(t *testing.T) {
		store := session.New(nil, session.WithOptions(
			session.WithMemoryLifespan(50*time.Millisecond),
			session.WithMemorySweepInterval(0),
		))
		idA := newSession(t, store)
		_ = newSession(t, store)
		assert.EqualValues(t, 2, store.CountSessions(context.Background()))

		time.Sleep(80 * time.Millisecond)
		require.True(t, store.Service(idA)) // keep A resident
		require.NoError(t, store.SweepIfDue(context.Background()))
		assert.EqualValues(t, 1, store.CountSessions(context.Background()))
	})

	t.Run("persistent counts backend records", func(t *testing.T) {
		db := newFakeDatabase()
		store := session.New(db)
		id := newSession(t, store)
		require.NoError(t, store.StoreSession(context.Background(), id))

		assert.EqualValues(t, 1, store.CountSessions(context.Background()))

		n, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}

func TestDestroySessionAndClearAll(t *testing.T) {
	t.Parallel()

	db := newFakeDatabase()
	store := session.New(db)

	idA := newSession(t, store)
	idB := newSession(t, store)
	require.NoError(t, store.StoreSession(context.Background(), idA))
	require.NoError(t, store.StoreSession(context.Background(), idB))

	require.NoError(t, store.DestroySession(context.Background(), idA))
	rec, err := store.LoadSession(context.Background(), idA)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.ClearAll(context.Background()))
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// Backend deletions never touch the in-memory cache.
	assert.True(t, store.Resident(idA))
	assert.True(t, store.Resident(idB))
}

func TestInitiateAndCleanup_NoBackend(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	require.NoError(t, store.Initiate(context.Background()))
	require.NoError(t, store.Cleanup(context.Background()))
	assert.False(t, store.IsPersistent())

	store = session.New(session.NullDatabase{})
	assert.False(t, store.IsPersistent())
	require.NoError(t, store.Initiate(context.Background()))
}

func TestBackendErrorsSurface(t *testing.T) {
	t.Parallel()

	db := newFakeDatabase()
	db.fail = session.ErrDatabase
	store := session.New(db)

	assert.Error(t, store.Initiate(context.Background()))
	assert.Error(t, store.Cleanup(context.Background()))
	_, err := store.Count(context.Background())
	assert.Error(t, err)
	_, err = store.LoadSession(context.Background(), "x")
	assert.Error(t, err)

	// The never-failing observability counter degrades to zero instead.
	assert.Zero(t, store.CountSessions(context.Background()))
}

func TestConcurrentSetSameKey(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	id := newSession(t, store)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			store.Set(id, "k", "v1")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			store.Set(id, "k", "v2")
		}
	}()
	wg.Wait()

	v, ok := session.Get[string](store, id, "k")
	require.True(t, ok)
	assert.Contains(t, []string{"v1", "v2"}, v, "value must be one writer's value, never a torn write")
}
