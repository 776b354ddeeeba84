package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultBackend fails selected operations to simulate partial writes.
type faultBackend struct {
	kv.Backend
	failAddToSet bool
	failExpire   bool
}

func (f *faultBackend) AddToSet(ctx context.Context, setKey, member string) (bool, error) {
	if f.failAddToSet {
		return false, fmt.Errorf("%w: injected sadd failure", kv.ErrBackendUnavailable)
	}
	return f.Backend.AddToSet(ctx, setKey, member)
}

func (f *faultBackend) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.failExpire {
		return false, fmt.Errorf("%w: injected expire failure", kv.ErrBackendUnavailable)
	}
	return f.Backend.Expire(ctx, key, ttl)
}

func sessionIDs(list []*Session) []string {
	ids := make([]string, 0, len(list))
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestCreateThenGet(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession("sid-1")
	sess.Address = strings.ToUpper(testAddress[:2]) + strings.ToUpper(testAddress[2:])
	sess.Metadata = map[string]any{"connector": "injected"}
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, testAddress, got.Address, "address is normalized")
	assert.Equal(t, int64(8453), got.ChainID)
	assert.True(t, got.ConnectedAt.Equal(sess.ConnectedAt))
	assert.Equal(t, "injected", got.Metadata["connector"])
	assert.Equal(t, 24*time.Hour, mr.TTL(store.key("sid-1")), "primary ttl")
	assert.Equal(t, 24*time.Hour, mr.TTL(store.addressKey(testAddress)), "index ttl")
}

func TestCreateRejectsInvalidSession(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	assert.ErrorIs(t, store.Create(ctx, nil), ErrInvalidSession)
	assert.ErrorIs(t, store.Create(ctx, &Session{ID: "x"}), ErrInvalidSession, "missing address")
}

func TestGetMissingAndExpired(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Create(ctx, testSession("sid-1")))
	mr.FastForward(25 * time.Hour)
	_, err = store.Get(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrNotFound, "after ttl")
}

func TestGetCorruptRecordIsNotFoundAndDecodeError(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()

	require.NoError(t, mr.Set(store.key("sid-bad"), `{"v":1,"id":"sid-bad"}`))
	_, err := store.Get(context.Background(), "sid-bad")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestGetRejectsRecordStoredUnderWrongKey(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()

	data, err := Encode(testSession("sid-other"))
	require.NoError(t, err)
	require.NoError(t, mr.Set(store.key("sid-1"), string(data)))

	_, err = store.Get(context.Background(), "sid-1")
	assert.ErrorIs(t, err, ErrDecode, "id mismatch")
}

func TestUpdateRestartsTTL(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession("sid-1")
	require.NoError(t, store.Create(ctx, sess))

	mr.FastForward(23 * time.Hour)
	require.Equal(t, time.Hour, mr.TTL(store.key("sid-1")), "ttl left before update")

	sess.ChainID = 1
	require.NoError(t, store.Update(ctx, sess))
	assert.Equal(t, 24*time.Hour, mr.TTL(store.key("sid-1")), "ttl restarted")

	mr.FastForward(2 * time.Hour)
	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err, "get after original expiry horizon")
	assert.Equal(t, int64(1), got.ChainID)
}

func TestUpdateLeavesIndexUntouched(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession("sid-1")
	require.NoError(t, store.Create(ctx, sess))
	mr.FastForward(time.Hour)
	require.NoError(t, store.Update(ctx, sess))

	assert.Equal(t, 23*time.Hour, mr.TTL(store.addressKey(testAddress)), "index ttl untouched")
}

func TestUpdateDoesNotResurrectDeletedSession(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession("sid-1")
	require.NoError(t, store.Create(ctx, sess))
	require.NoError(t, store.Delete(ctx, "sid-1"))

	assert.ErrorIs(t, store.Update(ctx, sess), ErrNotFound)
	assert.False(t, mr.Exists(store.key("sid-1")), "update recreated a deleted record")
}

func TestUpdateRejectsUnencodableMetadata(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession("sid-1")
	require.NoError(t, store.Create(ctx, sess))
	sess.Metadata = map[string]any{"bad": func() {}}

	assert.ErrorIs(t, store.Update(ctx, sess), ErrMetadataInvalid)
}

func TestCreateIndexFailureIsDegradedButReadable(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	faulty := &faultBackend{Backend: store.backend, failAddToSet: true}
	degraded := NewStore(faulty, Config{Prefix: "ws", TTL: 24 * time.Hour})

	err := degraded.Create(ctx, testSession("sid-1"))
	assert.ErrorIs(t, err, ErrIndexDegraded)
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)

	_, err = store.Get(ctx, "sid-1")
	require.NoError(t, err, "record stays readable by id")
	list, err := store.ListByAddress(ctx, testAddress)
	require.NoError(t, err)
	assert.Empty(t, sessionIDs(list), "degraded session is undiscoverable by address")

	res, err := store.RunReconciliation(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reindexed)

	list, err = store.ListByAddress(ctx, testAddress)
	require.NoError(t, err)
	assert.Equal(t, []string{"sid-1"}, sessionIDs(list))
	assert.Positive(t, mr.TTL(store.addressKey(testAddress)), "reindexed set carries a ttl")
}

func TestCreatePrimaryFailureFailsLoudly(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()

	mr.SetError("forced failure")
	err := store.Create(context.Background(), testSession("sid-1"))
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)
	assert.NotErrorIs(t, err, ErrIndexDegraded)
}

func TestListByAddressTwoSessions(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	for _, id := range []string{"sid-a", "sid-b"} {
		require.NoError(t, store.Create(ctx, testSession(id)), "create %s", id)
	}

	list, err := store.ListByAddress(ctx, strings.ToUpper(testAddress))
	require.NoError(t, err)
	assert.Equal(t, []string{"sid-a", "sid-b"}, sessionIDs(list))

	require.NoError(t, store.Delete(ctx, "sid-a"))
	list, err = store.ListByAddress(ctx, testAddress)
	require.NoError(t, err)
	assert.Equal(t, []string{"sid-b"}, sessionIDs(list))
}

func TestListByAddressDropsStaleMembersLazily(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession("sid-1")))
	mr.Del(store.key("sid-1"))

	list, err := store.ListByAddress(ctx, testAddress)
	require.NoError(t, err)
	assert.Empty(t, list, "stale member is dropped from the result")

	ok, _ := mr.SIsMember(store.addressKey(testAddress), "sid-1")
	assert.True(t, ok, "stale member remains until reconciliation")
}

func TestListAll(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	a := testSession("sid-a")
	b := testSession("sid-b")
	b.Address = "0xdef0000000000000000000000000000000000002"
	for _, s := range []*Session{a, b} {
		require.NoError(t, store.Create(ctx, s))
	}
	require.NoError(t, mr.Set(store.key("sid-corrupt"), "garbage"))

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sid-a", "sid-b"}, sessionIDs(all))
}

func TestSessionLifecycleScenario(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession("sid-scenario")
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8453), got.ChainID)

	got.ChainID = 1
	require.NoError(t, store.Update(ctx, got))
	got, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ChainID)

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.ListByAddress(ctx, testAddress)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListByAddressMatchesRecordsWrittenWithMixedCase(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	legacy := testSession("sid-legacy")
	legacy.Address = "0xABC0000000000000000000000000000000000001"
	data, err := Encode(legacy)
	require.NoError(t, err)
	require.NoError(t, mr.Set(store.key(legacy.ID), string(data)))
	mr.SetTTL(store.key(legacy.ID), time.Hour)
	_, err = mr.SAdd(store.addressKey(testAddress), legacy.ID)
	require.NoError(t, err)
	mr.SetTTL(store.addressKey(testAddress), time.Hour)

	list, err := store.ListByAddress(ctx, testAddress)
	require.NoError(t, err)
	assert.Equal(t, []string{legacy.ID}, sessionIDs(list), "mixed-case record is listed")

	res, err := store.RunReconciliation(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Removed, "sweep removed a correctly indexed id")
}
