//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/MrEthical07/goSession/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const consistencyAddress = "0x00000000000000000000000000000000000000bb"

func TestStoreConsistencyDeleteIsIdempotent(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.Create(ctx, makeSession("sid-delete", consistencyAddress)))
	require.NoError(t, env.store.Delete(ctx, "sid-delete"), "first delete")
	require.NoError(t, env.store.Delete(ctx, "sid-delete"), "second delete")

	list, err := env.store.ListByAddress(ctx, consistencyAddress)
	require.NoError(t, err)
	assert.Empty(t, list, "address view")
	if env.mr.Exists("ita:" + consistencyAddress) {
		members, _ := env.mr.Members("ita:" + consistencyAddress)
		assert.Empty(t, members, "index set")
	}
}

func TestStoreConsistencyUpdateRacingDeleteNeverResurrects(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, env.store.Create(ctx, makeSession(fmt.Sprintf("sid-race-%d", i), consistencyAddress)))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("sid-race-%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = env.store.Delete(ctx, id)
		}()
		go func() {
			defer wg.Done()
			sess := makeSession(id, consistencyAddress)
			sess.Metadata = map[string]any{"racing": true}
			if err := env.store.Update(ctx, sess); err != nil && !errors.Is(err, session.ErrNotFound) {
				assert.NoError(t, err, "update %s", id)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("sid-race-%d", i)
		_, err := env.store.Get(ctx, id)
		require.ErrorIs(t, err, session.ErrNotFound, "session %s survived delete", id)
	}
}

func TestStoreConsistencyReconcileAfterIndexLoss(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.Create(ctx, makeSession("sid-lost", consistencyAddress)))
	env.mr.Del("ita:" + consistencyAddress)

	res, err := env.store.RunReconciliation(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reindexed)

	list, err := env.store.ListByAddress(ctx, consistencyAddress)
	require.NoError(t, err)
	require.Len(t, list, 1, "the lost session is back in the address view")
	assert.Equal(t, "sid-lost", list[0].ID)
}
