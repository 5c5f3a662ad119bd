package replay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewStore(rdb, time.Hour)
}

func TestBeginCompleteReplay(t *testing.T) {
	_, s := setupStore(t)
	ctx := context.Background()

	state, _, err := s.Begin(ctx, "so-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, StateNew, state)

	state, _, err = s.Begin(ctx, "so-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, StateInFlight, state)

	body := json.RawMessage(`{"batch_id":"b-1","succeeded":3}`)
	require.NoError(t, s.Complete(ctx, "so-1", "key-1", Entry{Status: 200, Body: body}))

	state, e, err := s.Begin(ctx, "so-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Equal(t, 200, e.Status)
	assert.JSONEq(t, string(body), string(e.Body))
}

func TestKeysAreScopedPerOrder(t *testing.T) {
	_, s := setupStore(t)
	ctx := context.Background()

	state, _, err := s.Begin(ctx, "so-1", "same")
	require.NoError(t, err)
	assert.Equal(t, StateNew, state)

	state, _, err = s.Begin(ctx, "so-2", "same")
	require.NoError(t, err)
	assert.Equal(t, StateNew, state)
}

func TestReleaseAllowsRetry(t *testing.T) {
	_, s := setupStore(t)
	ctx := context.Background()

	_, _, err := s.Begin(ctx, "so-1", "k")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "so-1", "k"))

	state, _, err := s.Begin(ctx, "so-1", "k")
	require.NoError(t, err)
	assert.Equal(t, StateNew, state)
}

func TestEntriesExpire(t *testing.T) {
	mr, s := setupStore(t)
	ctx := context.Background()

	_, _, err := s.Begin(ctx, "so-1", "k")
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, "so-1", "k", Entry{Status: 200}))
	assert.Equal(t, time.Hour, mr.TTL(Key("so-1", "k")))

	mr.FastForward(2 * time.Hour)
	state, _, err := s.Begin(ctx, "so-1", "k")
	require.NoError(t, err)
	assert.Equal(t, StateNew, state)
}
