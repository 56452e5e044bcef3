package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LazyKeyCreation(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: time.Second, Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, 0, limiter.Keys())

	now := time.Unix(100, 0)
	limiter.Allow("a", now)
	limiter.Allow("b", now)
	limiter.Allow("a", now)

	assert.Equal(t, 2, limiter.Keys())
}

func TestStore_MaxKeysBoundsGrowth(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: time.Second, Limit: 1}, WithMaxKeys(numShards))
	require.NoError(t, err)

	now := time.Unix(100, 0)
	for i := 0; i < 1000; i++ {
		limiter.Allow(fmt.Sprintf("client-%d", i), now)
	}

	assert.LessOrEqual(t, limiter.Keys(), numShards)
}

// sameShardKey finds a key that hashes to the same shard as ref, so the
// single-slot-per-shard eviction below is deterministic.
func sameShardKey(t *testing.T, ref string) string {
	t.Helper()
	want := xxhash.Sum64String(ref) & (numShards - 1)
	for i := 0; i < 100000; i++ {
		key := fmt.Sprintf("probe-%d", i)
		if key != ref && xxhash.Sum64String(key)&(numShards-1) == want {
			return key
		}
	}
	t.Fatal("no colliding key found")
	return ""
}

func TestStore_MaxKeysNeverUndershoots(t *testing.T) {
	// A cap that does not divide evenly across shards rounds each shard's
	// share up, so two keys in the same shard coexist without eviction.
	limiter, err := NewFixedWindow(Config{Window: time.Minute, Limit: 1}, WithMaxKeys(numShards+1))
	require.NoError(t, err)

	now := time.Unix(100, 0)
	other := sameShardKey(t, "first")

	require.True(t, limiter.Allow("first", now).Allowed)
	limiter.Allow(other, now)

	// "first" kept its state: the second check in the same window is denied
	// rather than admitted against a fresh window.
	assert.False(t, limiter.Allow("first", now).Allowed)
}

func TestStore_EvictedKeyStartsFresh(t *testing.T) {
	limiter, err := NewFixedWindow(Config{Window: time.Minute, Limit: 1}, WithMaxKeys(numShards))
	require.NoError(t, err)

	now := time.Unix(100, 0)
	other := sameShardKey(t, "victim")

	require.True(t, limiter.Allow("victim", now).Allowed)
	require.False(t, limiter.Allow("victim", now).Allowed)

	// One slot per shard: checking a second key in the same shard evicts
	// the first, whose quota is then fresh again.
	limiter.Allow(other, now)
	assert.True(t, limiter.Allow("victim", now).Allowed)
}
