package ratelimit

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// numShards is the number of independent lock domains in a store. Checks
// for unrelated keys only contend when they hash to the same shard.
const numShards = 64

// windowState is the per-key record both algorithms mutate. It is owned by
// the store and only ever touched under its shard's lock.
//
// windowIndex only increases over the state's lifetime. When a request's
// window index exceeds the stored one, previous receives the old current
// count (or zero if more than one window elapsed) and current resets before
// the request is counted.
type windowState struct {
	windowIndex int64
	current     int
	previous    int
}

// shard is one lock domain: a mutex plus the states it guards. When a key
// cap is configured the plain map is replaced by an LRU so the
// least-recently-checked key is evicted once the shard is full; the LRU is
// the non-locking variant because the shard mutex already serializes
// access.
type shard struct {
	mu     sync.Mutex
	states map[string]*windowState
	lru    *simplelru.LRU[string, *windowState]
}

// store maps keys to their windowState with per-shard locking. Keys are
// created lazily on first observation and never removed unless a cap was
// configured.
type store struct {
	shards [numShards]shard
}

func newStore(maxKeys int) *store {
	s := &store{}
	perShard := 0
	if maxKeys > 0 {
		// Round up so the cap is never undershot; the total capacity is
		// then the next multiple of numShards at or above maxKeys.
		perShard = (maxKeys + numShards - 1) / numShards
	}
	for i := range s.shards {
		if perShard > 0 {
			// Size is validated above; the constructor only errors on a
			// non-positive size.
			lru, _ := simplelru.NewLRU[string, *windowState](perShard, nil)
			s.shards[i].lru = lru
		} else {
			s.shards[i].states = make(map[string]*windowState)
		}
	}
	return s
}

// shardFor picks the lock domain for key.
func (s *store) shardFor(key string) *shard {
	return &s.shards[xxhash.Sum64String(key)&(numShards-1)]
}

// state returns the windowState for key, creating it on first observation.
// The caller must hold the shard's lock for the whole lookup-and-mutate
// sequence.
func (sh *shard) state(key string, idx int64) *windowState {
	if sh.lru != nil {
		if st, ok := sh.lru.Get(key); ok {
			return st
		}
		st := &windowState{windowIndex: idx}
		sh.lru.Add(key, st)
		return st
	}
	st, ok := sh.states[key]
	if !ok {
		st = &windowState{windowIndex: idx}
		sh.states[key] = st
	}
	return st
}

// len reports the number of tracked keys across all shards.
func (s *store) len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		if sh.lru != nil {
			n += sh.lru.Len()
		} else {
			n += len(sh.states)
		}
		sh.mu.Unlock()
	}
	return n
}
