package usecase

import (
	"hash/fnv"
	"sync"
)

const defaultShardCount = 32

// shardedMap is per-key state split across independently locked shards,
// so unrelated senders never contend on one lock.
type shardedMap[V any] struct {
	shards []*shard[V]
}

type shard[V any] struct {
	mu    sync.Mutex
	items map[string]V
}

func newShardedMap[V any](n int) *shardedMap[V] {
	if n <= 0 {
		n = defaultShardCount
	}
	m := &shardedMap[V]{shards: make([]*shard[V], n)}
	for i := range m.shards {
		m.shards[i] = &shard[V]{items: make(map[string]V)}
	}
	return m
}

func (m *shardedMap[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

// with runs fn while holding the lock of the shard that owns key
func (m *shardedMap[V]) with(key string, fn func(items map[string]V)) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.items)
}

// each runs fn on every shard in turn, holding one shard lock at a time
func (m *shardedMap[V]) each(fn func(items map[string]V)) {
	for _, s := range m.shards {
		s.mu.Lock()
		fn(s.items)
		s.mu.Unlock()
	}
}

// size returns the total number of keys
func (m *shardedMap[V]) size() int {
	n := 0
	m.each(func(items map[string]V) { n += len(items) })
	return n
}
