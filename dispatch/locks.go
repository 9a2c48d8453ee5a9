package dispatch

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// lockTable hands out one mutex per conversation id, created lazily and kept
// in a bounded LRU so the table cannot grow with the number of conversations
// ever seen. The bound must stay far above the plausible number of
// concurrently active conversations; an evicted entry is only ever one whose
// mutex is no longer held.
type lockTable struct {
	mu    sync.Mutex
	locks *lru.Cache[string, *sync.Mutex]
}

func newLockTable(size int) *lockTable {
	if size <= 0 {
		size = DefaultLockTableSize
	}
	cache, _ := lru.New[string, *sync.Mutex](size)
	return &lockTable{locks: cache}
}

func (t *lockTable) get(conversationID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.locks.Get(conversationID); ok {
		return m
	}
	m := &sync.Mutex{}
	t.locks.Add(conversationID, m)
	return m
}
