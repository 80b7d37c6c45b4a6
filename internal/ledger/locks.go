package ledger

import "sync"

// keyedLocks serializes operations per bond id. The spec's execution model is
// a globally serialized ledger; here only operations on the same bond must be
// linearized, so a mutex per id is enough to keep the FIFO queue ordering
// exact under concurrent challenge submissions.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[int64]*sync.Mutex)}
}

// lock acquires the mutex for id, creating it on first use, and returns the
// unlock function. Lock entries are never removed; the set of bond ids grows
// slowly and a bare mutex is 8 bytes.
func (k *keyedLocks) lock(id int64) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
