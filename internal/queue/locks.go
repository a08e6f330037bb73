package queue

import "sync"

// lockRegistry hands out one RWMutex per equipment id and forgets it when unused.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[int64]*equipmentLock
}

type equipmentLock struct {
	sync.RWMutex
	refs int
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[int64]*equipmentLock)}
}

func (r *lockRegistry) acquire(id int64) *equipmentLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &equipmentLock{}
		r.locks[id] = l
	}
	l.refs++
	return l
}

func (r *lockRegistry) release(id int64, l *equipmentLock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, id)
	}
}

// Lock serializes writers of one equipment. Call the returned func to unlock.
func (r *lockRegistry) Lock(id int64) func() {
	l := r.acquire(id)
	l.Lock()
	return func() {
		l.Unlock()
		r.release(id, l)
	}
}

// RLock admits concurrent readers of one equipment while no writer holds it.
func (r *lockRegistry) RLock(id int64) func() {
	l := r.acquire(id)
	l.RLock()
	return func() {
		l.RUnlock()
		r.release(id, l)
	}
}

func (r *lockRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
