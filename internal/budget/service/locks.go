package service

import "sync"

// recordLocks is a keyed mutex. Entries are refcounted and dropped once
// no goroutine holds or waits on them.
type recordLocks struct {
	mu    sync.Mutex
	locks map[int64]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

func newRecordLocks() *recordLocks {
	return &recordLocks{locks: make(map[int64]*recordLock)}
}

// Lock blocks until id is free and returns the matching unlock func.
func (l *recordLocks) Lock(id int64) func() {
	l.mu.Lock()
	rl, ok := l.locks[id]
	if !ok {
		rl = &recordLock{}
		l.locks[id] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *recordLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
