package cart

import "sync"

// ownerLocks serializes work per cart owner. Entries are dropped once no
// goroutine holds or waits for them.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[int]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: map[int]*ownerLock{}}
}

// lock blocks until ownerID is free and returns the matching unlock.
func (l *ownerLocks) lock(ownerID int) func() {
	l.mu.Lock()
	ol, ok := l.locks[ownerID]
	if !ok {
		ol = &ownerLock{}
		l.locks[ownerID] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()

	return func() {
		ol.mu.Unlock()

		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.locks, ownerID)
		}
		l.mu.Unlock()
	}
}

func (l *ownerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
