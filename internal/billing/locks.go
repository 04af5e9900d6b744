package billing

import "sync"

// ClientLocks serialises subscription mutations per client within the process.
type ClientLocks struct {
	mu    sync.Mutex
	locks map[uint64]*clientLock
}

// clientLock is a reference-counted mutex for one client.
type clientLock struct {
	mu   sync.Mutex
	refs int
}

// NewClientLocks constructs an empty lock table.
func NewClientLocks() *ClientLocks {
	return &ClientLocks{locks: make(map[uint64]*clientLock)}
}

// Lock blocks until the client's lock is held and returns its release func.
func (l *ClientLocks) Lock(clientID uint64) func() {
	l.mu.Lock()
	entry, ok := l.locks[clientID]
	if !ok {
		entry = &clientLock{}
		l.locks[clientID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.locks, clientID)
			}
			l.mu.Unlock()
		})
	}
}

// size returns the number of tracked clients.
func (l *ClientLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
