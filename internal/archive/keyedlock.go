package archive

import "sync"

// keyedLock is a set of non-blocking per-key locks. It serializes archive
// builds per owner/target: a second acquire for a held key fails immediately
// instead of waiting.
type keyedLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{held: make(map[string]struct{})}
}

// tryAcquire takes the lock for key, reporting false if it is already held.
func (l *keyedLock) tryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// release frees the lock for key. Releasing an unheld key is a no-op.
func (l *keyedLock) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
