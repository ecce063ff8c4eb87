package triage

import "sync"

// actorLocks serializes pipeline runs per actor inside this process so the
// dedup check and the record write cannot interleave for one IP. Entries are
// reference counted and dropped when idle.
type actorLocks struct {
	mu sync.Mutex
	m  map[string]*actorLock
}

type actorLock struct {
	mu   sync.Mutex
	refs int
}

func newActorLocks() *actorLocks {
	return &actorLocks{m: make(map[string]*actorLock)}
}

// lock blocks until key is free and returns the matching unlock.
func (a *actorLocks) lock(key string) func() {
	a.mu.Lock()
	l, ok := a.m[key]
	if !ok {
		l = &actorLock{}
		a.m[key] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		a.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.m, key)
		}
		a.mu.Unlock()
	}
}

func (a *actorLocks) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.m)
}
