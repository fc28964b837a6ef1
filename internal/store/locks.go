package store

import "sync"

// Locks serializes read-modify-write cycles on the same document id. Callers
// that load a record, change it and save it back hold the id's lock for the
// whole cycle so concurrent edits are applied one after the other.
type Locks struct {
	mu    sync.Mutex
	byDoc map[string]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{byDoc: make(map[string]*docLock)}
}

// Lock blocks until id is free and returns the matching unlock. Entries are
// dropped once nobody holds or waits for them.
func (l *Locks) Lock(id string) (unlock func()) {
	l.mu.Lock()
	dl, ok := l.byDoc[id]
	if !ok {
		dl = &docLock{}
		l.byDoc[id] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.byDoc, id)
		}
		l.mu.Unlock()
	}
}

func (l *Locks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byDoc)
}
