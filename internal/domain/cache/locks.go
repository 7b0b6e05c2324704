package cache

import (
	"context"
	"sync"
)

// keyLock is a one-slot semaphore. refs counts the holder and all waiters.
type keyLock struct {
	sem  chan struct{}
	refs int
}

// lockTable hands out per-key locks created lazily under one mutex.
// Entries with no holder and no waiters are swept once the table grows
// past threshold.
type lockTable struct {
	mu        sync.Mutex
	entries   map[string]*keyLock
	threshold int
}

func newLockTable(threshold int) *lockTable {
	return &lockTable{
		entries:   make(map[string]*keyLock),
		threshold: threshold,
	}
}

// acquire blocks until the key's lock is held or ctx is done
func (t *lockTable) acquire(ctx context.Context, key string) (release func(), err error) {
	t.mu.Lock()
	l, ok := t.entries[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		t.entries[key] = l
	}
	l.refs++
	t.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		t.unref(l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			t.unref(l)
		})
	}, nil
}

func (t *lockTable) unref(l *keyLock) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l.refs--
	if len(t.entries) > t.threshold {
		t.sweepLocked()
	}
}

// Sweep removes idle lock entries and returns how many were dropped
func (t *lockTable) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sweepLocked()
}

func (t *lockTable) sweepLocked() int {
	n := 0
	for key, l := range t.entries {
		if l.refs == 0 {
			delete(t.entries, key)
			n++
		}
	}
	return n
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
