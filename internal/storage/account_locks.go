package storage

import (
	"context"
	"sync"
)

// AccountLocks serializes work per account key. Entries exist only while a
// key is held or awaited.
type AccountLocks struct {
	locks map[string]*accountLock
	mu    sync.Mutex
}

type accountLock struct {
	sem  chan struct{}
	refs int
}

func NewAccountLocks() *AccountLocks {
	return &AccountLocks{
		locks: make(map[string]*accountLock),
	}
}

// Lock blocks until key is free or ctx is done. The returned func releases
// the key and must be called exactly once.
func (l *AccountLocks) Lock(ctx context.Context, key string) (func(), error) {
	lk := l.acquire(key)

	select {
	case lk.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lk.sem
				l.release(key, lk)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, lk)
		return nil, ctx.Err()
	}
}

// Len reports how many keys are currently tracked.
func (l *AccountLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *AccountLocks) acquire(key string) *accountLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk, ok := l.locks[key]
	if !ok {
		lk = &accountLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	return lk
}

func (l *AccountLocks) release(key string, lk *accountLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}
