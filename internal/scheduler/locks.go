package scheduler

import (
	"context"
	"sync"
)

// pathLocks grants at most one holder per destination file.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	sem  chan struct{}
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*pathLock)}
}

// lock blocks until key is free or ctx is done. The returned func releases it.
func (l *pathLocks) lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	pl, ok := l.locks[key]
	if !ok {
		pl = &pathLock{sem: make(chan struct{}, 1)}
		l.locks[key] = pl
	}
	pl.refs++
	l.mu.Unlock()

	select {
	case pl.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, pl)
		return nil, ctx.Err()
	}

	return func() {
		<-pl.sem
		l.release(key, pl)
	}, nil
}

func (l *pathLocks) release(key string, pl *pathLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, key)
	}
}
