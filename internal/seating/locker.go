package seating

import (
	"context"
	"sync"
)

// Locker provides the per-flight critical section.  Lock blocks until the
// flight's section is free or ctx is done and returns the function that
// leaves it.  Different flights never contend.
type Locker interface {
	Lock(ctx context.Context, flight string) (func(), error)
}

// LocalLocker serialises callers within one process with a mutex per
// flight.  Entries are reference counted and dropped once no caller
// waits on them, so the map does not grow with the flight history.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*flightLock
}

type flightLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*flightLock)}
}

// Lock implements Locker.  A one-slot channel is used instead of a
// sync.Mutex so waiting honours ctx.
func (l *LocalLocker) Lock(ctx context.Context, flight string) (func(), error) {
	l.mu.Lock()
	fl, ok := l.locks[flight]
	if !ok {
		fl = &flightLock{ch: make(chan struct{}, 1)}
		l.locks[flight] = fl
	}
	fl.refs++
	l.mu.Unlock()

	select {
	case fl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(flight, fl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-fl.ch
			l.release(flight, fl)
		})
	}, nil
}

func (l *LocalLocker) release(flight string, fl *flightLock) {
	l.mu.Lock()
	fl.refs--
	if fl.refs == 0 {
		delete(l.locks, flight)
	}
	l.mu.Unlock()
}

// size reports how many flights currently have a lock entry.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
