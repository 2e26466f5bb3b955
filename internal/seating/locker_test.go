package seating

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalLocker_Serialises(t *testing.T) {
	t.Parallel()

	l := NewLocalLocker()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "LH1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected at most one holder at a time, saw %d", maxSeen)
	}
	if n := l.size(); n != 0 {
		t.Fatalf("expected lock table to drain, %d entries left", n)
	}
}

func TestLocalLocker_FlightsIndependent(t *testing.T) {
	t.Parallel()

	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "LH1")
	if err != nil {
		t.Fatalf("lock LH1: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	other, err := l.Lock(ctx, "BA2")
	if err != nil {
		t.Fatalf("expected BA2 to be free while LH1 is held, got %v", err)
	}
	other()
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	t.Parallel()

	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "LH1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "LH1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	unlock()
	unlock() // second call is a no-op

	if n := l.size(); n != 0 {
		t.Fatalf("expected lock table to drain, %d entries left", n)
	}
}
