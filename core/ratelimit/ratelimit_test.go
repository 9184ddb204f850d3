package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewCountableRejectsInvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		if _, err := NewCountable(c); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("NewCountable(%d): expected ErrInvalidCapacity, got %v", c, err)
		}
	}
}

func TestCountableTryAcquire(t *testing.T) {
	l, _ := NewCountable(2)

	if !l.TryAcquire() || !l.TryAcquire() {
		t.Fatal("expected two permits")
	}
	if l.TryAcquire() {
		t.Error("expected third acquire to fail")
	}
	if l.Available() != 0 {
		t.Errorf("Available = %d, want 0", l.Available())
	}

	l.Release()
	if l.Available() != 1 {
		t.Errorf("Available = %d, want 1", l.Available())
	}
	if !l.TryAcquire() {
		t.Error("expected acquire after release")
	}
}

func TestCountableWaitCanceledHoldsNoPermit(t *testing.T) {
	l, _ := NewCountable(1)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Wait(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	l.Release()
	if l.Available() != 1 {
		t.Errorf("Available = %d, want 1 after canceled wait", l.Available())
	}
}

func TestCountableWaitTimeout(t *testing.T) {
	l, _ := NewCountable(1)
	l.TryAcquire()

	ok, err := l.WaitTimeout(context.Background(), 10*time.Millisecond)
	if ok || err != nil {
		t.Errorf("WaitTimeout = %v, %v; want false, nil", ok, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if ok, err := l.WaitTimeout(ctx, time.Second); ok || !errors.Is(err, context.Canceled) {
		t.Errorf("WaitTimeout on canceled ctx = %v, %v", ok, err)
	}

	l.Release()
	if ok, err := l.WaitTimeout(context.Background(), time.Second); !ok || err != nil {
		t.Errorf("WaitTimeout = %v, %v; want true, nil", ok, err)
	}
}

func TestCountableReleaseWithoutAcquirePanics(t *testing.T) {
	l, _ := NewCountable(1)
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	l.Release()
}

func TestCountableBoundsConcurrency(t *testing.T) {
	const capacity = 3
	l, _ := NewCountable(capacity)

	var (
		inFlight atomic.Int32
		peak     atomic.Int32
		wg       sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(context.Background()); err != nil {
				t.Error(err)
				return
			}
			defer l.Release()

			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()

	if peak.Load() > capacity {
		t.Errorf("peak concurrency %d exceeded capacity %d", peak.Load(), capacity)
	}
	if l.Available() != capacity {
		t.Errorf("Available = %d, want %d", l.Available(), capacity)
	}
}

func TestNone(t *testing.T) {
	var l Limiter = None{}

	for i := 0; i < 100; i++ {
		if !l.TryAcquire() {
			t.Fatal("None must never refuse")
		}
	}
	if l.Capacity() != 0 {
		t.Errorf("Capacity = %d, want 0", l.Capacity())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled wait, got %v", err)
	}
}

func TestDefaultCapacity(t *testing.T) {
	if DefaultCapacity() < 2 {
		t.Errorf("DefaultCapacity = %d", DefaultCapacity())
	}
}
