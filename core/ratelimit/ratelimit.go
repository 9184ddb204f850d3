package ratelimit

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	ErrInvalidCapacity = errors.New("rate limiter capacity must be positive")
)

// Limiter bounds the number of requests in flight.
// A failed or canceled acquire never holds a permit.
type Limiter interface {
	// Wait blocks until a permit is available or ctx is done
	Wait(ctx context.Context) error

	// WaitTimeout is Wait bounded by d; it reports false on timeout
	WaitTimeout(ctx context.Context, d time.Duration) (bool, error)

	// TryAcquire takes a permit only if one is free
	TryAcquire() bool

	// Release returns a permit
	Release()

	// Capacity returns the permit count; 0 means unlimited
	Capacity() int

	// Available returns the number of free permits
	Available() int
}

// DefaultCapacity is twice the number of CPUs
func DefaultCapacity() int {
	return runtime.NumCPU() * 2
}

// Countable is a counting semaphore limiter
type Countable struct {
	sem      *semaphore.Weighted
	capacity int
	inUse    atomic.Int64
}

// NewCountable creates a limiter with capacity permits
func NewCountable(capacity int) (*Countable, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Countable{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}, nil
}

func (l *Countable) Wait(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inUse.Add(1)
	return nil
}

func (l *Countable) WaitTimeout(ctx context.Context, d time.Duration) (bool, error) {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	if err := l.sem.Acquire(tctx, 1); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	l.inUse.Add(1)
	return true, nil
}

func (l *Countable) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.inUse.Add(1)
	return true
}

// Release returns a permit. Releasing more permits than were acquired panics.
func (l *Countable) Release() {
	if l.inUse.Add(-1) < 0 {
		l.inUse.Add(1)
		panic("ratelimit: release without acquire")
	}
	l.sem.Release(1)
}

func (l *Countable) Capacity() int {
	return l.capacity
}

func (l *Countable) Available() int {
	return l.capacity - int(l.inUse.Load())
}

// None is a limiter that never blocks
type None struct{}

func (None) Wait(ctx context.Context) error {
	return ctx.Err()
}

func (None) WaitTimeout(ctx context.Context, _ time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (None) TryAcquire() bool { return true }
func (None) Release() {}
func (None) Capacity() int { return 0 }
func (None) Available() int { return int(^uint(0) >> 1) }
