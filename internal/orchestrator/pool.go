package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of section fetches executing at once across every
// orchestration. Waiters are admitted in FIFO order.
type Pool struct {
	sem      *semaphore.Weighted
	size     int
	inFlight atomic.Int64
	waiting  atomic.Int64
}

// PoolStats is a point-in-time view of pool occupancy.
type PoolStats struct {
	Capacity int   `json:"capacity"`
	InFlight int64 `json:"in_flight"`
	Waiting  int64 `json:"waiting"`
}

// NewPool creates a pool admitting at most size concurrent fetches.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// func is safe to call more than once.
func (p *Pool) Acquire(ctx context.Context) (func(), error) {
	p.waiting.Add(1)
	err := p.sem.Acquire(ctx, 1)
	p.waiting.Add(-1)
	if err != nil {
		return nil, err
	}

	p.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			p.inFlight.Add(-1)
			p.sem.Release(1)
		})
	}, nil
}

// Stats returns the current occupancy.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Capacity: p.size,
		InFlight: p.inFlight.Load(),
		Waiting:  p.waiting.Load(),
	}
}
