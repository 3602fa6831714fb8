package cache

import (
	"context"
	"sync"
)

// State is the confirmation state of a provisional value.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Provisional holds an optimistic value until the store confirms or rejects
// the mutation that produced it. It settles exactly once.
type Provisional[T any] struct {
	mu    sync.Mutex
	value T
	state State
	err   error
	done  chan struct{}
}

// NewProvisional starts a pending value.
func NewProvisional[T any](optimistic T) *Provisional[T] {
	return &Provisional[T]{value: optimistic, state: StatePending, done: make(chan struct{})}
}

// Confirm settles the value with the store's answer.
func (p *Provisional[T]) Confirm(value T) {
	p.settle(func() {
		p.value = value
		p.state = StateConfirmed
	})
}

// Fail settles the value as rejected. The optimistic value is kept so callers
// can show what was attempted.
func (p *Provisional[T]) Fail(err error) {
	p.settle(func() {
		p.state = StateFailed
		p.err = err
	})
}

func (p *Provisional[T]) settle(apply func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePending {
		return
	}
	apply()
	close(p.done)
}

// Snapshot returns the current value, state and failure.
func (p *Provisional[T]) Snapshot() (T, State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.state, p.err
}

// Done is closed once the value settles.
func (p *Provisional[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the value settles or ctx ends.
func (p *Provisional[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		value, _, err := p.Snapshot()
		return value, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
