// Package state holds the per-object execution context handed to object
// handlers: the resolved identity, the object's storage engine, and the
// concurrency helpers scoped to that one object.
package state

import (
	"context"
	"sync"

	"github.com/warrenhq/warren/internal/identity"
	"github.com/warrenhq/warren/internal/storage"
)

// State is the execution context for a single object. One State exists per
// live object; the host hands the same State to every request routed to
// that object.
type State struct {
	id      identity.Identity
	engine  *storage.Engine
	gate    sync.Mutex
	pending sync.WaitGroup
}

// New builds a State for id backed by engine.
func New(id identity.Identity, engine *storage.Engine) *State {
	return &State{id: id, engine: engine}
}

// ID returns the object's resolved identity.
func (s *State) ID() identity.Identity {
	return s.id
}

// Storage returns the object's storage engine.
func (s *State) Storage() *storage.Engine {
	return s.engine
}

// BlockConcurrencyWhile runs fn while holding the object's gate: no other
// critical section for this object runs concurrently. Other objects are
// unaffected. The gate is not reentrant.
func (s *State) BlockConcurrencyWhile(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.gate.Lock()
	defer s.gate.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// WaitUntil registers background work that must outlive the current
// request. The work starts immediately; Drain blocks until all registered
// work has finished.
func (s *State) WaitUntil(fn func()) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		fn()
	}()
}

// Drain waits for all WaitUntil work to finish, or for ctx to be done,
// whichever comes first. A context error means work is still in flight.
func (s *State) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
