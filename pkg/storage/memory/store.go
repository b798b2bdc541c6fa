// Package memory is an in-process Store used by tests and local runs. It
// serializes transactions under one mutex and restores a snapshot when a
// transaction fails, matching the all-or-nothing behaviour of the Postgres store.
package memory

import (
	"context"
	"sync"
)

type txKey struct{}

// Store keeps every table in maps behind one mutex.
type Store struct {
	mu   sync.Mutex
	data *state
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState()}
}

// WithTx runs fn with exclusive access to the store. Nested calls join the
// outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store mutex unless ctx already holds it through WithTx.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}
