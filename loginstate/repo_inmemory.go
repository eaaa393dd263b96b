package loginstate

import (
	"context"
	"errors"
	"sync"
	"time"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu     sync.Mutex
	states map[string]Record
}

// NewInMemoryRepo creates a new in-memory login state repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states: make(map[string]Record),
	}
}

func (r *InMemoryRepo) Insert(_ context.Context, rec Record) error {
	if rec.TokenHash == "" {
		return errors.New("token hash cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.states[rec.TokenHash]; exists {
		return errors.New("login state already exists")
	}
	r.states[rec.TokenHash] = rec
	return nil
}

func (r *InMemoryRepo) Take(_ context.Context, tokenHash string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.states[tokenHash]
	if !exists {
		return Record{}, ErrNotFound
	}
	delete(r.states, tokenHash)
	return rec, nil
}

func (r *InMemoryRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, rec := range r.states {
		if !now.Before(rec.ExpiresAt) {
			delete(r.states, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of pending states.
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
