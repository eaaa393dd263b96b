package refresh

import (
	"context"
	"errors"
	"sync"
	"time"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
// A single mutex serialises rotations, which makes them linearizable per token.
type InMemoryRepo struct {
	lock    sync.Mutex
	records map[string]*Record // keyed by token hash
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		records: make(map[string]*Record),
	}
}

func (r *InMemoryRepo) Create(_ context.Context, rec *Record) error {
	if rec == nil || rec.TokenHash == "" {
		return errors.New("refresh record requires a token hash")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.records[rec.TokenHash]; exists {
		return errors.New("refresh record already exists")
	}
	cp := *rec
	r.records[rec.TokenHash] = &cp
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, tokenHash string) (*Record, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	rec, ok := r.records[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *InMemoryRepo) Rotate(_ context.Context, oldHash string, now time.Time, replacement *Record) (*Record, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	old, ok := r.records[oldHash]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *old
	if old.Revoked {
		return &snapshot, ErrRevoked
	}
	if !now.Before(old.ExpiresAt) {
		return &snapshot, ErrExpired
	}
	if _, exists := r.records[replacement.TokenHash]; exists {
		return nil, errors.New("replacement refresh record already exists")
	}

	revokedAt := now
	old.Revoked = true
	old.RevokedAt = &revokedAt
	old.RevokedReason = ReasonRotated

	replacement.FamilyID = old.FamilyID
	replacement.UserID = old.UserID
	cp := *replacement
	r.records[replacement.TokenHash] = &cp

	return &snapshot, nil
}

func (r *InMemoryRepo) RevokeFamily(_ context.Context, familyID, reason string, now time.Time) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var n int64
	for _, rec := range r.records {
		if rec.FamilyID != familyID || rec.Revoked {
			continue
		}
		revokedAt := now
		rec.Revoked = true
		rec.RevokedAt = &revokedAt
		rec.RevokedReason = reason
		n++
	}
	return n, nil
}

func (r *InMemoryRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var n int64
	for hash, rec := range r.records {
		if !cutoff.Before(rec.ExpiresAt) {
			delete(r.records, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (r *InMemoryRepo) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.records)
}
