package profiles

import (
	"context"
	"errors"
	"sync"
)

var _ Repo = (*InMemoryRepo)(nil)

type InMemoryRepo struct {
	profiles map[string]*Profile
	lock     sync.RWMutex
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		profiles: make(map[string]*Profile),
	}
}

func (r *InMemoryRepo) Upsert(_ context.Context, p *Profile) (*Profile, error) {
	if p == nil || p.UserID == "" {
		return nil, errors.New("profile requires a user id")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	stored := *p
	if existing, ok := r.profiles[p.UserID]; ok {
		stored.CreatedAt = existing.CreatedAt
		stored.FirstName = keep(p.FirstName, existing.FirstName)
		stored.LastName = keep(p.LastName, existing.LastName)
		stored.Email = keep(p.Email, existing.Email)
		stored.AvatarURL = keep(p.AvatarURL, existing.AvatarURL)
		if stored.LastLogin == nil {
			stored.LastLogin = existing.LastLogin
		}
	}
	r.profiles[p.UserID] = &stored

	out := stored
	return &out, nil
}

func (r *InMemoryRepo) GetByID(_ context.Context, userID string) (*Profile, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

// Len returns the number of stored profiles.
func (r *InMemoryRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.profiles)
}

func keep(v, fallback *string) *string {
	if v != nil {
		return v
	}
	return fallback
}
