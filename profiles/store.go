package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/algelab-auth/identity"
	"github.com/jrsteele09/algelab-auth/internal/utils"
)

// Store maps upstream identities onto local profiles.
type Store struct {
	repo    Repo
	nowFunc func() time.Time
}

type StoreOption func(*Store)

func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func NewStore(repo Repo, options ...StoreOption) *Store {
	s := &Store{repo: repo}
	for _, opt := range options {
		opt(s)
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	return s
}

// Upsert records a successful login for id and returns the profile.
func (s *Store) Upsert(ctx context.Context, id identity.Identity) (*Profile, error) {
	if strings.TrimSpace(id.Provider) == "" || strings.TrimSpace(id.ProviderID) == "" {
		return nil, errors.New("[profiles Upsert] identity has no provider id")
	}

	now := s.nowFunc()
	p, err := s.repo.Upsert(ctx, &Profile{
		UserID:     id.UserID(),
		Provider:   id.Provider,
		ProviderID: id.ProviderID,
		Username:   id.Username,
		FirstName:  trimmed(id.FirstName),
		LastName:   trimmed(id.LastName),
		Email:      trimmed(id.Email),
		AvatarURL:  trimmed(id.AvatarURL),
		CreatedAt:  now,
		UpdatedAt:  now,
		LastLogin:  &now,
	})
	if err != nil {
		return nil, fmt.Errorf("[profiles Upsert] %w", err)
	}
	return p, nil
}

// trimmed drops blank optional fields so they never overwrite stored values.
func trimmed(v *string) *string {
	return utils.PtrIfNotEmpty(strings.TrimSpace(utils.Value(v)))
}

// Get returns the profile for userID or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID string) (*Profile, error) {
	return s.repo.GetByID(ctx, userID)
}
