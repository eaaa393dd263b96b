package loginstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/algelab-auth/internal/utils"
)

const (
	defaultTTL        = 5 * time.Minute
	defaultTokenBytes = 32 // 256 bits
	minTokenBytes     = 16
	maxTokenLength    = 512
)

// Manager issues and consumes single-use login states.
type Manager struct {
	repo       Repo
	ttl        time.Duration
	tokenBytes int
	nowFunc    func() time.Time
}

type ManagerOption func(*Manager)

func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithTokenBytes sets the entropy of issued states. Values below 16 bytes are
// raised to 16.
func WithTokenBytes(n int) ManagerOption {
	return func(m *Manager) {
		m.tokenBytes = n
	}
}

func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo: repo,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.ttl <= 0 {
		m.ttl = defaultTTL
	}
	if m.tokenBytes == 0 {
		m.tokenBytes = defaultTokenBytes
	}
	if m.tokenBytes < minTokenBytes {
		m.tokenBytes = minTokenBytes
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// TTL returns the lifetime of issued states.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates and stores a fresh login state.
func (m *Manager) Issue(ctx context.Context) (LoginState, error) {
	token, err := utils.RandomToken(m.tokenBytes)
	if err != nil {
		return LoginState{}, fmt.Errorf("[loginstate Issue] %w", err)
	}

	now := m.nowFunc()
	state := LoginState{
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.repo.Insert(ctx, Record{
		TokenHash: utils.HashToken(token),
		CreatedAt: state.CreatedAt,
		ExpiresAt: state.ExpiresAt,
	}); err != nil {
		return LoginState{}, fmt.Errorf("[loginstate Issue] store state: %w", err)
	}
	return state, nil
}

// Consume removes the state and reports whether it was still valid. The
// record is deleted whatever the outcome, so a state can never be presented
// twice.
func (m *Manager) Consume(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxTokenLength {
		return ErrNotFound
	}

	rec, err := m.repo.Take(ctx, utils.HashToken(token))
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("[loginstate Consume] %w", err)
	}

	if !m.nowFunc().Before(rec.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

// PurgeExpired deletes states whose TTL has elapsed and returns how many were
// removed.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx, m.nowFunc())
}
