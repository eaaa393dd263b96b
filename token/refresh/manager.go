package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/algelab-auth/internal/utils"
	"github.com/oklog/ulid/v2"
)

const (
	defaultExpiry     = 7 * 24 * time.Hour
	defaultTokenBytes = 32
	maxTokenLength    = 512
)

// Issued is a freshly minted refresh token. Token is the opaque value handed
// to the client and is not stored anywhere.
type Issued struct {
	Token  string
	Record *Record
}

// Manager handles refresh token creation, rotation and revocation
type Manager struct {
	repo       Repo
	expiry     time.Duration
	tokenBytes int
	nowFunc    func() time.Time
}

type ManagerOption func(*Manager)

func WithExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:       repo,
		tokenBytes: defaultTokenBytes,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.expiry <= 0 {
		m.expiry = defaultExpiry
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Expiry returns the lifetime of issued refresh tokens.
func (m *Manager) Expiry() time.Duration {
	return m.expiry
}

// Create issues a refresh token for userID. An empty familyID starts a new
// family.
func (m *Manager) Create(ctx context.Context, userID, familyID string) (*Issued, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("[refresh Create] user id is required")
	}
	if familyID == "" {
		familyID = uuid.NewString()
	}

	token, rec, err := m.newRecord(m.nowFunc())
	if err != nil {
		return nil, fmt.Errorf("[refresh Create] %w", err)
	}
	rec.UserID = userID
	rec.FamilyID = familyID

	if err := m.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("[refresh Create] store record: %w", err)
	}
	return &Issued{Token: token, Record: rec}, nil
}

// Rotate exchanges token for a successor in the same family. Presenting a
// revoked token revokes the whole family and returns ErrReuseDetected along
// with the old record.
func (m *Manager) Rotate(ctx context.Context, token string) (*Issued, *Record, error) {
	hash, ok := hashOf(token)
	if !ok {
		return nil, nil, ErrNotFound
	}

	now := m.nowFunc()
	next, replacement, err := m.newRecord(now)
	if err != nil {
		return nil, nil, fmt.Errorf("[refresh Rotate] %w", err)
	}

	old, err := m.repo.Rotate(ctx, hash, now, replacement)
	switch {
	case err == nil:
		return &Issued{Token: next, Record: replacement}, old, nil
	case errors.Is(err, ErrRevoked):
		if _, rerr := m.repo.RevokeFamily(ctx, old.FamilyID, ReasonReuseDetected, now); rerr != nil {
			return nil, old, fmt.Errorf("[refresh Rotate] revoke family after reuse: %w", rerr)
		}
		return nil, old, ErrReuseDetected
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired):
		return nil, old, err
	default:
		return nil, old, fmt.Errorf("[refresh Rotate] %w", err)
	}
}

// Lookup returns the record for token without changing it.
func (m *Manager) Lookup(ctx context.Context, token string) (*Record, error) {
	hash, ok := hashOf(token)
	if !ok {
		return nil, ErrNotFound
	}
	return m.repo.Get(ctx, hash)
}

// RevokeFamily revokes every active token in the family.
func (m *Manager) RevokeFamily(ctx context.Context, familyID, reason string) (int64, error) {
	return m.repo.RevokeFamily(ctx, familyID, reason, m.nowFunc())
}

// PurgeExpired deletes expired records.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx, m.nowFunc())
}

func (m *Manager) newRecord(now time.Time) (string, *Record, error) {
	token, err := utils.RandomToken(m.tokenBytes)
	if err != nil {
		return "", nil, err
	}
	return token, &Record{
		ID:        ulid.Make().String(),
		TokenHash: utils.HashToken(token),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.expiry),
	}, nil
}

func hashOf(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxTokenLength {
		return "", false
	}
	return utils.HashToken(token), true
}
