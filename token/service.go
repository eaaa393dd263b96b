package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/algelab-auth/internal/metrics"
	tokenjwt "github.com/jrsteele09/algelab-auth/token/jwt"
	"github.com/jrsteele09/algelab-auth/token/keys"
	"github.com/jrsteele09/algelab-auth/token/refresh"
	"github.com/rs/zerolog/log"
)

const (
	defaultAccessExpiry  = 30 * time.Minute
	defaultRefreshExpiry = 7 * 24 * time.Hour
	defaultLeeway        = 30 * time.Second
)

type AccessClaims = tokenjwt.AccessClaims

type AccessToken struct {
	Token     string
	ExpiresAt time.Time
	Claims    *AccessClaims
}

type RefreshToken struct {
	Token     string
	FamilyID  string
	ExpiresAt time.Time
}

// Pair is a session: an access token and the refresh token that can renew it.
type Pair struct {
	UserID  string
	Access  AccessToken
	Refresh RefreshToken
}

// Service mints, validates and rotates tokens. It owns the signing key and the
// refresh record store.
type Service struct {
	signer        keys.Signer
	creator       *tokenjwt.Creator
	inspector     *tokenjwt.Inspector
	refresh       *refresh.Manager
	metrics       *metrics.Metrics
	issuer        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	leeway        time.Duration
	nowFunc       func() time.Time
}

type ServiceOption func(*Service)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ServiceOption {
	return func(s *Service) {
		s.accessExpiry = accessTokenExpiry
		s.refreshExpiry = refreshTokenExpiry
	}
}

func WithLeeway(leeway time.Duration) ServiceOption {
	return func(s *Service) {
		s.leeway = leeway
	}
}

func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) {
		s.issuer = issuer
	}
}

func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService wires the service. A missing signer or store is a configuration
// error.
func NewService(signer keys.Signer, repo refresh.Repo, options ...ServiceOption) (*Service, error) {
	if signer == nil {
		return nil, errors.New("[token NewService] signer is required")
	}
	if repo == nil {
		return nil, errors.New("[token NewService] refresh repo is required")
	}

	s := &Service{
		signer: signer,
		leeway: -1,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.accessExpiry <= 0 {
		s.accessExpiry = defaultAccessExpiry
	}
	if s.refreshExpiry <= 0 {
		s.refreshExpiry = defaultRefreshExpiry
	}
	if s.leeway < 0 {
		s.leeway = defaultLeeway
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}

	s.creator = tokenjwt.NewCreator(signer, s.issuer, s.accessExpiry, s.nowFunc)
	s.inspector = tokenjwt.NewInspector(signer, s.issuer, s.leeway, s.nowFunc)
	s.refresh = refresh.NewManager(repo,
		refresh.WithExpiry(s.refreshExpiry),
		refresh.WithNowFunc(s.nowFunc),
	)
	return s, nil
}

func (s *Service) AccessExpiry() time.Duration  { return s.accessExpiry }
func (s *Service) RefreshExpiry() time.Duration { return s.refreshExpiry }

// IssueAccess signs an access token for userID.
func (s *Service) IssueAccess(userID string) (AccessToken, error) {
	raw, claims, err := s.creator.CreateAccessToken(userID)
	if err != nil {
		return AccessToken{}, fmt.Errorf("[token IssueAccess] %w", err)
	}
	return AccessToken{
		Token:     raw,
		ExpiresAt: claims.ExpiresAtTime(),
		Claims:    claims,
	}, nil
}

// IssueRefresh creates a refresh token. An empty familyID starts a new family.
func (s *Service) IssueRefresh(ctx context.Context, userID, familyID string) (RefreshToken, error) {
	issued, err := s.refresh.Create(ctx, userID, familyID)
	if err != nil {
		return RefreshToken{}, fmt.Errorf("[token IssueRefresh] %w", err)
	}
	return RefreshToken{
		Token:     issued.Token,
		FamilyID:  issued.Record.FamilyID,
		ExpiresAt: issued.Record.ExpiresAt,
	}, nil
}

// IssuePair starts a new session for userID.
func (s *Service) IssuePair(ctx context.Context, userID string) (*Pair, error) {
	access, err := s.IssueAccess(userID)
	if err != nil {
		return nil, err
	}
	rt, err := s.IssueRefresh(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	return &Pair{UserID: userID, Access: access, Refresh: rt}, nil
}

// RenewAccess issues a new access token for userID, but only while the
// refresh token that accompanies it is live and belongs to the same user.
// Revoking the family through logout or reuse detection stops renewal.
func (s *Service) RenewAccess(ctx context.Context, userID, refreshRaw string) (AccessToken, error) {
	rec, err := s.refresh.Lookup(ctx, refreshRaw)
	switch {
	case errors.Is(err, refresh.ErrNotFound):
		return AccessToken{}, ErrUnknown
	case err != nil:
		return AccessToken{}, fmt.Errorf("[token RenewAccess] %w", err)
	case rec.UserID != userID:
		return AccessToken{}, ErrUnknown
	case rec.Revoked:
		return AccessToken{}, ErrRevoked
	case !rec.Active(s.nowFunc()):
		return AccessToken{}, ErrExpired
	}
	return s.IssueAccess(userID)
}

// ValidateAccess verifies an access token without touching any store.
func (s *Service) ValidateAccess(raw string) (*AccessClaims, error) {
	return s.inspector.Validate(raw)
}

// Refresh exchanges a refresh token for a new pair in the same family. A
// revoked token revokes the family and returns ErrReuseDetected.
func (s *Service) Refresh(ctx context.Context, raw string) (*Pair, error) {
	next, old, err := s.refresh.Rotate(ctx, raw)
	switch {
	case err == nil:
	case errors.Is(err, refresh.ErrNotFound):
		s.metrics.RefreshOutcome("unknown")
		return nil, ErrUnknown
	case errors.Is(err, refresh.ErrExpired):
		s.metrics.RefreshOutcome("expired")
		return nil, ErrExpired
	case errors.Is(err, refresh.ErrReuseDetected):
		s.metrics.RefreshOutcome("reuse_detected")
		s.metrics.ReuseDetected()
		log.Warn().
			Str("user_id", old.UserID).
			Str("family_id", old.FamilyID).
			Str("record_id", old.ID).
			Str("revoked_reason", old.RevokedReason).
			Msg("refresh token reuse detected, family revoked")
		return nil, ErrReuseDetected
	default:
		s.metrics.RefreshOutcome("error")
		return nil, fmt.Errorf("[token Refresh] %w", err)
	}

	access, err := s.IssueAccess(next.Record.UserID)
	if err != nil {
		return nil, err
	}
	s.metrics.RefreshOutcome("rotated")
	log.Debug().
		Str("user_id", next.Record.UserID).
		Str("family_id", next.Record.FamilyID).
		Str("previous_id", old.ID).
		Str("record_id", next.Record.ID).
		Msg("refresh token rotated")

	return &Pair{
		UserID: next.Record.UserID,
		Access: access,
		Refresh: RefreshToken{
			Token:     next.Token,
			FamilyID:  next.Record.FamilyID,
			ExpiresAt: next.Record.ExpiresAt,
		},
	}, nil
}

// RevokeFamily revokes every refresh token of the family.
func (s *Service) RevokeFamily(ctx context.Context, familyID string) error {
	if familyID == "" {
		return nil
	}
	if _, err := s.refresh.RevokeFamily(ctx, familyID, refresh.ReasonLogout); err != nil {
		return fmt.Errorf("[token RevokeFamily] %w", err)
	}
	return nil
}

// RevokeByToken revokes the family of raw. Unknown or empty tokens are not
// errors.
func (s *Service) RevokeByToken(ctx context.Context, raw string) error {
	rec, err := s.refresh.Lookup(ctx, raw)
	if errors.Is(err, refresh.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("[token RevokeByToken] %w", err)
	}
	return s.RevokeFamily(ctx, rec.FamilyID)
}

// PurgeExpired deletes refresh records past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.refresh.PurgeExpired(ctx)
}

// JWKS returns the public key set when tokens are signed with an asymmetric
// key. ok is false for HMAC signing.
func (s *Service) JWKS() (jwks *keys.JWKS, ok bool, err error) {
	kps, isKeyPair := s.signer.(*keys.KeyPairSigner)
	if !isKeyPair {
		return nil, false, nil
	}
	jwks, err = kps.GetJWKS()
	return jwks, true, err
}
