package refresh

import (
	"context"
	"errors"
	"time"
)

// Revocation reasons stored alongside revoked records.
const (
	ReasonRotated       = "rotated"
	ReasonLogout        = "logout"
	ReasonReuseDetected = "reuse_detected"
)

var (
	// ErrNotFound is returned when no record matches the token hash.
	ErrNotFound = errors.New("refresh token not found")

	// ErrRevoked is returned when the record was already revoked, either by an
	// earlier rotation or by a family revocation.
	ErrRevoked = errors.New("refresh token revoked")

	// ErrExpired is returned when the record's lifetime has elapsed.
	ErrExpired = errors.New("refresh token expired")

	// ErrReuseDetected is returned by Manager.Rotate when a revoked token was
	// presented. The whole family has been revoked by the time it is returned.
	ErrReuseDetected = errors.New("refresh token reuse detected")
)

// Record is the server-side state of one refresh token. The client only ever
// holds the opaque token; the store keeps its SHA-256 hash.
type Record struct {
	ID            string     // ULID
	TokenHash     string     // hex SHA-256 of the opaque token
	FamilyID      string     // UUID shared by every token descended from one login
	UserID        string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Revoked       bool
	RevokedAt     *time.Time
	RevokedReason string
}

// Active reports whether the record can still be exchanged at now.
func (r *Record) Active(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

// Repo manages server-side storage of refresh token records.
type Repo interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, tokenHash string) (*Record, error)

	// Rotate atomically revokes the record matching oldHash and inserts
	// replacement, which inherits the old record's FamilyID and UserID. It
	// returns the old record. If the old record is missing it returns
	// ErrNotFound; if it is already revoked, ErrRevoked; if it expired at or
	// before now, ErrExpired. Nothing is written in those cases.
	Rotate(ctx context.Context, oldHash string, now time.Time, replacement *Record) (*Record, error)

	// RevokeFamily marks every active record of the family revoked and returns
	// how many changed.
	RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error)

	// DeleteExpired removes records that expired at or before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
