package loginstate

import (
	"context"
	"time"
)

// LoginState is a pending anti-forgery state handed to the browser when a
// login starts. Token is only ever returned to the caller of Issue.
type LoginState struct {
	Token     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Record is the persisted form of a LoginState, keyed by the SHA-256 hash of
// the token.
type Record struct {
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Repo stores pending login states.
//
// Take must be atomic: for a given hash at most one caller receives the
// record, every other caller gets ErrNotFound.
type Repo interface {
	Insert(ctx context.Context, rec Record) error
	Take(ctx context.Context, tokenHash string) (Record, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
