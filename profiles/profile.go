package profiles

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("profile not found")

// Profile is the locally stored user, keyed by a stable identity id such as
// "github_1234".
type Profile struct {
	UserID     string     `json:"user_id"`
	Provider   string     `json:"provider"`
	ProviderID string     `json:"provider_id"`
	Username   string     `json:"username"`
	FirstName  *string    `json:"first_name,omitempty"`
	LastName   *string    `json:"last_name,omitempty"`
	Email      *string    `json:"email,omitempty"`
	AvatarURL  *string    `json:"avatar_url,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

// Repo persists profiles.
type Repo interface {
	// Upsert inserts p or updates the row with the same UserID and returns the
	// stored profile. On update CreatedAt is kept, and nil optional fields
	// keep their stored value.
	Upsert(ctx context.Context, p *Profile) (*Profile, error)
	GetByID(ctx context.Context, userID string) (*Profile, error)
}
