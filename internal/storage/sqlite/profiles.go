package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jrsteele09/algelab-auth/profiles"
)

var _ profiles.Repo = (*ProfileRepo)(nil)

type ProfileRepo struct {
	db *sql.DB
}

const profileColumns = `user_id, provider, provider_id, username, first_name, last_name, email, avatar_url, created_at, updated_at, last_login`

func (r *ProfileRepo) Upsert(ctx context.Context, p *profiles.Profile) (*profiles.Profile, error) {
	if p == nil || p.UserID == "" {
		return nil, errors.New("[sqlite ProfileRepo.Upsert] profile requires a user id")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO profiles (`+profileColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    provider = excluded.provider,
    provider_id = excluded.provider_id,
    username = excluded.username,
    first_name = COALESCE(excluded.first_name, profiles.first_name),
    last_name = COALESCE(excluded.last_name, profiles.last_name),
    email = COALESCE(excluded.email, profiles.email),
    avatar_url = COALESCE(excluded.avatar_url, profiles.avatar_url),
    updated_at = excluded.updated_at,
    last_login = COALESCE(excluded.last_login, profiles.last_login)`,
		p.UserID, p.Provider, p.ProviderID, p.Username,
		nullString(p.FirstName), nullString(p.LastName), nullString(p.Email), nullString(p.AvatarURL),
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt), nullMillis(p.LastLogin),
	)
	if err != nil {
		return nil, fmt.Errorf("[sqlite ProfileRepo.Upsert] %w", err)
	}
	return r.GetByID(ctx, p.UserID)
}

func (r *ProfileRepo) GetByID(ctx context.Context, userID string) (*profiles.Profile, error) {
	var (
		p                          profiles.Profile
		first, last, email, avatar sql.NullString
		createdAt, updatedAt       int64
		lastLogin                  sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Provider, &p.ProviderID, &p.Username,
		&first, &last, &email, &avatar, &createdAt, &updatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profiles.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[sqlite ProfileRepo.GetByID] %w", err)
	}
	p.FirstName = stringPtr(first)
	p.LastName = stringPtr(last)
	p.Email = stringPtr(email)
	p.AvatarURL = stringPtr(avatar)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	p.LastLogin = timePtr(lastLogin)
	return &p, nil
}
