package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/algelab-auth/profiles"
)

var _ profiles.Repo = (*ProfileRepo)(nil)

type ProfileRepo struct {
	pool *pgxpool.Pool
}

const profileColumns = `user_id, provider, provider_id, username, first_name, last_name, email, avatar_url, created_at, updated_at, last_login`

func scanProfile(row pgx.Row) (*profiles.Profile, error) {
	var p profiles.Profile
	if err := row.Scan(&p.UserID, &p.Provider, &p.ProviderID, &p.Username,
		&p.FirstName, &p.LastName, &p.Email, &p.AvatarURL,
		&p.CreatedAt, &p.UpdatedAt, &p.LastLogin); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepo) Upsert(ctx context.Context, p *profiles.Profile) (*profiles.Profile, error) {
	if p == nil || p.UserID == "" {
		return nil, errors.New("[postgres ProfileRepo.Upsert] profile requires a user id")
	}
	var lastLogin *time.Time
	if p.LastLogin != nil {
		t := p.LastLogin.UTC()
		lastLogin = &t
	}
	out, err := scanProfile(r.pool.QueryRow(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			provider_id = EXCLUDED.provider_id,
			username = EXCLUDED.username,
			first_name = COALESCE(EXCLUDED.first_name, profiles.first_name),
			last_name = COALESCE(EXCLUDED.last_name, profiles.last_name),
			email = COALESCE(EXCLUDED.email, profiles.email),
			avatar_url = COALESCE(EXCLUDED.avatar_url, profiles.avatar_url),
			updated_at = EXCLUDED.updated_at,
			last_login = COALESCE(EXCLUDED.last_login, profiles.last_login)
		RETURNING `+profileColumns,
		p.UserID, p.Provider, p.ProviderID, p.Username,
		p.FirstName, p.LastName, p.Email, p.AvatarURL,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(), lastLogin,
	))
	if err != nil {
		return nil, fmt.Errorf("[postgres ProfileRepo.Upsert] %w", err)
	}
	return out, nil
}

func (r *ProfileRepo) GetByID(ctx context.Context, userID string) (*profiles.Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, profiles.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[postgres ProfileRepo.GetByID] %w", err)
	}
	return p, nil
}
