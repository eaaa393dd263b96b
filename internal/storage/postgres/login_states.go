package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/algelab-auth/loginstate"
)

var _ loginstate.Repo = (*LoginStateRepo)(nil)

type LoginStateRepo struct {
	pool *pgxpool.Pool
}

func (r *LoginStateRepo) Insert(ctx context.Context, rec loginstate.Record) error {
	if rec.TokenHash == "" {
		return errors.New("[postgres LoginStateRepo.Insert] token hash cannot be empty")
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO login_states (token_hash, created_at, expires_at) VALUES ($1, $2, $3)`,
		rec.TokenHash, rec.CreatedAt.UTC(), rec.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("[postgres LoginStateRepo.Insert] %w", err)
	}
	return nil
}

func (r *LoginStateRepo) Take(ctx context.Context, tokenHash string) (loginstate.Record, error) {
	rec := loginstate.Record{TokenHash: tokenHash}
	err := r.pool.QueryRow(ctx,
		`DELETE FROM login_states WHERE token_hash = $1 RETURNING created_at, expires_at`,
		tokenHash,
	).Scan(&rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return loginstate.Record{}, loginstate.ErrNotFound
	}
	if err != nil {
		return loginstate.Record{}, fmt.Errorf("[postgres LoginStateRepo.Take] %w", err)
	}
	return rec, nil
}

func (r *LoginStateRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_states WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("[postgres LoginStateRepo.DeleteExpired] %w", err)
	}
	return tag.RowsAffected(), nil
}
