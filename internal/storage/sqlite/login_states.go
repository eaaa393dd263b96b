package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/algelab-auth/loginstate"
)

var _ loginstate.Repo = (*LoginStateRepo)(nil)

type LoginStateRepo struct {
	db *sql.DB
}

func (r *LoginStateRepo) Insert(ctx context.Context, rec loginstate.Record) error {
	if rec.TokenHash == "" {
		return errors.New("[sqlite LoginStateRepo.Insert] token hash cannot be empty")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_states (token_hash, created_at, expires_at) VALUES (?, ?, ?)`,
		rec.TokenHash, toMillis(rec.CreatedAt), toMillis(rec.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("[sqlite LoginStateRepo.Insert] %w", err)
	}
	return nil
}

// Take deletes and returns the row in one statement so two callers can never
// both observe it.
func (r *LoginStateRepo) Take(ctx context.Context, tokenHash string) (loginstate.Record, error) {
	var createdAt, expiresAt int64
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM login_states WHERE token_hash = ? RETURNING created_at, expires_at`,
		tokenHash,
	).Scan(&createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return loginstate.Record{}, loginstate.ErrNotFound
	}
	if err != nil {
		return loginstate.Record{}, fmt.Errorf("[sqlite LoginStateRepo.Take] %w", err)
	}
	return loginstate.Record{
		TokenHash: tokenHash,
		CreatedAt: fromMillis(createdAt),
		ExpiresAt: fromMillis(expiresAt),
	}, nil
}

func (r *LoginStateRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_states WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("[sqlite LoginStateRepo.DeleteExpired] %w", err)
	}
	return res.RowsAffected()
}
