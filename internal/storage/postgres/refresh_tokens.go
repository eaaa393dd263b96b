package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/algelab-auth/token/refresh"
)

var _ refresh.Repo = (*RefreshRepo)(nil)

type RefreshRepo struct {
	pool *pgxpool.Pool
}

const refreshColumns = `id, token_hash, family_id, user_id, issued_at, expires_at, revoked, revoked_at, revoked_reason`

func scanRefresh(row pgx.Row) (*refresh.Record, error) {
	var rec refresh.Record
	if err := row.Scan(&rec.ID, &rec.TokenHash, &rec.FamilyID, &rec.UserID,
		&rec.IssuedAt, &rec.ExpiresAt, &rec.Revoked, &rec.RevokedAt, &rec.RevokedReason); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RefreshRepo) Create(ctx context.Context, rec *refresh.Record) error {
	if rec == nil || rec.TokenHash == "" {
		return errors.New("[postgres RefreshRepo.Create] refresh record requires a token hash")
	}
	if err := insertRefreshTx(ctx, r.pool, rec); err != nil {
		return fmt.Errorf("[postgres RefreshRepo.Create] %w", err)
	}
	return nil
}

func (r *RefreshRepo) Get(ctx context.Context, tokenHash string) (*refresh.Record, error) {
	rec, err := scanRefresh(r.pool.QueryRow(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, refresh.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[postgres RefreshRepo.Get] %w", err)
	}
	return rec, nil
}

// Rotate locks the old row with SELECT ... FOR UPDATE so concurrent rotations
// of the same token queue behind each other; the first commits, the rest see
// it revoked.
func (r *RefreshRepo) Rotate(ctx context.Context, oldHash string, now time.Time, replacement *refresh.Record) (*refresh.Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("[postgres RefreshRepo.Rotate] begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := scanRefresh(tx.QueryRow(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE token_hash = $1 FOR UPDATE`, oldHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, refresh.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[postgres RefreshRepo.Rotate] load: %w", err)
	}
	if old.Revoked {
		return old, refresh.ErrRevoked
	}
	if !now.Before(old.ExpiresAt) {
		return old, refresh.ErrExpired
	}

	if _, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2, revoked_reason = $3
		WHERE id = $1
	`, old.ID, now.UTC(), refresh.ReasonRotated); err != nil {
		return nil, fmt.Errorf("[postgres RefreshRepo.Rotate] revoke: %w", err)
	}

	replacement.FamilyID = old.FamilyID
	replacement.UserID = old.UserID
	if err := insertRefreshTx(ctx, tx, replacement); err != nil {
		return nil, fmt.Errorf("[postgres RefreshRepo.Rotate] insert successor: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("[postgres RefreshRepo.Rotate] commit: %w", err)
	}
	return old, nil
}

func (r *RefreshRepo) RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2, revoked_reason = $3
		WHERE family_id = $1 AND NOT revoked
	`, familyID, now.UTC(), reason)
	if err != nil {
		return 0, fmt.Errorf("[postgres RefreshRepo.RevokeFamily] %w", err)
	}
	return tag.RowsAffected(), nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRefreshTx(ctx context.Context, db execer, rec *refresh.Record) error {
	_, err := db.Exec(ctx, `
		INSERT INTO refresh_tokens (
			id, token_hash, family_id, user_id,
			issued_at, expires_at, revoked, revoked_at, revoked_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.TokenHash, rec.FamilyID, rec.UserID,
		rec.IssuedAt.UTC(), rec.ExpiresAt.UTC(), rec.Revoked, rec.RevokedAt, rec.RevokedReason)
	return err
}

func (r *RefreshRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("[postgres RefreshRepo.DeleteExpired] %w", err)
	}
	return tag.RowsAffected(), nil
}
