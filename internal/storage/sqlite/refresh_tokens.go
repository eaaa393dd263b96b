package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/algelab-auth/token/refresh"
)

var _ refresh.Repo = (*RefreshRepo)(nil)

type RefreshRepo struct {
	db *sql.DB
}

const refreshColumns = `id, token_hash, family_id, user_id, issued_at, expires_at, revoked, revoked_at, revoked_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRefresh(row rowScanner) (*refresh.Record, error) {
	var (
		rec                 refresh.Record
		issuedAt, expiresAt int64
		revoked             int
		revokedAt           sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.TokenHash, &rec.FamilyID, &rec.UserID,
		&issuedAt, &expiresAt, &revoked, &revokedAt, &rec.RevokedReason); err != nil {
		return nil, err
	}
	rec.IssuedAt = fromMillis(issuedAt)
	rec.ExpiresAt = fromMillis(expiresAt)
	rec.Revoked = revoked != 0
	rec.RevokedAt = timePtr(revokedAt)
	return &rec, nil
}

func (r *RefreshRepo) Create(ctx context.Context, rec *refresh.Record) error {
	if rec == nil || rec.TokenHash == "" {
		return errors.New("[sqlite RefreshRepo.Create] refresh record requires a token hash")
	}
	if err := insertRefresh(ctx, r.db, rec); err != nil {
		return fmt.Errorf("[sqlite RefreshRepo.Create] %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRefresh(ctx context.Context, db execer, rec *refresh.Record) error {
	revoked := 0
	if rec.Revoked {
		revoked = 1
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TokenHash, rec.FamilyID, rec.UserID,
		toMillis(rec.IssuedAt), toMillis(rec.ExpiresAt),
		revoked, nullMillis(rec.RevokedAt), rec.RevokedReason,
	)
	return err
}

func (r *RefreshRepo) Get(ctx context.Context, tokenHash string) (*refresh.Record, error) {
	rec, err := scanRefresh(r.db.QueryRowContext(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE token_hash = ?`, tokenHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, refresh.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[sqlite RefreshRepo.Get] %w", err)
	}
	return rec, nil
}

// Rotate revokes the old row with a guarded UPDATE and inserts the successor
// inside the same transaction. Only one caller can flip revoked from 0 to 1.
func (r *RefreshRepo) Rotate(ctx context.Context, oldHash string, now time.Time, replacement *refresh.Record) (*refresh.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("[sqlite RefreshRepo.Rotate] begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	old, err := scanRefresh(tx.QueryRowContext(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE token_hash = ?`, oldHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, refresh.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[sqlite RefreshRepo.Rotate] load: %w", err)
	}
	if old.Revoked {
		return old, refresh.ErrRevoked
	}
	if !now.Before(old.ExpiresAt) {
		return old, refresh.ErrExpired
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, revoked_at = ?, revoked_reason = ?
		 WHERE token_hash = ? AND revoked = 0`,
		toMillis(now), refresh.ReasonRotated, oldHash,
	)
	if err != nil {
		return nil, fmt.Errorf("[sqlite RefreshRepo.Rotate] revoke: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return old, refresh.ErrRevoked
	}

	replacement.FamilyID = old.FamilyID
	replacement.UserID = old.UserID
	if err := insertRefresh(ctx, tx, replacement); err != nil {
		return nil, fmt.Errorf("[sqlite RefreshRepo.Rotate] insert successor: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("[sqlite RefreshRepo.Rotate] commit: %w", err)
	}
	return old, nil
}

func (r *RefreshRepo) RevokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, revoked_at = ?, revoked_reason = ?
		 WHERE family_id = ? AND revoked = 0`,
		toMillis(now), reason, familyID,
	)
	if err != nil {
		return 0, fmt.Errorf("[sqlite RefreshRepo.RevokeFamily] %w", err)
	}
	return res.RowsAffected()
}

func (r *RefreshRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("[sqlite RefreshRepo.DeleteExpired] %w", err)
	}
	return res.RowsAffected()
}
