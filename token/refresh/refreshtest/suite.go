// Package refreshtest holds behaviour checks shared by every refresh.Repo
// implementation.
package refreshtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/algelab-auth/internal/utils"
	"github.com/jrsteele09/algelab-auth/token/refresh"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newRecord(token, userID, familyID string, issued time.Time, ttl time.Duration) *refresh.Record {
	return &refresh.Record{
		ID:        ulid.Make().String(),
		TokenHash: utils.HashToken(token),
		FamilyID:  familyID,
		UserID:    userID,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(ttl),
	}
}

// RunRepoSuite exercises repo against the refresh.Repo contract. newRepo must
// return an empty store.
func RunRepoSuite(t *testing.T, newRepo func(t *testing.T) refresh.Repo) {
	t.Run("CreateAndGet", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		rec := newRecord("r1", "github_1", uuid.NewString(), base, time.Hour)
		require.NoError(t, repo.Create(ctx, rec))

		got, err := repo.Get(ctx, rec.TokenHash)
		require.NoError(t, err)
		require.Equal(t, rec.ID, got.ID)
		require.Equal(t, rec.FamilyID, got.FamilyID)
		require.Equal(t, "github_1", got.UserID)
		require.False(t, got.Revoked)
		require.True(t, got.ExpiresAt.Equal(rec.ExpiresAt))

		_, err = repo.Get(ctx, utils.HashToken("missing"))
		require.ErrorIs(t, err, refresh.ErrNotFound)
	})

	t.Run("RotateRevokesOldAndInheritsFamily", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		family := uuid.NewString()
		old := newRecord("r1", "github_1", family, base, time.Hour)
		require.NoError(t, repo.Create(ctx, old))

		next := newRecord("r2", "", "", base.Add(time.Minute), time.Hour)
		prev, err := repo.Rotate(ctx, old.TokenHash, base.Add(time.Minute), next)
		require.NoError(t, err)
		require.Equal(t, old.ID, prev.ID)

		got, err := repo.Get(ctx, old.TokenHash)
		require.NoError(t, err)
		require.True(t, got.Revoked)
		require.NotNil(t, got.RevokedAt)
		require.Equal(t, refresh.ReasonRotated, got.RevokedReason)

		succ, err := repo.Get(ctx, next.TokenHash)
		require.NoError(t, err)
		require.Equal(t, family, succ.FamilyID)
		require.Equal(t, "github_1", succ.UserID)
		require.False(t, succ.Revoked)
	})

	t.Run("RotateFailures", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		rec := newRecord("r1", "github_1", uuid.NewString(), base, time.Hour)
		require.NoError(t, repo.Create(ctx, rec))

		_, err := repo.Rotate(ctx, utils.HashToken("missing"), base, newRecord("x", "", "", base, time.Hour))
		require.ErrorIs(t, err, refresh.ErrNotFound)

		expiredNext := newRecord("r2", "", "", base.Add(time.Hour), time.Hour)
		old, err := repo.Rotate(ctx, rec.TokenHash, base.Add(time.Hour), expiredNext)
		require.ErrorIs(t, err, refresh.ErrExpired)
		require.NotNil(t, old)
		_, err = repo.Get(ctx, expiredNext.TokenHash)
		require.ErrorIs(t, err, refresh.ErrNotFound)

		fresh := newRecord("r3", "github_1", uuid.NewString(), base, time.Hour)
		require.NoError(t, repo.Create(ctx, fresh))
		_, err = repo.Rotate(ctx, fresh.TokenHash, base, newRecord("r4", "", "", base, time.Hour))
		require.NoError(t, err)
		old, err = repo.Rotate(ctx, fresh.TokenHash, base, newRecord("r5", "", "", base, time.Hour))
		require.ErrorIs(t, err, refresh.ErrRevoked)
		require.Equal(t, fresh.FamilyID, old.FamilyID)
	})

	t.Run("ConcurrentRotateSucceedsOnce", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		rec := newRecord("r1", "github_1", uuid.NewString(), base, time.Hour)
		require.NoError(t, repo.Create(ctx, rec))

		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				next := newRecord(uuid.NewString(), "", "", base, time.Hour)
				if _, err := repo.Rotate(ctx, rec.TokenHash, base, next); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, successes)
	})

	t.Run("RevokeFamily", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		family := uuid.NewString()
		a := newRecord("a", "github_1", family, base, time.Hour)
		b := newRecord("b", "github_1", family, base, time.Hour)
		other := newRecord("c", "github_1", uuid.NewString(), base, time.Hour)
		for _, r := range []*refresh.Record{a, b, other} {
			require.NoError(t, repo.Create(ctx, r))
		}

		n, err := repo.RevokeFamily(ctx, family, refresh.ReasonLogout, base)
		require.NoError(t, err)
		require.Equal(t, int64(2), n)

		n, err = repo.RevokeFamily(ctx, family, refresh.ReasonLogout, base)
		require.NoError(t, err)
		require.Zero(t, n)

		got, err := repo.Get(ctx, b.TokenHash)
		require.NoError(t, err)
		require.True(t, got.Revoked)
		require.Equal(t, refresh.ReasonLogout, got.RevokedReason)

		got, err = repo.Get(ctx, other.TokenHash)
		require.NoError(t, err)
		require.False(t, got.Revoked)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		short := newRecord("short", "github_1", uuid.NewString(), base, time.Minute)
		long := newRecord("long", "github_1", uuid.NewString(), base, time.Hour)
		require.NoError(t, repo.Create(ctx, short))
		require.NoError(t, repo.Create(ctx, long))

		n, err := repo.DeleteExpired(ctx, base.Add(time.Minute))
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		_, err = repo.Get(ctx, short.TokenHash)
		require.ErrorIs(t, err, refresh.ErrNotFound)
		_, err = repo.Get(ctx, long.TokenHash)
		require.NoError(t, err)
	})
}
