// Package loginstatetest holds behaviour checks shared by every
// loginstate.Repo implementation.
package loginstatetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/algelab-auth/internal/utils"
	"github.com/jrsteele09/algelab-auth/loginstate"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func record(token string, ttl time.Duration) loginstate.Record {
	return loginstate.Record{
		TokenHash: utils.HashToken(token),
		CreatedAt: base,
		ExpiresAt: base.Add(ttl),
	}
}

// RunRepoSuite exercises repo against the loginstate.Repo contract. newRepo
// must return an empty store.
func RunRepoSuite(t *testing.T, newRepo func(t *testing.T) loginstate.Repo) {
	t.Run("InsertAndTake", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		rec := record("s1", 5*time.Minute)
		require.NoError(t, repo.Insert(ctx, rec))

		got, err := repo.Take(ctx, rec.TokenHash)
		require.NoError(t, err)
		require.Equal(t, rec.TokenHash, got.TokenHash)
		require.True(t, got.ExpiresAt.Equal(rec.ExpiresAt))

		_, err = repo.Take(ctx, rec.TokenHash)
		require.ErrorIs(t, err, loginstate.ErrNotFound)
	})

	t.Run("ConcurrentTakeSucceedsOnce", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		rec := record("s1", 5*time.Minute)
		require.NoError(t, repo.Insert(ctx, rec))

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
				if _, err := repo.Take(ctx, rec.TokenHash); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, successes)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		short := record("short", time.Minute)
		long := record("long", time.Hour)
		require.NoError(t, repo.Insert(ctx, short))
		require.NoError(t, repo.Insert(ctx, long))

		n, err := repo.DeleteExpired(ctx, base.Add(time.Minute))
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		_, err = repo.Take(ctx, short.TokenHash)
		require.ErrorIs(t, err, loginstate.ErrNotFound)
		_, err = repo.Take(ctx, long.TokenHash)
		require.NoError(t, err)
	})
}
