// Package profilestest holds behaviour checks shared by every profiles.Repo
// implementation.
package profilestest

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/algelab-auth/internal/utils"
	"github.com/jrsteele09/algelab-auth/profiles"
	"github.com/stretchr/testify/require"
)

// RunRepoSuite exercises repo against the profiles.Repo contract. newRepo
// must return an empty store.
func RunRepoSuite(t *testing.T, newRepo func(t *testing.T) profiles.Repo) {
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("InsertAndGet", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		p, err := repo.Upsert(ctx, &profiles.Profile{
			UserID:     "github_1",
			Provider:   "github",
			ProviderID: "1",
			Username:   "octocat",
			FirstName:  utils.Ptr("Mona"),
			Email:      utils.Ptr("mona@example.com"),
			CreatedAt:  created,
			UpdatedAt:  created,
			LastLogin:  &created,
		})
		require.NoError(t, err)
		require.Equal(t, "octocat", p.Username)

		got, err := repo.GetByID(ctx, "github_1")
		require.NoError(t, err)
		require.Equal(t, "github", got.Provider)
		require.Equal(t, "1", got.ProviderID)
		require.Equal(t, "Mona", utils.Value(got.FirstName))
		require.Nil(t, got.LastName)
		require.Equal(t, "mona@example.com", utils.Value(got.Email))
		require.True(t, created.Equal(got.CreatedAt))

		_, err = repo.GetByID(ctx, "github_2")
		require.ErrorIs(t, err, profiles.ErrNotFound)
	})

	t.Run("UpdateKeepsCreatedAtAndMissingFields", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		_, err := repo.Upsert(ctx, &profiles.Profile{
			UserID:     "github_1",
			Provider:   "github",
			ProviderID: "1",
			Username:   "octocat",
			Email:      utils.Ptr("mona@example.com"),
			CreatedAt:  created,
			UpdatedAt:  created,
		})
		require.NoError(t, err)

		later := created.Add(time.Hour)
		p, err := repo.Upsert(ctx, &profiles.Profile{
			UserID:     "github_1",
			Provider:   "github",
			ProviderID: "1",
			Username:   "renamed",
			LastName:   utils.Ptr("Octocat"),
			CreatedAt:  later,
			UpdatedAt:  later,
		})
		require.NoError(t, err)
		require.Equal(t, "renamed", p.Username)
		require.True(t, created.Equal(p.CreatedAt))
		require.True(t, later.Equal(p.UpdatedAt))
		require.Equal(t, "mona@example.com", utils.Value(p.Email))
		require.Equal(t, "Octocat", utils.Value(p.LastName))

		got, err := repo.GetByID(ctx, "github_1")
		require.NoError(t, err)
		require.Equal(t, "renamed", got.Username)
		require.Equal(t, "mona@example.com", utils.Value(got.Email))
	})
}
