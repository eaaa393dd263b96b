package profiles_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/algelab-auth/identity"
	"github.com/jrsteele09/algelab-auth/internal/utils"
	"github.com/jrsteele09/algelab-auth/profiles"
	"github.com/jrsteele09/algelab-auth/profiles/profilestest"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo(t *testing.T) {
	profilestest.RunRepoSuite(t, func(t *testing.T) profiles.Repo {
		return profiles.NewInMemoryRepo()
	})
}

func TestStoreUpsertIsStableAcrossLogins(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := profiles.NewInMemoryRepo()
	store := profiles.NewStore(repo, profiles.WithNowFunc(func() time.Time { return now }))

	id := identity.Identity{
		Provider:   identity.ProviderGitHub,
		ProviderID: "42",
		Username:   "octocat",
		FirstName:  utils.Ptr("Mona"),
	}
	first, err := store.Upsert(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "github_42", first.UserID)

	now = now.Add(24 * time.Hour)
	id.Username = "octocat2"
	second, err := store.Upsert(ctx, id)
	require.NoError(t, err)
	require.Equal(t, first.UserID, second.UserID)
	require.True(t, first.CreatedAt.Equal(second.CreatedAt))
	require.True(t, now.Equal(utils.Value(second.LastLogin)))
	require.Equal(t, 1, repo.Len())

	got, err := store.Get(ctx, "github_42")
	require.NoError(t, err)
	require.Equal(t, "octocat2", got.Username)
}

func TestStoreUpsertRejectsEmptyIdentity(t *testing.T) {
	store := profiles.NewStore(profiles.NewInMemoryRepo())
	_, err := store.Upsert(context.Background(), identity.Identity{})
	require.Error(t, err)
}

func TestStoreUpsertIgnoresBlankFields(t *testing.T) {
	ctx := context.Background()
	store := profiles.NewStore(profiles.NewInMemoryRepo())

	id := identity.Identity{
		Provider:   identity.ProviderGitHub,
		ProviderID: "42",
		Username:   "octocat",
		Email:      utils.Ptr(" mona@example.com "),
	}
	_, err := store.Upsert(ctx, id)
	require.NoError(t, err)

	id.Email = utils.Ptr("   ")
	id.LastName = utils.Ptr("")
	p, err := store.Upsert(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "mona@example.com", utils.Value(p.Email))
	require.Nil(t, p.LastName)
}
