package refresh_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/algelab-auth/internal/utils"
	"github.com/jrsteele09/algelab-auth/token/refresh"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, now *time.Time) (*refresh.Manager, *refresh.InMemoryRepo) {
	t.Helper()
	repo := refresh.NewInMemoryRepo()
	m := refresh.NewManager(repo,
		refresh.WithExpiry(24*time.Hour),
		refresh.WithNowFunc(func() time.Time { return *now }),
	)
	return m, repo
}

func TestCreateStoresOnlyHash(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m, repo := newManager(t, &now)

	issued, err := m.Create(ctx, "github_1", "")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.NotEmpty(t, issued.Record.FamilyID)
	require.NotEqual(t, issued.Token, issued.Record.TokenHash)
	require.Equal(t, now.Add(24*time.Hour), issued.Record.ExpiresAt)

	stored, err := repo.Get(ctx, utils.HashToken(issued.Token))
	require.NoError(t, err)
	require.Equal(t, issued.Record.ID, stored.ID)
}

func TestCreateKeepsGivenFamily(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m, _ := newManager(t, &now)

	issued, err := m.Create(context.Background(), "github_1", "family-1")
	require.NoError(t, err)
	require.Equal(t, "family-1", issued.Record.FamilyID)

	_, err = m.Create(context.Background(), "", "")
	require.Error(t, err)
}

func TestRotateChain(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m, _ := newManager(t, &now)

	r1, err := m.Create(ctx, "github_1", "")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	r2, old, err := m.Rotate(ctx, r1.Token)
	require.NoError(t, err)
	require.Equal(t, r1.Record.ID, old.ID)
	require.Equal(t, r1.Record.FamilyID, r2.Record.FamilyID)
	require.NotEqual(t, r1.Token, r2.Token)

	// Presenting R1 again kills R2.
	_, _, err = m.Rotate(ctx, r1.Token)
	require.ErrorIs(t, err, refresh.ErrReuseDetected)

	_, _, err = m.Rotate(ctx, r2.Token)
	require.ErrorIs(t, err, refresh.ErrReuseDetected)

	rec, err := m.Lookup(ctx, r2.Token)
	require.NoError(t, err)
	require.True(t, rec.Revoked)
	require.Equal(t, refresh.ReasonReuseDetected, rec.RevokedReason)
}

func TestRotateUnknownAndExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m, _ := newManager(t, &now)

	_, _, err := m.Rotate(ctx, "")
	require.ErrorIs(t, err, refresh.ErrNotFound)
	_, _, err = m.Rotate(ctx, "not-a-token")
	require.ErrorIs(t, err, refresh.ErrNotFound)

	r1, err := m.Create(ctx, "github_1", "")
	require.NoError(t, err)
	now = now.Add(24 * time.Hour)
	_, _, err = m.Rotate(ctx, r1.Token)
	require.ErrorIs(t, err, refresh.ErrExpired)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m, _ := newManager(t, &now)

	r1, err := m.Create(ctx, "github_1", "")
	require.NoError(t, err)
	now = now.Add(25 * time.Hour)

	n, err := m.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	_, err = m.Lookup(ctx, r1.Token)
	require.ErrorIs(t, err, refresh.ErrNotFound)
}
