package postgres_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/algelab-auth/internal/storage/postgres"
	"github.com/jrsteele09/algelab-auth/loginstate"
	"github.com/jrsteele09/algelab-auth/loginstate/loginstatetest"
	"github.com/jrsteele09/algelab-auth/profiles"
	"github.com/jrsteele09/algelab-auth/profiles/profilestest"
	"github.com/jrsteele09/algelab-auth/token/refresh"
	"github.com/jrsteele09/algelab-auth/token/refresh/refreshtest"
	"github.com/stretchr/testify/require"
)

// openStore connects to TEST_DATABASE_URL and empties every table. The tests
// skip when the variable is unset.
func openStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := postgres.Open(ctx, dsn, postgres.Options{MaxConns: 8})
	if err != nil {
		t.Skipf("Postgres unreachable (TEST_DATABASE_URL set): %v", err)
	}
	t.Cleanup(s.Close)

	_, err = s.Pool().Exec(ctx, `TRUNCATE login_states, refresh_tokens, profiles`)
	require.NoError(t, err)
	return s
}

func TestLoginStateRepo(t *testing.T) {
	loginstatetest.RunRepoSuite(t, func(t *testing.T) loginstate.Repo {
		return openStore(t).LoginStates()
	})
}

func TestRefreshRepo(t *testing.T) {
	refreshtest.RunRepoSuite(t, func(t *testing.T) refresh.Repo {
		return openStore(t).RefreshTokens()
	})
}

func TestProfileRepo(t *testing.T) {
	profilestest.RunRepoSuite(t, func(t *testing.T) profiles.Repo {
		return openStore(t).Profiles()
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))

	var applied int
	require.NoError(t, s.Pool().QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&applied))
	require.Equal(t, 1, applied)
}
