package janitor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/algelab-auth/internal/janitor"
	"github.com/jrsteele09/algelab-auth/internal/metrics"
	"github.com/jrsteele09/algelab-auth/loginstate"
	"github.com/stretchr/testify/require"
)

func TestRunOncePurgesExpiredStates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := loginstate.NewInMemoryRepo()
	states := loginstate.NewManager(repo, loginstate.WithNowFunc(func() time.Time { return now }))

	_, err := states.Issue(ctx)
	require.NoError(t, err)
	now = now.Add(states.TTL())
	_, err = states.Issue(ctx)
	require.NoError(t, err)

	m := metrics.New()
	j := janitor.New(janitor.WithMetrics(m), janitor.WithPurger("login_state", states))

	purged := j.RunOnce(ctx)
	require.Equal(t, int64(1), purged["login_state"])
	require.Equal(t, 1, repo.Len())

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "algelab_auth_janitor_purged_total" {
			found = true
			require.InDelta(t, 1, mf.GetMetric()[0].GetCounter().GetValue(), 0)
		}
	}
	require.True(t, found)
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	failing := janitor.PurgerFunc(func(context.Context) (int64, error) {
		calls.Add(1)
		return 0, errors.New("db down")
	})
	ok := janitor.PurgerFunc(func(context.Context) (int64, error) {
		calls.Add(1)
		return 3, nil
	})

	j := janitor.New(janitor.WithPurger("a", failing), janitor.WithPurger("b", ok))
	purged := j.RunOnce(context.Background())

	require.Equal(t, int32(2), calls.Load())
	require.NotContains(t, purged, "a")
	require.Equal(t, int64(3), purged["b"])
}

func TestStartAndStop(t *testing.T) {
	ran := make(chan struct{}, 1)
	p := janitor.PurgerFunc(func(context.Context) (int64, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return 0, nil
	})

	j := janitor.New(janitor.WithInterval(5*time.Millisecond), janitor.WithPurger("x", p))
	j.Start(context.Background())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor never ran")
	}
	j.Stop()
	j.Stop()
}
