package loginstate_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/algelab-auth/loginstate"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManager(t *testing.T) (*loginstate.Manager, *loginstate.InMemoryRepo, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	repo := loginstate.NewInMemoryRepo()
	m := loginstate.NewManager(repo,
		loginstate.WithTTL(5*time.Minute),
		loginstate.WithNowFunc(c.Now),
	)
	return m, repo, c
}

func TestIssueAndConsumeOnce(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newManager(t)

	state, err := m.Issue(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, state.Token)
	require.Equal(t, state.CreatedAt.Add(5*time.Minute), state.ExpiresAt)
	require.Equal(t, 1, repo.Len())

	require.NoError(t, m.Consume(ctx, state.Token))
	require.ErrorIs(t, m.Consume(ctx, state.Token), loginstate.ErrNotFound)
	require.Equal(t, 0, repo.Len())
}

func TestIssuedStatesAreDistinct(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		s, err := m.Issue(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(s.Token), 22) // 16 bytes base64url
		_, dup := seen[s.Token]
		require.False(t, dup)
		seen[s.Token] = struct{}{}
	}
}

func TestConsumeUnknownAndEmpty(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)

	require.ErrorIs(t, m.Consume(ctx, ""), loginstate.ErrNotFound)
	require.ErrorIs(t, m.Consume(ctx, "never-issued"), loginstate.ErrNotFound)
}

func TestConsumeExpiredDeletesRecord(t *testing.T) {
	ctx := context.Background()
	m, repo, c := newManager(t)

	state, err := m.Issue(ctx)
	require.NoError(t, err)

	c.Advance(5 * time.Minute)
	require.ErrorIs(t, m.Consume(ctx, state.Token), loginstate.ErrExpired)
	require.Equal(t, 0, repo.Len())
	require.ErrorIs(t, m.Consume(ctx, state.Token), loginstate.ErrNotFound)
}

func TestConcurrentConsumeSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)

	state, err := m.Issue(ctx)
	require.NoError(t, err)

	const workers = 32
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		notFound  atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := m.Consume(ctx, state.Token)
			switch {
			case err == nil:
				successes.Add(1)
			case err == loginstate.ErrNotFound:
				notFound.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), successes.Load())
	require.Equal(t, int32(workers-1), notFound.Load())
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	m, repo, c := newManager(t)

	_, err := m.Issue(ctx)
	require.NoError(t, err)
	c.Advance(4 * time.Minute)
	fresh, err := m.Issue(ctx)
	require.NoError(t, err)

	c.Advance(90 * time.Second)
	n, err := m.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, 1, repo.Len())
	require.NoError(t, m.Consume(ctx, fresh.Token))
}
