// Package janitor periodically deletes expired login states and refresh
// token records.
package janitor

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/algelab-auth/internal/metrics"
	"github.com/rs/zerolog/log"
)

const defaultInterval = 5 * time.Minute

// Purger deletes expired rows and reports how many went.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgerFunc adapts a function to Purger.
type PurgerFunc func(ctx context.Context) (int64, error)

func (f PurgerFunc) PurgeExpired(ctx context.Context) (int64, error) {
	return f(ctx)
}

type task struct {
	kind   string
	purger Purger
}

type Janitor struct {
	interval time.Duration
	metrics  *metrics.Metrics
	tasks    []task

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

type Option func(*Janitor)

func WithInterval(d time.Duration) Option {
	return func(j *Janitor) {
		j.interval = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Janitor) {
		j.metrics = m
	}
}

// WithPurger registers p under kind, which labels logs and metrics.
func WithPurger(kind string, p Purger) Option {
	return func(j *Janitor) {
		j.tasks = append(j.tasks, task{kind: kind, purger: p})
	}
}

func New(options ...Option) *Janitor {
	j := &Janitor{}
	for _, opt := range options {
		opt(j)
	}
	if j.interval <= 0 {
		j.interval = defaultInterval
	}
	return j
}

// Start runs the purge loop in a goroutine until ctx is cancelled or Stop is
// called.
func (j *Janitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})

	go func() {
		defer close(j.done)
		log.Info().Dur("interval", j.interval).Int("tasks", len(j.tasks)).Msg("janitor starting")

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Debug().Msg("janitor stopped")
				return
			case <-ticker.C:
				j.RunOnce(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		if j.cancel == nil {
			return
		}
		j.cancel()
		<-j.done
	})
}

// RunOnce runs every purger once. Failures are logged and do not stop the
// remaining purgers.
func (j *Janitor) RunOnce(ctx context.Context) map[string]int64 {
	purged := make(map[string]int64, len(j.tasks))
	for _, t := range j.tasks {
		n, err := t.purger.PurgeExpired(ctx)
		if err != nil {
			log.Err(err).Str("kind", t.kind).Msg("janitor purge failed")
			continue
		}
		purged[t.kind] = n
		j.metrics.Purged(t.kind, n)
		if n > 0 {
			log.Debug().Str("kind", t.kind).Int64("purged", n).Msg("janitor purged expired rows")
		}
	}
	return purged
}
