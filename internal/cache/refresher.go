package cache

import (
	"context"
	"time"

	"workshop_backend/platform/logger"
)

// Refresher runs a refresh function periodically until its context ends.
type Refresher struct {
	name     string
	interval time.Duration
	refresh  func(context.Context) error
	log      *logger.Logger
}

// NewRefresher creates a refresher. A non-positive interval disables it.
func NewRefresher(name string, interval time.Duration, refresh func(context.Context) error, log *logger.Logger) *Refresher {
	return &Refresher{name: name, interval: interval, refresh: refresh, log: log}
}

// Run refreshes once immediately and then on every tick. It returns when ctx
// is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.log.Info("refresher disabled", "name", r.name)
		return
	}

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	if err := r.refresh(ctx); err != nil && ctx.Err() == nil {
		r.log.Degraded("refresh "+r.name, err)
	}
}
