package scheduler

import (
	"context"
	"time"

	"workshop_backend/platform/logger"
)

const (
	defaultOverdueSweepInterval = 5 * time.Minute
	overdueSweepBatch           = 200
)

// OverdueSweeper marks lapsed tickets in bulk.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, limit int) (int, error)
}

// OverdueSweep periodically marks tickets whose follow-up never ran, for
// instance because Redis was unreachable when the ETA was set.
type OverdueSweep struct {
	sweeper  OverdueSweeper
	log      *logger.Logger
	interval time.Duration
}

func NewOverdueSweep(sweeper OverdueSweeper, log *logger.Logger, interval time.Duration) *OverdueSweep {
	if interval <= 0 {
		interval = defaultOverdueSweepInterval
	}
	return &OverdueSweep{sweeper: sweeper, log: log, interval: interval}
}

func (s *OverdueSweep) Run(ctx context.Context) {
	if s == nil || s.sweeper == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *OverdueSweep) sweep(ctx context.Context) {
	marked, err := s.sweeper.SweepOverdue(ctx, overdueSweepBatch)
	if err != nil {
		s.log.Warn("overdue sweep failed", "error", err)
		return
	}

	if marked > 0 {
		s.log.Info("overdue sweep marked tickets", "marked", marked)
	}
}
