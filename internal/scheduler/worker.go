package scheduler

import (
	"context"
	"fmt"
	"time"

	"workshop_backend/platform/apperr"
	"workshop_backend/platform/config"
	"workshop_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// OverdueChecker marks a ticket overdue when its ETA has lapsed.
type OverdueChecker interface {
	CheckOverdue(ctx context.Context, ticketID uuid.UUID, scheduledETA time.Time) (bool, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	checker OverdueChecker
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, checker OverdueChecker, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server:  server,
		mux:     asynq.NewServeMux(),
		checker: checker,
		log:     log,
	}
	w.mux.HandleFunc(TaskQueueOverdue, w.handleQueueOverdue)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleQueueOverdue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseQueueOverduePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	ticketID, err := uuid.Parse(payload.TicketID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	marked, err := w.checker.CheckOverdue(ctx, ticketID, payload.EstimatedStart)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if marked {
		w.log.Info("queue ticket marked overdue", "ticketId", ticketID)
	}
	return nil
}
