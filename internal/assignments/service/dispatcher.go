package service

import (
	"context"
	"sync"
	"time"

	"workshop_backend/internal/cache"
	"workshop_backend/internal/events"
	"workshop_backend/platform/apperr"
	"workshop_backend/platform/logger"
)

const defaultDispatchTimeout = 30 * time.Second

// Dispatcher runs mutations that must finish even after their initiator is
// gone. Failures are published as MutationFailed events.
type Dispatcher struct {
	bus     events.Bus
	log     *logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A non-positive timeout uses 30s.
func NewDispatcher(bus events.Bus, log *logger.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{bus: bus, log: log, timeout: timeout}
}

// Go runs fn on a context detached from ctx's cancellation but carrying its
// values.
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		runCtx, cancel := context.WithTimeout(detached, d.timeout)
		defer cancel()
		if err := fn(runCtx); err != nil {
			d.fail(detached, name, err)
		}
	}()
}

// Wait blocks until every dispatched mutation has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) fail(ctx context.Context, name string, err error) {
	code := apperr.KindInternal.String()
	message := err.Error()
	if appErr, ok := apperr.As(err); ok {
		code = appErr.Code()
		message = appErr.Message
	}
	d.log.WithContext(ctx).Error("detached mutation failed", "operation", name, "code", code, "error", err)
	d.bus.Publish(ctx, events.MutationFailed{
		BaseEvent: events.NewBaseEvent(),
		Operation: name,
		Code:      code,
		Message:   message,
	})
}

// Dispatch runs fn through d and returns a provisional handle that starts
// with optimistic and settles with fn's outcome.
func Dispatch[T any](ctx context.Context, d *Dispatcher, name string, optimistic T, fn func(ctx context.Context) (T, error)) *cache.Provisional[T] {
	p := cache.NewProvisional(optimistic)
	d.Go(ctx, name, func(ctx context.Context) error {
		value, err := fn(ctx)
		if err != nil {
			p.Fail(err)
			return err
		}
		p.Confirm(value)
		return nil
	})
	return p
}
