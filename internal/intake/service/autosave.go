package service

import (
	"context"
	"time"

	"workshop_backend/internal/domain"
	"workshop_backend/internal/events"
	"workshop_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultAutosaveInterval = 30 * time.Second

// ResponseSaver writes a batch of checklist responses. Gate implements it
// locally and the API client implements it against a remote server.
type ResponseSaver interface {
	SaveResponses(ctx context.Context, intakeID uuid.UUID, responses []domain.ChecklistResponse) ([]domain.ChecklistResponse, error)
}

type draftEntry struct {
	resp domain.ChecklistResponse
	rev  uint64
}

type flushOutcome struct {
	revs map[uuid.UUID]uint64
	err  error
}

// Autosaver buffers checklist edits for one intake and writes them on a
// timer or on demand. The buffer is owned by the Run goroutine. At most one
// write is in flight; entries are dropped only after a confirmed write and
// only if they were not edited again meanwhile. A failed write keeps the
// buffer and re-arms the timer.
type Autosaver struct {
	saver    ResponseSaver
	intakeID uuid.UUID
	interval time.Duration
	bus      events.Bus
	log      *logger.Logger

	edits   chan domain.ChecklistResponse
	flushes chan chan error
	pending chan chan int
	done    chan struct{}
}

// NewAutosaver creates an autosaver. Nothing is written until Run starts.
func NewAutosaver(saver ResponseSaver, intakeID uuid.UUID, interval time.Duration, bus events.Bus, log *logger.Logger) *Autosaver {
	if interval <= 0 {
		interval = defaultAutosaveInterval
	}
	return &Autosaver{
		saver:    saver,
		intakeID: intakeID,
		interval: interval,
		bus:      bus,
		log:      log,
		edits:    make(chan domain.ChecklistResponse),
		flushes:  make(chan chan error),
		pending:  make(chan chan int),
		done:     make(chan struct{}),
	}
}

// Set records an edit. A later edit of the same item replaces it.
func (a *Autosaver) Set(ctx context.Context, resp domain.ChecklistResponse) error {
	select {
	case a.edits <- resp:
		return nil
	case <-a.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush writes the buffer now and waits for the outcome. When a write is
// already in flight, Flush waits for it and then writes whatever is left.
func (a *Autosaver) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case a.flushes <- reply:
	case <-a.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports how many items are waiting to be written.
func (a *Autosaver) Pending(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	select {
	case a.pending <- reply:
	case <-a.done:
		return 0, context.Canceled
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Run owns the buffer until ctx is cancelled. Writes run on a context
// detached from ctx so a write that has started is allowed to finish.
func (a *Autosaver) Run(ctx context.Context) {
	defer close(a.done)

	var (
		buffer   = make(map[uuid.UUID]draftEntry)
		rev      uint64
		timer    *time.Timer
		timerC   <-chan time.Time
		inFlight bool
		results  = make(chan flushOutcome, 1)
		waiting  []chan error
		again    []chan error
	)

	arm := func() {
		if timerC != nil || inFlight || len(buffer) == 0 {
			return
		}
		timer = time.NewTimer(a.interval)
		timerC = timer.C
	}
	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC = nil, nil
	}
	start := func() {
		disarm()
		batch := make([]domain.ChecklistResponse, 0, len(buffer))
		revs := make(map[uuid.UUID]uint64, len(buffer))
		for id, e := range buffer {
			batch = append(batch, e.resp)
			revs[id] = e.rev
		}
		inFlight = true
		go func() {
			_, err := a.saver.SaveResponses(context.WithoutCancel(ctx), a.intakeID, batch)
			results <- flushOutcome{revs: revs, err: err}
		}()
	}
	reply := func(list []chan error, err error) {
		for _, ch := range list {
			ch <- err
		}
	}

	for {
		select {
		case <-ctx.Done():
			disarm()
			if inFlight {
				out := <-results
				reply(waiting, out.err)
			}
			reply(again, context.Canceled)
			return

		case resp := <-a.edits:
			rev++
			resp.IntakeID = a.intakeID
			buffer[resp.ItemID] = draftEntry{resp: resp, rev: rev}
			arm()

		case ch := <-a.pending:
			ch <- len(buffer)

		case ch := <-a.flushes:
			switch {
			case inFlight:
				again = append(again, ch)
			case len(buffer) == 0:
				ch <- nil
			default:
				waiting = append(waiting, ch)
				start()
			}

		case <-timerC:
			timer, timerC = nil, nil
			if !inFlight && len(buffer) > 0 {
				start()
			}

		case out := <-results:
			inFlight = false
			if out.err != nil {
				a.log.WithContext(ctx).Warn("checklist autosave failed", "intakeId", a.intakeID, "error", out.err)
				a.bus.Publish(ctx, events.ChecklistAutosaveFailed{
					BaseEvent:    events.NewBaseEvent(),
					IntakeID:     a.intakeID,
					PendingItems: len(buffer),
					Error:        out.err.Error(),
				})
			} else {
				for id, r := range out.revs {
					if e, ok := buffer[id]; ok && e.rev == r {
						delete(buffer, id)
					}
				}
			}
			reply(waiting, out.err)
			waiting = nil

			if len(again) > 0 && len(buffer) > 0 {
				waiting, again = again, nil
				start()
				continue
			}
			reply(again, out.err)
			again = nil
			arm()
		}
	}
}
