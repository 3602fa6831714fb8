// workshopctl drives a running scheduling API from the command line: queue
// inspection and reordering, technician matching and assignment changes.
//
// Requests go through the API client, so transient failures are retried and
// error bodies come back as typed errors. With --async, reorder and cancel
// print the optimistic result straight away and the server's answer once it
// arrives.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workshop_backend/internal/apiclient"
	assignsvc "workshop_backend/internal/assignments/service"
	"workshop_backend/internal/availability"
	"workshop_backend/internal/cache"
	"workshop_backend/internal/domain"
	"workshop_backend/internal/events"
	"workshop_backend/internal/queue/ranking"
	"workshop_backend/platform/config"
	"workshop_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

const dateLayout = "2006-01-02"

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"queue", "print a center's queue for a day", runQueue},
	{"reorder", "replace the ranking of a queue", runReorder},
	{"match", "list technicians free for a window", runMatch},
	{"assign", "book a technician onto a booking", runAssign},
	{"cancel", "cancel an assignment", runCancel},
}

// env is shared by every command. The client is built after the command's
// flags are parsed so --api-url can override API_BASE_URL.
type env struct {
	cfg        *config.Config
	log        *logger.Logger
	out        io.Writer
	dispatcher *assignsvc.Dispatcher
	apiURL     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(out)
		return nil
	}
	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewWithWriter(cfg.Env, os.Stderr)
	bus := events.NewInMemoryBus(log)

	e := &env{
		cfg:        cfg,
		log:        log,
		out:        out,
		dispatcher: assignsvc.NewDispatcher(bus, log, cfg.GetAPITimeout()),
	}
	// Detached mutations outlive the command's context; let them land.
	defer e.dispatcher.Wait()
	if err := cmd.run(ctx, e, args[1:]); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return err
	}
	return nil
}

func (e *env) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&e.apiURL, "api-url", "", "scheduling API base URL (default $API_BASE_URL)")
	return fs
}

func (e *env) client() (*apiclient.Client, error) {
	if e.apiURL != "" {
		e.cfg.APIBaseURL = e.apiURL
	}
	return apiclient.New(e.cfg, e.log)
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// settlement is what --async prints: first the pending optimistic value,
// then the settled one.
type settlement struct {
	State cache.State `json:"state"`
	Value any         `json:"value"`
	Error string      `json:"error,omitempty"`
}

func follow[T any](ctx context.Context, e *env, p *cache.Provisional[T]) error {
	optimistic, state, _ := p.Snapshot()
	if err := e.print(settlement{State: state, Value: optimistic}); err != nil {
		return err
	}
	value, err := p.Wait(ctx)
	if err != nil {
		_, state, _ = p.Snapshot()
		_ = e.print(settlement{State: state, Value: optimistic, Error: err.Error()})
		return err
	}
	return e.print(settlement{State: cache.StateConfirmed, Value: value})
}

func runQueue(ctx context.Context, e *env, args []string) error {
	fs := e.flags("queue")
	center := fs.String("center", "", "service center id")
	day := fs.String("date", time.Now().UTC().Format(dateLayout), "queue date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	centerID, date, err := queueKey(*center, *day)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}

	queue, err := client.GetQueue(ctx, centerID, date)
	if err != nil {
		return err
	}
	return e.print(queue)
}

func runReorder(ctx context.Context, e *env, args []string) error {
	fs := e.flags("reorder")
	center := fs.String("center", "", "service center id")
	day := fs.String("date", time.Now().UTC().Format(dateLayout), "queue date (YYYY-MM-DD)")
	order := fs.StringSlice("order", nil, "ticket ids in their new order, comma separated")
	async := fs.Bool("async", false, "print the optimistic queue without waiting for the server first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	centerID, date, err := queueKey(*center, *day)
	if err != nil {
		return err
	}
	orderedIDs, err := parseIDs("order", *order)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}

	current, err := client.GetQueue(ctx, centerID, date)
	if err != nil {
		return err
	}
	if err := ranking.ValidateOrder(current.Tickets, orderedIDs); err != nil {
		return err
	}

	if !*async {
		queue, err := client.ReorderQueue(ctx, centerID, date, current.Version, orderedIDs)
		if err != nil {
			return err
		}
		return e.print(queue)
	}
	optimistic := current
	optimistic.Tickets = ranking.Apply(current.Tickets, orderedIDs)
	return follow(ctx, e, client.ReorderQueueAsync(ctx, e.dispatcher, optimistic, orderedIDs))
}

func runMatch(ctx context.Context, e *env, args []string) error {
	fs := e.flags("match")
	center := fs.String("center", "", "service center id")
	start := fs.String("start", "", "window start (RFC 3339)")
	end := fs.String("end", "", "window end (RFC 3339)")
	shift := fs.String("shift", "", "shift filter: morning, afternoon or evening")
	workload := fs.String("workload", "", "workload filter: light, moderate or heavy")
	specialty := fs.String("specialty", "", "specialty filter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	centerID, err := parseID("center", *center)
	if err != nil {
		return err
	}
	window, err := parseWindow(*start, *end)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}

	candidates, err := client.MatchTechnicians(ctx, availability.Request{
		CenterID: centerID,
		Window:   window,
		Filters: availability.Filters{
			Shift:     availability.Shift(*shift),
			Workload:  availability.WorkloadBand(*workload),
			Specialty: *specialty,
		},
	})
	if err != nil {
		return err
	}
	return e.print(candidates)
}

func runAssign(ctx context.Context, e *env, args []string) error {
	fs := e.flags("assign")
	booking := fs.String("booking", "", "booking id")
	technician := fs.String("technician", "", "technician id")
	center := fs.String("center", "", "service center id")
	start := fs.String("start", "", "planned start (RFC 3339)")
	end := fs.String("end", "", "planned end (RFC 3339)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	bookingID, err := parseID("booking", *booking)
	if err != nil {
		return err
	}
	technicianID, err := parseID("technician", *technician)
	if err != nil {
		return err
	}
	centerID, err := parseID("center", *center)
	if err != nil {
		return err
	}
	window, err := parseWindow(*start, *end)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}

	result, err := client.CreateAssignment(ctx, assignsvc.CreateRequest{
		WorkItemID:   &bookingID,
		TechnicianID: technicianID,
		CenterID:     centerID,
		Window:       window,
	})
	if err != nil {
		return err
	}
	return e.print(result)
}

func runCancel(ctx context.Context, e *env, args []string) error {
	fs := e.flags("cancel")
	id := fs.String("id", "", "assignment id")
	async := fs.Bool("async", false, "print the optimistic result without waiting for the server first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	assignmentID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}

	if !*async {
		result, err := client.CancelAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		return e.print(result)
	}
	return follow(ctx, e, client.CancelAssignmentAsync(ctx, e.dispatcher, domain.Assignment{ID: assignmentID}))
}

func queueKey(center, day string) (uuid.UUID, time.Time, error) {
	centerID, err := parseID("center", center)
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}
	date, err := time.Parse(dateLayout, day)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("--date: %w", err)
	}
	return centerID, date, nil
}

func parseID(flag, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", flag)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return id, nil
}

func parseIDs(flag string, values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("--%s is required", flag)
	}
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := parseID(flag, v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseWindow(start, end string) (domain.Window, error) {
	if start == "" || end == "" {
		return domain.Window{}, errors.New("--start and --end are required")
	}
	from, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return domain.Window{}, fmt.Errorf("--start: %w", err)
	}
	to, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return domain.Window{}, fmt.Errorf("--end: %w", err)
	}
	return domain.Window{Start: from.UTC(), End: to.UTC()}, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: workshopctl <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nRun workshopctl <command> --help for the command's flags.\n")
}
