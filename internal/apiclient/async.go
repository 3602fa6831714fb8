package apiclient

import (
	"context"
	"time"

	"workshop_backend/internal/assignments/service"
	"workshop_backend/internal/cache"
	"workshop_backend/internal/domain"

	"github.com/google/uuid"
)

// ReorderQueueAsync applies a reorder without waiting for the server. The
// returned handle shows optimistic until the server confirms or rejects the
// change; a rejection is also published as a MutationFailed event.
func (c *Client) ReorderQueueAsync(ctx context.Context, d *service.Dispatcher, optimistic domain.Queue, orderedIDs []uuid.UUID) *cache.Provisional[domain.Queue] {
	expected := optimistic.Version
	return service.Dispatch(ctx, d, "queues.reorder", optimistic, func(ctx context.Context) (domain.Queue, error) {
		return c.ReorderQueue(ctx, optimistic.CenterID, optimistic.Date, expected, orderedIDs)
	})
}

// CancelAssignmentAsync cancels an assignment without waiting for the server.
func (c *Client) CancelAssignmentAsync(ctx context.Context, d *service.Dispatcher, optimistic domain.Assignment) *cache.Provisional[domain.CancelResult] {
	cancelled := optimistic
	cancelled.Status = domain.AssignmentCancelled
	cancelled.UpdatedAt = time.Now().UTC()
	return service.Dispatch(ctx, d, "assignments.cancel", domain.CancelResult{Assignment: cancelled},
		func(ctx context.Context) (domain.CancelResult, error) {
			return c.CancelAssignment(ctx, optimistic.ID)
		})
}
