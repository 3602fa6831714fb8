package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskQueueOverdue = "queues.ticket_overdue_check"

// QueueOverduePayload names the ticket and the ETA the check was scheduled
// for. A check whose ETA no longer matches the ticket is stale.
type QueueOverduePayload struct {
	TicketID       string    `json:"ticketId"`
	EstimatedStart time.Time `json:"estimatedStartUtc"`
}

func NewQueueOverdueTask(payload QueueOverduePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQueueOverdue, data), nil
}

func ParseQueueOverduePayload(task *asynq.Task) (QueueOverduePayload, error) {
	var payload QueueOverduePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return QueueOverduePayload{}, err
	}
	return payload, nil
}
