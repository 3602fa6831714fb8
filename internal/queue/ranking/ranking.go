// Package ranking keeps a daily queue densely ranked. Ranked tickets hold
// positions 1..n with no gaps; no-show tickets keep their row with position 0.
package ranking

import (
	"errors"
	"sort"

	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"

	"github.com/google/uuid"
)

// ErrNotDense means a write would leave the ranking with a gap or a
// duplicate position. Stores check it before committing.
var ErrNotDense = errors.New("queue ranking is not dense")

// Sort orders tickets as a queue is presented: ranked tickets by position,
// then no-shows by creation time.
func Sort(tickets []domain.QueueTicket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		if a.Ranked() != b.Ranked() {
			return a.Ranked()
		}
		if a.Ranked() {
			return a.Position < b.Position
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// Rerank sorts tickets and renumbers the ranked ones 1..n in their current
// order. No-shows get position 0.
func Rerank(tickets []domain.QueueTicket) []domain.QueueTicket {
	out := append([]domain.QueueTicket(nil), tickets...)
	Sort(out)
	next := 1
	for i := range out {
		if !out[i].Ranked() {
			out[i].Position = 0
			continue
		}
		out[i].Position = next
		next++
	}
	return out
}

// NextPosition is the tail position for a new ticket.
func NextPosition(tickets []domain.QueueTicket) int {
	n := 0
	for _, t := range tickets {
		if t.Ranked() {
			n++
		}
	}
	return n + 1
}

// ValidateOrder checks that orderedIDs is exactly the set of ranked ticket ids,
// each listed once.
func ValidateOrder(tickets []domain.QueueTicket, orderedIDs []uuid.UUID) error {
	ranked := make(map[uuid.UUID]bool, len(tickets))
	noShow := make(map[uuid.UUID]bool)
	for _, t := range tickets {
		if t.Ranked() {
			ranked[t.ID] = true
		} else {
			noShow[t.ID] = true
		}
	}

	var fields []apperr.FieldError
	seen := make(map[uuid.UUID]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		switch {
		case seen[id]:
			fields = append(fields, apperr.FieldError{Path: "orderedIds", Message: "duplicate ticket " + id.String()})
		case noShow[id]:
			fields = append(fields, apperr.FieldError{Path: "orderedIds", Message: "ticket " + id.String() + " is a no-show"})
		case !ranked[id]:
			fields = append(fields, apperr.FieldError{Path: "orderedIds", Message: "unknown ticket " + id.String()})
		}
		seen[id] = true
	}
	for _, t := range tickets {
		if t.Ranked() && !seen[t.ID] {
			fields = append(fields, apperr.FieldError{Path: "orderedIds", Message: "missing ticket " + t.ID.String()})
		}
	}

	if len(fields) > 0 {
		return apperr.Validation("ordering must list every queued ticket exactly once", fields...)
	}
	return nil
}

// Apply assigns positions following orderedIDs. Callers validate first.
func Apply(tickets []domain.QueueTicket, orderedIDs []uuid.UUID) []domain.QueueTicket {
	rank := make(map[uuid.UUID]int, len(orderedIDs))
	for i, id := range orderedIDs {
		rank[id] = i + 1
	}
	out := append([]domain.QueueTicket(nil), tickets...)
	for i := range out {
		if out[i].Ranked() {
			out[i].Position = rank[out[i].ID]
		}
	}
	Sort(out)
	return out
}

// IsDense reports whether the ranked tickets hold exactly positions 1..n.
func IsDense(tickets []domain.QueueTicket) bool {
	seen := make(map[int]bool)
	n := 0
	for _, t := range tickets {
		if !t.Ranked() {
			if t.Position != 0 {
				return false
			}
			continue
		}
		n++
		if seen[t.Position] {
			return false
		}
		seen[t.Position] = true
	}
	for p := 1; p <= n; p++ {
		if !seen[p] {
			return false
		}
	}
	return true
}

// StaleVersion is the conflict returned when a reorder was based on an
// outdated queue. The caller refetches and retries.
func StaleVersion(current int64) *apperr.Error {
	return apperr.Conflict("queue was changed by someone else").
		WithDetails(apperr.ConflictDetail{CurrentVersion: &current})
}
