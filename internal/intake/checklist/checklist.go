// Package checklist computes checklist completion for an intake and checks
// that recorded responses agree with the type of their catalog item.
package checklist

import (
	"fmt"
	"strings"

	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"

	"github.com/google/uuid"
)

// Progress is the completion state of an intake's required items.
type Progress struct {
	IntakeID          uuid.UUID `json:"intakeId"`
	RequiredTotal     int       `json:"requiredTotal"`
	RequiredCompleted int       `json:"requiredCompleted"`
	Ratio             float64   `json:"ratio"`
	Complete          bool      `json:"isAllRequiredCompleted"`
	MissingItemIDs    []string  `json:"missingItemIds"`
}

// Evaluate counts the active required items that have an answer. An intake
// with no required items is complete.
func Evaluate(intakeID uuid.UUID, items []domain.ChecklistItem, responses []domain.ChecklistResponse) Progress {
	byItem := make(map[uuid.UUID]domain.ChecklistResponse, len(responses))
	for _, r := range responses {
		byItem[r.ItemID] = r
	}

	p := Progress{IntakeID: intakeID, MissingItemIDs: []string{}}
	for _, item := range items {
		if !item.IsActive || !item.IsRequired {
			continue
		}
		p.RequiredTotal++
		resp, ok := byItem[item.ID]
		if ok && Answers(item, resp) {
			p.RequiredCompleted++
			continue
		}
		p.MissingItemIDs = append(p.MissingItemIDs, item.ID.String())
	}

	if p.RequiredTotal == 0 {
		p.Ratio = 1
	} else {
		p.Ratio = float64(p.RequiredCompleted) / float64(p.RequiredTotal)
	}
	p.Complete = p.RequiredCompleted == p.RequiredTotal
	return p
}

// Answers reports whether resp holds a value of item's declared type. A Bool
// item counts as answered once set, whether true or false.
func Answers(item domain.ChecklistItem, resp domain.ChecklistResponse) bool {
	switch item.Type {
	case domain.ItemBool:
		return resp.BoolValue != nil
	case domain.ItemNumber:
		return resp.NumberValue != nil
	case domain.ItemText:
		return resp.TextValue != nil && strings.TrimSpace(*resp.TextValue) != ""
	default:
		return false
	}
}

// ValidateResponses checks a batch of responses against the catalog. Every
// offending field is reported with its path inside the batch.
func ValidateResponses(items []domain.ChecklistItem, responses []domain.ChecklistResponse) error {
	catalog := make(map[uuid.UUID]domain.ChecklistItem, len(items))
	for _, item := range items {
		catalog[item.ID] = item
	}

	var fields []apperr.FieldError
	seen := make(map[uuid.UUID]bool, len(responses))
	for i, r := range responses {
		item, ok := catalog[r.ItemID]
		if !ok {
			fields = append(fields, field(i, "checklistItemId", "does not exist"))
			continue
		}
		if seen[r.ItemID] {
			fields = append(fields, field(i, "checklistItemId", "listed more than once"))
			continue
		}
		seen[r.ItemID] = true
		fields = append(fields, typeErrors(i, item, r)...)
	}

	if len(fields) > 0 {
		return apperr.Validation("checklist responses are invalid", fields...)
	}
	return nil
}

func typeErrors(i int, item domain.ChecklistItem, r domain.ChecklistResponse) []apperr.FieldError {
	var out []apperr.FieldError
	reject := func(name string) {
		out = append(out, field(i, name, fmt.Sprintf("must be empty for a %s item", item.Type)))
	}

	if r.BoolValue != nil && item.Type != domain.ItemBool {
		reject("boolValue")
	}
	if r.NumberValue != nil && item.Type != domain.ItemNumber {
		reject("numberValue")
	}
	if r.TextValue != nil && item.Type != domain.ItemText {
		reject("textValue")
	}
	return out
}

func field(i int, name, message string) apperr.FieldError {
	return apperr.FieldError{Path: fmt.Sprintf("responses[%d].%s", i, name), Message: message}
}
