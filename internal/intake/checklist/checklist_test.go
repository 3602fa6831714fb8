package checklist

import (
	"testing"

	"workshop_backend/internal/domain"
	"workshop_backend/platform/apperr"

	"github.com/google/uuid"
)

func item(kind domain.ChecklistItemType, required bool) domain.ChecklistItem {
	return domain.ChecklistItem{ID: uuid.New(), Label: string(kind), Type: kind, IsRequired: required, IsActive: true}
}

func boolPtr(v bool) *bool      { return &v }
func numPtr(v float64) *float64 { return &v }
func strPtr(v string) *string   { return &v }

func TestEvaluateCountsOnlyActiveRequiredItems(t *testing.T) {
	brakes := item(domain.ItemBool, true)
	mileage := item(domain.ItemNumber, true)
	notes := item(domain.ItemText, true)
	optional := item(domain.ItemBool, false)
	retired := item(domain.ItemBool, true)
	retired.IsActive = false

	intakeID := uuid.New()
	responses := []domain.ChecklistResponse{
		{ItemID: brakes.ID, BoolValue: boolPtr(false)},
		{ItemID: mileage.ID, NumberValue: numPtr(120500)},
		{ItemID: optional.ID, BoolValue: boolPtr(true)},
	}

	p := Evaluate(intakeID, []domain.ChecklistItem{brakes, mileage, notes, optional, retired}, responses)
	if p.RequiredTotal != 3 || p.RequiredCompleted != 2 {
		t.Fatalf("expected 2/3, got %d/%d", p.RequiredCompleted, p.RequiredTotal)
	}
	if p.Complete {
		t.Fatal("expected incomplete checklist")
	}
	if len(p.MissingItemIDs) != 1 || p.MissingItemIDs[0] != notes.ID.String() {
		t.Fatalf("expected only the text item missing, got %v", p.MissingItemIDs)
	}

	responses = append(responses, domain.ChecklistResponse{ItemID: notes.ID, TextValue: strPtr("scratch on rear door")})
	p = Evaluate(intakeID, []domain.ChecklistItem{brakes, mileage, notes, optional, retired}, responses)
	if !p.Complete || p.Ratio != 1 || len(p.MissingItemIDs) != 0 {
		t.Fatalf("expected complete checklist, got %+v", p)
	}
}

func TestEvaluateWithoutRequiredItemsIsComplete(t *testing.T) {
	p := Evaluate(uuid.New(), []domain.ChecklistItem{item(domain.ItemText, false)}, nil)
	if !p.Complete || p.Ratio != 1 || p.RequiredTotal != 0 {
		t.Fatalf("expected trivially complete progress, got %+v", p)
	}
}

func TestAnswers(t *testing.T) {
	tests := []struct {
		name string
		kind domain.ChecklistItemType
		resp domain.ChecklistResponse
		want bool
	}{
		{name: "bool false counts", kind: domain.ItemBool, resp: domain.ChecklistResponse{BoolValue: boolPtr(false)}, want: true},
		{name: "bool unset", kind: domain.ItemBool, resp: domain.ChecklistResponse{}, want: false},
		{name: "zero number counts", kind: domain.ItemNumber, resp: domain.ChecklistResponse{NumberValue: numPtr(0)}, want: true},
		{name: "blank text", kind: domain.ItemText, resp: domain.ChecklistResponse{TextValue: strPtr("   ")}, want: false},
		{name: "text", kind: domain.ItemText, resp: domain.ChecklistResponse{TextValue: strPtr("ok")}, want: true},
		{name: "wrong type", kind: domain.ItemNumber, resp: domain.ChecklistResponse{TextValue: strPtr("12")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Answers(item(tt.kind, true), tt.resp); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestValidateResponsesReportsPaths(t *testing.T) {
	brakes := item(domain.ItemBool, true)
	mileage := item(domain.ItemNumber, true)

	err := ValidateResponses([]domain.ChecklistItem{brakes, mileage}, []domain.ChecklistResponse{
		{ItemID: brakes.ID, BoolValue: boolPtr(true)},
		{ItemID: mileage.ID, TextValue: strPtr("lots")},
		{ItemID: uuid.New(), BoolValue: boolPtr(true)},
		{ItemID: brakes.ID, BoolValue: boolPtr(false)},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	domainErr, _ := apperr.As(err)
	fields, ok := domainErr.Details.([]apperr.FieldError)
	if !ok {
		t.Fatalf("expected field errors, got %T", domainErr.Details)
	}
	want := []string{"responses[1].textValue", "responses[2].checklistItemId", "responses[3].checklistItemId"}
	if len(fields) != len(want) {
		t.Fatalf("expected %d field errors, got %+v", len(want), fields)
	}
	for i, path := range want {
		if fields[i].Path != path {
			t.Fatalf("expected path %s at %d, got %s", path, i, fields[i].Path)
		}
	}
}

func TestValidateResponsesAcceptsMatchingTypes(t *testing.T) {
	brakes := item(domain.ItemBool, true)
	if err := ValidateResponses([]domain.ChecklistItem{brakes}, []domain.ChecklistResponse{{ItemID: brakes.ID, BoolValue: boolPtr(true)}}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
