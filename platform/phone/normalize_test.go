package phone

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		region  string
		want    string
		wantErr bool
	}{
		{name: "dutch mobile without prefix", input: "06 12345678", region: "NL", want: "+31612345678"},
		{name: "already e164", input: "+31612345678", region: "", want: "+31612345678"},
		{name: "empty", input: "   ", region: "NL", want: ""},
		{name: "garbage", input: "not a number", region: "NL", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input, tt.region)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidNumber) {
					t.Fatalf("expected ErrInvalidNumber, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNormalizeE164FallsBackToTrimmedInput(t *testing.T) {
	if got := NormalizeE164("  abc  "); got != "abc" {
		t.Fatalf("expected trimmed input, got %q", got)
	}
}
