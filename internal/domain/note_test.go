package domain

import (
	"errors"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestValidatePatch(t *testing.T) {
	tests := []struct {
		name     string
		patch    Patch
		creating bool
		wantErr  bool
		field    string
	}{
		{
			name:     "valid create",
			patch:    Patch{Title: strPtr("Shopping"), Content: strPtr("milk, eggs"), Color: strPtr("#FFCDD2")},
			creating: true,
		},
		{
			name:     "create without content",
			patch:    Patch{Title: strPtr("Shopping")},
			creating: true,
			wantErr:  true,
			field:    "content",
		},
		{
			name:    "blank title",
			patch:   Patch{Title: strPtr("   ")},
			wantErr: true,
			field:   "title",
		},
		{
			name:    "title too long",
			patch:   Patch{Title: strPtr(strings.Repeat("a", 101))},
			wantErr: true,
			field:   "title",
		},
		{
			name:    "title at limit",
			patch:   Patch{Title: strPtr(strings.Repeat("é", 100))},
			wantErr: false,
		},
		{
			name:    "color outside palette",
			patch:   Patch{Color: strPtr("#000000")},
			wantErr: true,
			field:   "color",
		},
		{
			name:    "empty update",
			patch:   Patch{},
			wantErr: true,
			field:   "patch",
		},
		{
			name:  "lowercase palette color",
			patch: Patch{Color: strPtr("#fff9c4")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatch(tt.patch, tt.creating)

			if !tt.wantErr {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on field %q, got %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestNote_Stats(t *testing.T) {
	n := Note{Content: "buy  milk\nand eggs"}
	stats := n.Stats()

	if stats.Words != 4 {
		t.Errorf("Words = %d, want 4", stats.Words)
	}
	if stats.Characters != 18 {
		t.Errorf("Characters = %d, want 18", stats.Characters)
	}
}

func TestNote_Matches(t *testing.T) {
	n := Note{Title: "Weekend Plans", Content: "Visit the Museum"}

	for _, q := range []string{"weekend", "MUSEUM", "", "plans"} {
		if !n.Matches(q) {
			t.Errorf("expected %q to match", q)
		}
	}
	if n.Matches("groceries") {
		t.Error("unexpected match")
	}
}

func TestNote_CloneIsDeep(t *testing.T) {
	n := Note{Versions: Versions{FieldTitle: {Clock: VectorClock{"d1": 1}}}}
	c := n.Clone()
	c.Versions[FieldTitle].Clock["d1"] = 5

	if n.Versions[FieldTitle].Clock["d1"] != 1 {
		t.Error("Clone() shares clock maps with the original")
	}
}

func TestStorageError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("put note", cause)

	if !errors.Is(err, ErrStorage) {
		t.Error("expected ErrStorage")
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be preserved")
	}
}

func TestRemoteError_Unwrap(t *testing.T) {
	if err := (&RemoteError{Op: "push", Status: 401}); !errors.Is(err, ErrUnauthenticated) {
		t.Error("401 should unwrap to ErrUnauthenticated")
	}
	if err := (&RemoteError{Op: "push", Status: 503}); !errors.Is(err, ErrRemoteUnavailable) {
		t.Error("503 should unwrap to ErrRemoteUnavailable")
	}
}
