package query

import (
	"strings"
	"testing"
)

func TestEqualityFilter(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   interface{}
		want    string
		wantErr string
	}{
		{"string", "email", "a@b.com", "(email = 'a@b.com')", ""},
		{"escaped quote", "email", "o'brien@b.com", "(email = 'o''brien@b.com')", ""},
		{"null bytes stripped", "email", "a\x00@b.com", "(email = 'a@b.com')", ""},
		{"bool", "is_active", true, "(is_active = true)", ""},
		{"int", "id", 42, "(id = 42)", ""},
		{"int64", "id", int64(7), "(id = 7)", ""},
		{"float", "score", 1.5, "(score = 1.5)", ""},
		{"nil", "last_login", nil, "(last_login IS NULL)", ""},
		{"too long", "email", strings.Repeat("x", maxFilterValue+1), "", "too long"},
		{"bad field", "email; DROP", "x", "", "letters, digits and underscores"},
		{"reserved field", "select", "x", "", "reserved word"},
		{"unsupported type", "id", []int{1}, "", "unsupported filter value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EqualityFilter(tt.field, tt.value)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("EqualityFilter = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlaceholderFunctions(t *testing.T) {
	tests := []struct {
		name string
		fn   PlaceholderFunc
		idx  int
		want string
	}{
		{"dollar 1", DollarPlaceholder, 1, "$1"},
		{"dollar 5", DollarPlaceholder, 5, "$5"},
		{"question 1", QuestionPlaceholder, 1, "?"},
		{"question 9", QuestionPlaceholder, 9, "?"},
		{"atp 1", AtPPlaceholder, 1, "@p1"},
		{"atp 3", AtPPlaceholder, 3, "@p3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.idx); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
