package infer

import (
	"testing"

	"tabxml/internal/schema"
)

//
// InferType
//

// TestInferType verifies the ordered rule chain, first match wins.
//
// The precedence matters: "1.0" values are integral, mixed numerics are
// float, and a single non-date value demotes a date column to string.
func TestInferType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []string
		want   schema.ColumnType
	}{
		{"all null", nil, schema.TypeString},
		{"integers", []string{"1", "2", "3"}, schema.TypeInteger},
		{"integral floats", []string{"1.0", "2.0"}, schema.TypeInteger},
		{"mixed numeric", []string{"1.5", "2"}, schema.TypeFloat},
		{"boolean words", []string{"true", "false"}, schema.TypeBoolean},
		{"boolean capitalized", []string{"True", "False"}, schema.TypeBoolean},
		{"boolean digits", []string{"0", "1"}, schema.TypeBoolean},
		{"boolean beats integer on 0 1", []string{"1", "0", "1"}, schema.TypeBoolean},
		{"iso dates", []string{"2024-01-01", "2024-02-01"}, schema.TypeDate},
		{"slash dates day first", []string{"31/01/2024", "01/02/2024"}, schema.TypeDate},
		{"dotted dates", []string{"31.01.2024", "01.02.2024"}, schema.TypeDate},
		{"datetimes", []string{"2024-01-01 10:00:00", "2024-01-02 11:30:00"}, schema.TypeDatetime},
		{"mixed date and word", []string{"abc", "2024-01-01"}, schema.TypeString},
		{"plain words", []string{"abc", "def"}, schema.TypeString},
		{"uppercase TRUE not boolean", []string{"TRUE", "FALSE"}, schema.TypeString},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := InferType(tt.values); got != tt.want {
				t.Fatalf("InferType(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

// TestInferType_DateShapeFallback verifies the loose date-shape heuristic:
// a first value that looks date-shaped classifies the column as date even
// when no strict layout covers the whole column.
func TestInferType_DateShapeFallback(t *testing.T) {
	t.Parallel()

	got := InferType([]string{"2024/13/45", "not a date"})
	if got != schema.TypeDate {
		t.Fatalf("InferType() = %q, want %q", got, schema.TypeDate)
	}

	// A non-date-shaped first value means no fallback.
	got = InferType([]string{"not a date", "2024-01-01"})
	if got != schema.TypeString {
		t.Fatalf("InferType() = %q, want %q", got, schema.TypeString)
	}
}

//
// ParseTyped
//

// TestParseTyped verifies canonicalization per type, including the XSD
// lexical forms for temporal values.
func TestParseTyped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		typ   schema.ColumnType
		want  any
	}{
		{"integer", "42", schema.TypeInteger, int64(42)},
		{"integral float to integer", "42.0", schema.TypeInteger, int64(42)},
		{"float", "1.5", schema.TypeFloat, 1.5},
		{"decimal", "10.25", schema.TypeDecimal, 10.25},
		{"boolean true", "True", schema.TypeBoolean, true},
		{"boolean zero", "0", schema.TypeBoolean, false},
		{"date iso", "2024-01-02", schema.TypeDate, "2024-01-02"},
		{"date day first", "31/01/2024", schema.TypeDate, "2024-01-31"},
		{"datetime space separator", "2024-01-02 10:30:00", schema.TypeDatetime, "2024-01-02T10:30:00"},
		{"unparseable keeps string", "n/a", schema.TypeInteger, "n/a"},
		{"string passthrough", " padded ", schema.TypeString, "padded"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseTyped(tt.value, tt.typ); got != tt.want {
				t.Fatalf("ParseTyped(%q, %s) = %#v, want %#v", tt.value, tt.typ, got, tt.want)
			}
		})
	}
}
