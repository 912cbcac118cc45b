// Package schema defines the immutable value objects shared by the import
// pipeline: the dataset-level Schema, per-column metadata, and row data.
//
// Design constraints:
//   - A Schema is computed once per import from the full column series and is
//     never mutated afterwards; re-analysis produces a new Schema.
//   - Column names are unique within a Schema and Position is a dense 0-based
//     ordering consistent with declaration order.
//   - Pipeline stages consume these values and produce new ones; nothing in
//     this package carries mutable state across stages.
package schema

import "fmt"

// ColumnType is the closed set of inferred column types.
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeInteger  ColumnType = "integer"
	TypeFloat    ColumnType = "float"
	TypeBoolean  ColumnType = "boolean"
	TypeDate     ColumnType = "date"
	TypeDatetime ColumnType = "datetime"
	TypeDecimal  ColumnType = "decimal"
)

// ColumnDef describes one column of an imported dataset.
//
// SampleValues holds at most five distinct non-null values in first-seen
// order, coerced to their nearest JSON-safe typed representation (int64,
// float64, or string).
type ColumnDef struct {
	Name         string     `json:"name"`
	InferredType ColumnType `json:"inferred_type"`
	Nullable     bool       `json:"nullable"`
	Unique       bool       `json:"unique"`
	NullCount    int        `json:"null_count"`
	UniqueCount  int        `json:"unique_count"`
	Position     int        `json:"position"`
	SampleValues []any      `json:"sample_values"`
}

// Schema is the ordered column metadata describing a dataset's structure.
type Schema struct {
	DatasetName  string      `json:"dataset_name"`
	Columns      []ColumnDef `json:"columns"`
	TotalRows    int         `json:"total_rows"`
	TotalColumns int         `json:"total_columns"`
}

// ColumnNames returns the source column names in position order.
func (s *Schema) ColumnNames() []string {
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Column returns the definition for a source column name.
func (s *Schema) Column(name string) (ColumnDef, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// Validate checks the structural invariants a well-formed Schema must hold.
// SchemaBuilder output always passes; the check exists for schemas loaded
// back from storage.
func (s *Schema) Validate() error {
	if s.DatasetName == "" {
		return fmt.Errorf("schema: empty dataset name")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for i, c := range s.Columns {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("schema: duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Position != i {
			return fmt.Errorf("schema: column %q position=%d, want %d", c.Name, c.Position, i)
		}
	}
	if s.TotalColumns != len(s.Columns) {
		return fmt.Errorf("schema: total_columns=%d, want %d", s.TotalColumns, len(s.Columns))
	}
	return nil
}

// Row is an ordered-by-schema mapping from source column name to a typed
// value (int64, float64, bool, or string) or nil for null.
//
// The column set per row should match the Schema, but consumers tolerate
// missing or extra keys: a missing key reads as null, an extra key is
// ignored. This is a tolerated, not enforced, invariant.
type Row map[string]any

// Dataset bundles a Schema with its persistence and artifact bookkeeping.
// Status values mirror the import lifecycle: pending, processing, completed,
// failed.
type Dataset struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	SourceFile string `json:"source_file"`
	Status     string `json:"status"`
	Schema     Schema `json:"schema"`
	XMLPath    string `json:"xml_path,omitempty"`
	XSDPath    string `json:"xsd_path,omitempty"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
