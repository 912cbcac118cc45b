package infer

import (
	"strings"

	"tabxml/internal/schema"
)

// maxSampleValues bounds ColumnDef.SampleValues.
const maxSampleValues = 5

// BuildSchema aggregates per-column statistics over the full sample into a
// Schema. headers supplies the declaration order; rows must be aligned to it
// (misaligned rows were already dropped by the sample reader).
//
// Per column:
//   - null_count counts missing values (empty after trimming)
//   - unique_count counts distinct non-null values
//   - unique is true iff unique_count equals the total row count
//   - nullable is true iff null_count > 0
//   - sample_values holds the first five distinct non-null values in
//     encounter order, coerced to their typed representation
func BuildSchema(datasetName string, headers []string, rows [][]string) schema.Schema {
	s := schema.Schema{
		DatasetName:  datasetName,
		Columns:      make([]schema.ColumnDef, 0, len(headers)),
		TotalRows:    len(rows),
		TotalColumns: len(headers),
	}

	for pos, name := range headers {
		values := columnValues(rows, pos)

		typ := InferType(values)

		distinct := make(map[string]struct{}, len(values))
		samples := make([]any, 0, maxSampleValues)
		for _, v := range values {
			if _, seen := distinct[v]; seen {
				continue
			}
			distinct[v] = struct{}{}
			if len(samples) < maxSampleValues {
				samples = append(samples, sampleValue(v, typ))
			}
		}

		nullCount := len(rows) - len(values)

		s.Columns = append(s.Columns, schema.ColumnDef{
			Name:         name,
			InferredType: typ,
			Nullable:     nullCount > 0,
			Unique:       len(distinct) == len(rows),
			NullCount:    nullCount,
			UniqueCount:  len(distinct),
			Position:     pos,
			SampleValues: samples,
		})
	}

	return s
}

// CoerceRows converts raw string rows into typed Rows keyed by source column
// name, with nil for missing values. Values are parsed per the column's
// inferred type; unparseable cells degrade to their string form.
func CoerceRows(s *schema.Schema, rows [][]string) []schema.Row {
	out := make([]schema.Row, 0, len(rows))
	for _, raw := range rows {
		row := make(schema.Row, len(s.Columns))
		for _, col := range s.Columns {
			if col.Position >= len(raw) {
				row[col.Name] = nil
				continue
			}
			v := strings.TrimSpace(raw[col.Position])
			if v == "" {
				row[col.Name] = nil
				continue
			}
			row[col.Name] = ParseTyped(v, col.InferredType)
		}
		out = append(out, row)
	}
	return out
}

// columnValues extracts the non-null values of one column in row order.
func columnValues(rows [][]string, col int) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if col >= len(r) {
			continue
		}
		v := strings.TrimSpace(r[col])
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// sampleValue coerces one raw value to its nearest JSON-safe typed
// representation for display. The representation set is exactly integral,
// floating, or string; boolean-classified columns built from "0"/"1" show
// integral samples while literal "true"/"false" stay strings.
func sampleValue(v string, typ schema.ColumnType) any {
	switch typ {
	case schema.TypeInteger:
		return ParseTyped(v, typ)
	case schema.TypeFloat, schema.TypeDecimal:
		return ParseTyped(v, typ)
	case schema.TypeBoolean:
		switch v {
		case "0", "1":
			return ParseTyped(v, schema.TypeInteger)
		}
		return v
	default:
		return v
	}
}
