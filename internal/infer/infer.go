// Package infer classifies column values into a fixed type lattice and
// aggregates per-column statistics into a dataset Schema.
//
// Design constraints:
//   - Inference is best-effort and must never fail: every rule chain
//     terminates at the string fallback.
//   - The rules form an explicit ordered list evaluated in sequence, so the
//     precedence is auditable and each rule is testable in isolation.
package infer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tabxml/internal/schema"
)

// datetimeLayouts are the generic date-time shapes (date and time components
// both present) accepted by the datetime rule, tried in order.
var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006 15:04:05",
}

// dateLayouts are the enumerated date patterns, tried in order; a column is
// a date only if every value parses under one single layout. The two
// trailing entries are the datetime-with-time variants kept for columns that
// mix a fixed time component into an otherwise date-shaped layout.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
	"01-02-2006",
	"02.01.2006",
	"2006.01.02",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04:05",
}

// dateShapeRe is the loose date-shaped fallback. It is a documented
// heuristic, not authoritative: a first value like "12/34/5678" still
// classifies the column as date even though no strict layout matched.
var dateShapeRe = regexp.MustCompile(`^\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}`)

// booleanLiterals is the exact literal set accepted by the boolean rule.
var booleanLiterals = map[string]struct{}{
	"true": {}, "false": {},
	"True": {}, "False": {},
	"0": {}, "1": {},
}

// rule is one predicate → classification pair of the inference chain.
type rule struct {
	name    string
	matches func(values []string) bool
	typ     schema.ColumnType
}

// rules is the ordered chain; first match wins. Order is load-bearing:
// integer must run before float, datetime before date, and the loose
// date-shape fallback last before the string default.
var rules = []rule{
	{name: "boolean", matches: allBoolean, typ: schema.TypeBoolean},
	{name: "integer", matches: allIntegral, typ: schema.TypeInteger},
	{name: "float", matches: allNumeric, typ: schema.TypeFloat},
	{name: "datetime", matches: allDatetime, typ: schema.TypeDatetime},
	{name: "date", matches: allDateSingleLayout, typ: schema.TypeDate},
	{name: "date-shape", matches: firstLooksDateShaped, typ: schema.TypeDate},
}

// InferType classifies a column from its non-null values. An all-null
// column is a string column. InferType never fails.
func InferType(values []string) schema.ColumnType {
	if len(values) == 0 {
		return schema.TypeString
	}
	for _, r := range rules {
		if r.matches(values) {
			return r.typ
		}
	}
	return schema.TypeString
}

func allBoolean(values []string) bool {
	for _, v := range values {
		if _, ok := booleanLiterals[v]; !ok {
			return false
		}
	}
	return true
}

// allIntegral accepts any column whose values all parse numerically with a
// fractional part of exactly zero, so "1.0" still counts as integer.
func allIntegral(values []string) bool {
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.Trunc(f) != f || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func allNumeric(values []string) bool {
	for _, v := range values {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return true
}

func allDatetime(values []string) bool {
	_, ok := columnLayout(values, datetimeLayouts)
	return ok
}

func allDateSingleLayout(values []string) bool {
	_, ok := columnLayout(values, dateLayouts)
	return ok
}

func firstLooksDateShaped(values []string) bool {
	return dateShapeRe.MatchString(values[0])
}

// columnLayout returns the first layout under which every value parses.
// Layouts are tried in declaration order, so detection is deterministic for
// values that are ambiguous between day-first and month-first shapes.
func columnLayout(values []string, layouts []string) (string, bool) {
	for _, lay := range layouts {
		ok := true
		for _, v := range values {
			if _, err := time.Parse(lay, v); err != nil {
				ok = false
				break
			}
		}
		if ok {
			return lay, true
		}
	}
	return "", false
}

// ParseTyped converts one raw value to the typed representation of the given
// column type. Dates and datetimes are re-emitted in canonical XSD lexical
// form so downstream document generation needs no locale handling. A value
// that fails to parse falls back to its trimmed string form rather than
// erroring; inference already vouched for the column as a whole, and a
// stray unparseable cell must not abort an import.
func ParseTyped(value string, typ schema.ColumnType) any {
	v := strings.TrimSpace(value)
	switch typ {
	case schema.TypeInteger:
		if f, err := strconv.ParseFloat(v, 64); err == nil && math.Trunc(f) == f {
			return int64(f)
		}
	case schema.TypeFloat, schema.TypeDecimal:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case schema.TypeBoolean:
		switch v {
		case "true", "True", "1":
			return true
		case "false", "False", "0":
			return false
		}
	case schema.TypeDate:
		if lay, ok := columnLayout([]string{v}, dateLayouts); ok {
			t, _ := time.Parse(lay, v)
			return t.Format("2006-01-02")
		}
	case schema.TypeDatetime:
		if lay, ok := columnLayout([]string{v}, datetimeLayouts); ok {
			t, _ := time.Parse(lay, v)
			return t.Format("2006-01-02T15:04:05")
		}
	}
	return v
}
