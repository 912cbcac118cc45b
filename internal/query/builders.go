package query

import "fmt"

// Canned path constructors for the record-per-row documents produced by
// the generator. Field names are expected to be normalized element
// names; callers pass user-supplied literals at their own risk.

// AllRecords selects every record element.
func AllRecords() string {
	return "//record"
}

// RecordByIndex selects a single record by 1-based index.
func RecordByIndex(index int) string {
	return fmt.Sprintf("//record[%d]", index)
}

// RecordsRange selects records whose 1-based position lies in
// [start, end] inclusive.
func RecordsRange(start, end int) string {
	return fmt.Sprintf("//record[position() >= %d and position() <= %d]", start, end)
}

// FieldValues selects the text of the named field across all records.
func FieldValues(field string) string {
	return fmt.Sprintf("//record/%s/text()", field)
}

// RecordsWhereEquals selects records whose field equals value.
func RecordsWhereEquals(field, value string) string {
	return fmt.Sprintf(`//record[%s="%s"]`, field, value)
}

// CountRecords counts all records. Evaluate this with Engine.Evaluate;
// function expressions are not node selections.
func CountRecords() string {
	return "count(//record)"
}

// CountFieldOccurrences counts how many records carry the named field.
func CountFieldOccurrences(field string) string {
	return fmt.Sprintf("count(//record/%s)", field)
}

// DistinctValues selects each value of the named field at its first
// appearance in document order, skipping later repeats.
func DistinctValues(field string) string {
	return fmt.Sprintf("//record/%s[not(. = preceding::%s)]", field, field)
}

// RecordsWithCondition selects records matching an arbitrary predicate.
func RecordsWithCondition(condition string) string {
	return fmt.Sprintf("//record[%s]", condition)
}

// Nested selects a child field of records matching a predicate.
func Nested(condition, field string) string {
	return fmt.Sprintf("//record[%s]/%s", condition, field)
}
