// Package source reads tabular input into a uniform header-plus-rows
// shape for downstream schema inference.
package source

import "errors"

// ErrSourceNotFound is returned when the input file does not exist.
var ErrSourceNotFound = errors.New("source: file not found")

// ErrNoHeader is returned when the input yields no header row.
var ErrNoHeader = errors.New("source: no header row")

// Source is a readable tabular input. Read returns the header row and
// all data rows in input order. Implementations cap the row count with
// their configured limit, if any.
type Source interface {
	Name() string
	Read() (headers []string, rows [][]string, err error)
}
