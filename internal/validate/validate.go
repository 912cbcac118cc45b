// Package validate checks generated XML documents against their XSD
// contracts using a compiled schema engine.
package validate

import (
	"errors"
	"fmt"
	"os"

	"github.com/jacoelho/xsd"
	xsderrors "github.com/jacoelho/xsd/errors"
)

var (
	// ErrSchemaMissing is returned when the XSD file cannot be found.
	ErrSchemaMissing = errors.New("validate: schema file not found")

	// ErrDocumentMissing is returned when the XML file cannot be found.
	ErrDocumentMissing = errors.New("validate: document file not found")
)

// Report is the outcome of validating one document.
type Report struct {
	IsValid bool
	Errors  []string
}

// StructuralValidator compiles an XSD once and validates any number of
// documents against it.
type StructuralValidator struct {
	schema *xsd.Schema
}

// New compiles the schema at xsdPath.
func New(xsdPath string) (*StructuralValidator, error) {
	if _, err := os.Stat(xsdPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaMissing, xsdPath)
	}
	s, err := xsd.LoadFile(xsdPath)
	if err != nil {
		return nil, fmt.Errorf("validate: compile schema %s: %w", xsdPath, err)
	}
	return &StructuralValidator{schema: s}, nil
}

// ValidateFile validates the XML document at xmlPath. Validation
// findings land in the report; the error return is reserved for
// operational failures such as a missing file.
func (v *StructuralValidator) ValidateFile(xmlPath string) (*Report, error) {
	if _, err := os.Stat(xmlPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentMissing, xmlPath)
	}

	err := v.schema.ValidateFile(xmlPath)
	if err == nil {
		return &Report{IsValid: true}, nil
	}

	if list, ok := xsderrors.AsValidations(err); ok {
		report := &Report{Errors: make([]string, 0, len(list))}
		for i := range list {
			report.Errors = append(report.Errors, list[i].Error())
		}
		return report, nil
	}
	return nil, fmt.Errorf("validate: %s: %w", xmlPath, err)
}

// ValidateFiles compiles the schema at xsdPath and validates xmlPath in
// one shot. Convenience for callers that validate a single pair.
func ValidateFiles(xmlPath, xsdPath string) (*Report, error) {
	v, err := New(xsdPath)
	if err != nil {
		return nil, err
	}
	return v.ValidateFile(xmlPath)
}
