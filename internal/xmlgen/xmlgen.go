// Package xmlgen generates the structural document for an imported dataset:
// a root element named after the dataset holding one "record" element per
// row, each with one child element per column in position order.
//
// Null handling is explicit: a null value becomes an empty element marked
// with xsi:nil="true". Omitting the element instead would break structural
// parity with the generated schema, which expects nullable columns
// present-but-empty.
package xmlgen

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/beevik/etree"

	"tabxml/internal/schema"
	"tabxml/internal/xmlname"
)

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// Generate builds the structural document for s over the given rows.
// Rows are emitted in slice order; limit > 0 caps the number of records.
//
// Element names come from xmlname.Normalize, the same function the schema
// generator uses, which is what keeps document and schema element names in
// lockstep.
func Generate(s *schema.Schema, rows []schema.Row, limit int) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement(xmlname.Normalize(s.DatasetName))
	root.CreateAttr("xmlns:xsi", xsiNamespace)

	n := len(rows)
	if limit > 0 && limit < n {
		n = limit
	}

	for _, row := range rows[:n] {
		rec := root.CreateElement("record")
		for _, col := range s.Columns {
			el := rec.CreateElement(xmlname.Normalize(col.Name))

			v, ok := row[col.Name]
			if !ok || v == nil {
				el.CreateAttr("xsi:nil", "true")
				continue
			}
			el.SetText(canonicalText(v))
		}
	}

	doc.Indent(2)
	return doc
}

// WriteFile generates the document and writes it to path, creating parent
// directories as needed.
func WriteFile(s *schema.Schema, rows []schema.Row, limit int, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("xmlgen: mkdir: %w", err)
	}
	if err := Generate(s, rows, limit).WriteToFile(path); err != nil {
		return fmt.Errorf("xmlgen: write %s: %w", path, err)
	}
	return nil
}

// canonicalText renders a typed value in its canonical string form. The
// forms are locale-free and match the XSD lexical spaces of the generated
// schema types, so a generated document always validates against its
// generated schema.
func canonicalText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		// 'f' keeps the value inside the xs:decimal lexical space: no
		// exponent form. Integral floats render without a fraction, which
		// also covers integer columns reloaded through JSON storage.
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}
