// Package xsdgen generates an XML Schema Definition describing the document
// shape of an imported dataset: a root element named after the dataset,
// holding a repeatable "record" structure with one typed child element per
// column.
package xsdgen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"

	"tabxml/internal/schema"
	"tabxml/internal/xmlname"
)

const xsNamespace = "http://www.w3.org/2001/XMLSchema"

// typeMapping maps inferred column types to XSD types. Unknown inferred
// types map to xs:string; schema generation never hard-fails on a type it
// does not recognize.
var typeMapping = map[schema.ColumnType]string{
	schema.TypeString:   "xs:string",
	schema.TypeInteger:  "xs:integer",
	schema.TypeFloat:    "xs:decimal",
	schema.TypeDecimal:  "xs:decimal",
	schema.TypeBoolean:  "xs:boolean",
	schema.TypeDate:     "xs:date",
	schema.TypeDatetime: "xs:dateTime",
}

// Generate builds the schema-definition document for s.
//
// Nullable columns are declared with minOccurs="0" and nillable="true". The
// document generator marks null values with xsi:nil instead of omitting the
// element, and a nilled element only validates when its declaration is
// nillable.
func Generate(s *schema.Schema) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("xs:schema")
	root.CreateAttr("xmlns:xs", xsNamespace)
	root.CreateAttr("elementFormDefault", "qualified")
	root.CreateAttr("attributeFormDefault", "unqualified")

	dataset := root.CreateElement("xs:element")
	dataset.CreateAttr("name", xmlname.Normalize(s.DatasetName))

	seq := dataset.CreateElement("xs:complexType").CreateElement("xs:sequence")

	record := seq.CreateElement("xs:element")
	record.CreateAttr("name", "record")
	record.CreateAttr("minOccurs", "0")
	record.CreateAttr("maxOccurs", "unbounded")

	fields := record.CreateElement("xs:complexType").CreateElement("xs:sequence")
	for _, col := range s.Columns {
		addColumnElement(fields, col)
	}

	doc.Indent(2)
	return doc
}

// WriteFile generates the schema-definition document and writes it to path,
// creating parent directories as needed.
func WriteFile(s *schema.Schema, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("xsdgen: mkdir: %w", err)
	}
	if err := Generate(s).WriteToFile(path); err != nil {
		return fmt.Errorf("xsdgen: write %s: %w", path, err)
	}
	return nil
}

func addColumnElement(parent *etree.Element, col schema.ColumnDef) {
	xsdType, ok := typeMapping[col.InferredType]
	if !ok {
		xsdType = "xs:string"
	}

	el := parent.CreateElement("xs:element")
	el.CreateAttr("name", xmlname.Normalize(col.Name))
	el.CreateAttr("type", xsdType)
	if col.Nullable {
		el.CreateAttr("minOccurs", "0")
		el.CreateAttr("nillable", "true")
	}
}
