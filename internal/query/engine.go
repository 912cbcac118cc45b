// Package query evaluates XPath expressions over generated XML
// documents, with helpers for projection, aggregation, grouping, and a
// restricted for/where/return query form.
package query

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

var (
	// ErrDocumentNotLoaded is returned when the document file is absent
	// or cannot be parsed.
	ErrDocumentNotLoaded = errors.New("query: document not loaded")

	// ErrQueryPathInvalid is returned for expressions that fail to compile.
	ErrQueryPathInvalid = errors.New("query: invalid path expression")

	// ErrNonNumericValue is returned by Aggregate when a matched value
	// cannot be coerced to a number.
	ErrNonNumericValue = errors.New("query: non-numeric value")

	// ErrUnknownOperation is returned by Aggregate for an unrecognized op.
	ErrUnknownOperation = errors.New("query: unknown operation")
)

// Engine runs XPath queries against one XML document. The document is
// loaded lazily on first use and kept in memory as a node tree.
type Engine struct {
	path string
	doc  *xmlquery.Node
}

// NewEngine returns an engine for the document at path. The file is not
// read until the first query.
func NewEngine(path string) *Engine {
	return &Engine{path: path}
}

// NewEngineFromReader parses the document eagerly from r.
func NewEngineFromReader(r io.Reader) (*Engine, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentNotLoaded, err)
	}
	return &Engine{doc: doc}, nil
}

func (e *Engine) load() (*xmlquery.Node, error) {
	if e.doc != nil {
		return e.doc, nil
	}
	f, err := os.Open(e.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotLoaded, e.path)
	}
	defer f.Close()

	doc, err := xmlquery.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrDocumentNotLoaded, e.path, err)
	}
	e.doc = doc
	return doc, nil
}

// Select evaluates expr and returns the matched nodes.
func (e *Engine) Select(expr string) ([]*xmlquery.Node, error) {
	doc, err := e.load()
	if err != nil {
		return nil, err
	}
	nodes, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrQueryPathInvalid, expr, err)
	}
	return nodes, nil
}

// Evaluate compiles and evaluates expr against the document root,
// returning whatever scalar or node-set the expression produces. Used
// for function expressions such as count(...) that Select cannot serve.
func (e *Engine) Evaluate(expr string) (any, error) {
	doc, err := e.load()
	if err != nil {
		return nil, err
	}
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrQueryPathInvalid, expr, err)
	}
	return compiled.Evaluate(xmlquery.CreateXPathNavigator(doc)), nil
}

// ToDict evaluates expr and projects each matched node into a map. For
// element nodes the map carries "_tag", "_text" (direct text, when
// present), "_attributes" (when present), and one entry per child
// element with non-empty text. Non-element matches project to a single
// "_value" entry.
func (e *Engine) ToDict(expr string) ([]map[string]any, error) {
	nodes, err := e.Select(expr)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != xmlquery.ElementNode {
			out = append(out, map[string]any{"_value": strings.TrimSpace(n.Data)})
			continue
		}

		item := map[string]any{"_tag": n.Data}
		if text := ownText(n); text != "" {
			item["_text"] = text
		}
		if len(n.Attr) > 0 {
			attrs := make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				attrs[attrName(a)] = a.Value
			}
			item["_attributes"] = attrs
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != xmlquery.ElementNode {
				continue
			}
			if text := strings.TrimSpace(child.InnerText()); text != "" {
				item[child.Data] = text
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// TextValues evaluates expr and returns the text content of each match
// in document order. Element matches contribute their direct text when
// non-empty; text and attribute matches contribute their string form.
func (e *Engine) TextValues(expr string) ([]string, error) {
	nodes, err := e.Select(expr)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		switch n.Type {
		case xmlquery.ElementNode:
			if text := ownText(n); text != "" {
				texts = append(texts, text)
			}
		default:
			texts = append(texts, strings.TrimSpace(n.Data))
		}
	}
	return texts, nil
}

// Count returns the number of nodes matching expr.
func (e *Engine) Count(expr string) (int, error) {
	nodes, err := e.Select(expr)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// Statistics summarizes the loaded document.
type Statistics struct {
	RootElement   string `json:"root_element"`
	TotalRecords  int    `json:"total_records"`
	TotalElements int    `json:"total_elements"`
	Depth         int    `json:"depth"`
}

// Stats computes document-level statistics.
func (e *Engine) Stats() (*Statistics, error) {
	doc, err := e.load()
	if err != nil {
		return nil, err
	}
	root := firstElement(doc)
	if root == nil {
		return nil, fmt.Errorf("%w: document has no root element", ErrDocumentNotLoaded)
	}

	records, err := e.Count(AllRecords())
	if err != nil {
		return nil, err
	}
	elements, err := e.Count("//*")
	if err != nil {
		return nil, err
	}

	return &Statistics{
		RootElement:   root.Data,
		TotalRecords:  records,
		TotalElements: elements,
		Depth:         treeDepth(root),
	}, nil
}

func firstElement(n *xmlquery.Node) *xmlquery.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

func treeDepth(n *xmlquery.Node) int {
	max := 0
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		if d := treeDepth(child) + 1; d > max {
			max = d
		}
	}
	return max
}

// ownText returns the trimmed concatenation of the element's direct
// text children, excluding descendant element text.
func ownText(n *xmlquery.Node) string {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.TextNode || child.Type == xmlquery.CharDataNode {
			b.WriteString(child.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

func attrName(a xmlquery.Attr) string {
	if a.Name.Space == "" {
		return a.Name.Local
	}
	return a.Name.Space + ":" + a.Name.Local
}

func parseNumeric(values []string) ([]float64, error) {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrNonNumericValue, v)
		}
		nums = append(nums, f)
	}
	return nums, nil
}
