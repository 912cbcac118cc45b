package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLTableSource reads the first table matched by Selector from an
// HTML document. Header cells come from the table's first row (th
// preferred, td accepted). Limit caps the number of data rows returned;
// zero means unlimited.
type HTMLTableSource struct {
	Path     string
	Selector string
	Limit    int
}

// Name returns the file name without its extension.
func (s *HTMLTableSource) Name() string {
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Read parses the document and extracts the table. Rows shorter than
// the header are padded with empty cells; longer rows are truncated.
func (s *HTMLTableSource) Read() ([]string, [][]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrSourceNotFound, s.Path)
		}
		return nil, nil, fmt.Errorf("source: open %s: %w", s.Path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("source: parse html %s: %w", s.Path, err)
	}

	selector := s.Selector
	if selector == "" {
		selector = "table"
	}
	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return nil, nil, fmt.Errorf("source: %s: no table matches %q", s.Path, selector)
	}

	trs := table.Find("tr")
	if trs.Length() == 0 {
		return nil, nil, ErrNoHeader
	}

	var headers []string
	var rows [][]string

	trs.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := rowCells(tr)
		if i == 0 {
			headers = cells
			return true
		}
		if s.Limit > 0 && len(rows) >= s.Limit {
			return false
		}
		rows = append(rows, fitRow(cells, len(headers)))
		return true
	})

	if len(headers) == 0 {
		return nil, nil, ErrNoHeader
	}
	return headers, rows, nil
}

func rowCells(tr *goquery.Selection) []string {
	var cells []string
	tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	return cells
}

func fitRow(cells []string, width int) []string {
	row := make([]string, width)
	copy(row, cells)
	return row
}
