package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"tabxml/internal/sniff"
)

// CSVSource reads a delimited text file. With Delimiter zero the
// delimiter is detected from a sample of the file. Limit caps the
// number of data rows returned; zero means unlimited.
type CSVSource struct {
	Path      string
	Delimiter rune
	Limit     int
}

// Name returns the file name without its extension, which doubles as
// the default dataset name.
func (s *CSVSource) Name() string {
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Read loads the file, strips a UTF-8/UTF-16 byte order mark if
// present, detects the delimiter when none is configured, and parses
// all rows. Rows whose field count differs from the header are skipped.
func (s *CSVSource) Read() ([]string, [][]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrSourceNotFound, s.Path)
		}
		return nil, nil, fmt.Errorf("source: open %s: %w", s.Path, err)
	}
	defer f.Close()

	decoder := unicode.UTF8BOM.NewDecoder()
	data, err := io.ReadAll(transform.NewReader(f, decoder))
	if err != nil {
		return nil, nil, fmt.Errorf("source: read %s: %w", s.Path, err)
	}

	delimiter := s.Delimiter
	if delimiter == 0 {
		delimiter = sniff.DetectDelimiterBytes(data, sniff.DefaultSampleLines)
	}

	return s.parse(data, delimiter)
}

func (s *CSVSource) parse(data []byte, delimiter rune) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.Comma = delimiter
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err == io.EOF {
		return nil, nil, ErrNoHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("source: parse header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows [][]string
	for {
		if s.Limit > 0 && len(rows) >= s.Limit {
			break
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("source: parse row %d: %w", len(rows)+2, err)
		}
		if len(rec) != len(headers) {
			continue
		}
		row := make([]string, len(rec))
		for i, v := range rec {
			row[i] = strings.TrimSpace(v)
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}
