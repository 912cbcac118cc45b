// Package sniff implements bounded inspection of raw tabular input: field
// delimiter detection and best-effort CSV sample reading.
//
// Design constraints:
//   - Detection must be bounded in memory and time: only a fixed number of
//     leading lines is examined.
//   - Detection never fails. An unreadable or empty source simply yields the
//     default delimiter.
package sniff

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"
)

// DefaultSampleLines is the number of leading lines examined by
// DetectDelimiter when the caller passes a non-positive count.
const DefaultSampleLines = 5

// candidates are the supported delimiters in priority order. On equal
// occurrence counts the earliest candidate wins, so detection is fully
// deterministic: comma beats semicolon beats tab beats pipe.
var candidates = []rune{',', ';', '\t', '|'}

// DetectDelimiter picks the most likely field delimiter by counting candidate
// occurrences across up to sampleLines leading lines of r. A source with
// fewer lines is not an error; an empty source yields comma because all
// counts are zero and comma has the highest priority.
func DetectDelimiter(r io.Reader, sampleLines int) rune {
	if sampleLines <= 0 {
		sampleLines = DefaultSampleLines
	}

	counts := make([]int, len(candidates))

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for i := 0; i < sampleLines && sc.Scan(); i++ {
		line := sc.Text()
		for ci, d := range candidates {
			counts[ci] += strings.Count(line, string(d))
		}
	}

	best := 0
	for ci := 1; ci < len(candidates); ci++ {
		// Strictly greater keeps the earliest candidate on ties.
		if counts[ci] > counts[best] {
			best = ci
		}
	}
	return candidates[best]
}

// DetectDelimiterBytes is DetectDelimiter over an in-memory sample.
func DetectDelimiterBytes(sample []byte, sampleLines int) rune {
	return DetectDelimiter(bytes.NewReader(sample), sampleLines)
}

// ReadCSVSample parses CSV bytes into a header row and a slice of data rows.
//
// The implementation is intentionally best-effort and is designed for
// analysis rather than strict ingestion:
//   - records with the wrong field count are skipped
//   - quoting is lazy to survive mildly malformed input
//   - all fields are whitespace-trimmed
func ReadCSVSample(data []byte, delimiter rune) ([]string, [][]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.FieldsPerRecord = -1 // we validate manually
	r.LazyQuotes = true

	headers, err := r.Read()
	if err != nil {
		return nil, nil, err
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	rows := make([][]string, 0, 1024)
	for {
		rec, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return headers, rows, err
		}
		if len(rec) != len(headers) {
			continue
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, rec)
	}

	return headers, rows, nil
}
