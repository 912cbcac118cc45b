package sniff

import (
	"reflect"
	"strings"
	"testing"
)

//
// DetectDelimiter
//

// TestDetectDelimiter verifies the max-count selection and the fixed
// priority tie-break (comma > semicolon > tab > pipe).
func TestDetectDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  rune
	}{
		{
			name:  "semicolon outnumbers comma",
			input: "a,b;c;d;e\n1,2;3;4;5\n",
			want:  ';',
		},
		{
			name:  "comma wins tie against semicolon",
			input: "a,b;c\n1,2;3\n",
			want:  ',',
		},
		{
			name:  "tab separated",
			input: "a\tb\tc\n1\t2\t3\n",
			want:  '\t',
		},
		{
			name:  "pipe separated",
			input: "a|b|c\n1|2|3\n",
			want:  '|',
		},
		{
			name:  "empty source defaults to comma",
			input: "",
			want:  ',',
		},
		{
			name:  "no delimiters at all defaults to comma",
			input: "one\ntwo\nthree\n",
			want:  ',',
		},
		{
			name:  "fewer lines than sample is fine",
			input: "a;b\n",
			want:  ';',
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DetectDelimiter(strings.NewReader(tt.input), 5)
			if got != tt.want {
				t.Fatalf("DetectDelimiter() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestDetectDelimiter_SampleBound verifies that lines past the sample window
// do not influence the result.
func TestDetectDelimiter_SampleBound(t *testing.T) {
	t.Parallel()

	// First two lines favor comma; everything after the window favors pipe.
	input := "a,b,c\n1,2,3\n" + strings.Repeat("x|y|z|w|v|u\n", 50)
	got := DetectDelimiter(strings.NewReader(input), 2)
	if got != ',' {
		t.Fatalf("DetectDelimiter() = %q, want %q", got, ',')
	}
}

//
// ReadCSVSample
//

// TestReadCSVSample verifies header extraction and row alignment.
func TestReadCSVSample(t *testing.T) {
	t.Parallel()

	data := []byte("a,b\n1,2\n3,4\n")
	headers, rows, err := ReadCSVSample(data, ',')
	if err != nil {
		t.Fatalf("ReadCSVSample error: %v", err)
	}
	if !reflect.DeepEqual(headers, []string{"a", "b"}) {
		t.Fatalf("headers = %v, want [a b]", headers)
	}
	if len(rows) != 2 {
		t.Fatalf("rows len = %d, want 2", len(rows))
	}
}

// TestReadCSVSample_MisalignedRow verifies rows with the wrong field count
// are skipped rather than failing the sample.
func TestReadCSVSample_MisalignedRow(t *testing.T) {
	t.Parallel()

	data := []byte("a,b\n1\n2,3\n")
	_, rows, err := ReadCSVSample(data, ',')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows len = %d, want 1", len(rows))
	}
}

// TestReadCSVSample_Empty verifies empty input returns empty output, no error.
func TestReadCSVSample_Empty(t *testing.T) {
	t.Parallel()

	headers, rows, err := ReadCSVSample(nil, ',')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(headers) != 0 || len(rows) != 0 {
		t.Fatalf("got headers=%v rows=%v, want empty", headers, rows)
	}
}
