package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wesm/tabview/internal/table"
	"github.com/wesm/tabview/internal/textutil"
)

// Separators recognized on the header line, in tie-break order.
var Separators = []rune{'\t', ',', '|', ';'}

// DetectSeparator picks the separator that occurs most often outside
// quotes in the header line. Comma wins when nothing matches.
func DetectSeparator(header string) rune {
	counts := make(map[rune]int, len(Separators))
	inQuotes := false
	for _, r := range header {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}
	best, bestN := ',', 0
	for _, sep := range Separators {
		if counts[sep] > bestN {
			best, bestN = sep, counts[sep]
		}
	}
	return best
}

// Reader parses a delimited text source into all-text chunks.
type Reader struct {
	src     io.ReadCloser
	csv     *csv.Reader
	header  []string
	sep     rune
	charset string
	rows    int64
	eof     bool
}

// NewReader opens path (decompressing by extension), repairs legacy
// charsets, detects the separator and reads the header row.
func NewReader(path string) (*Reader, error) {
	src, err := OpenDecompressed(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(src)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return r, nil
}

func newReader(src io.ReadCloser) (*Reader, error) {
	utf8r, charset := textutil.NewUTF8Reader(src)
	br := bufio.NewReader(utf8r)
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if strings.TrimSpace(line) == "" {
		return nil, fmt.Errorf("no header line")
	}

	sep := DetectSeparator(line)
	cr := csv.NewReader(io.MultiReader(strings.NewReader(line), br))
	cr.Comma = sep
	cr.FieldsPerRecord = -1 // Allow variable number of fields
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	rec, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	return &Reader{
		src:     src,
		csv:     cr,
		header:  uniqueNames(rec),
		sep:     sep,
		charset: charset,
	}, nil
}

// uniqueNames fills blank header cells and disambiguates duplicates.
func uniqueNames(rec []string) []string {
	out := make([]string, len(rec))
	seen := make(map[string]int, len(rec))
	for i, name := range rec {
		name = strings.TrimSpace(textutil.EnsureUTF8(name))
		if name == "" {
			name = "col" + strconv.Itoa(i+1)
		}
		base := name
		for n := 1; seen[name] > 0; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		seen[name]++
		out[i] = name
	}
	return out
}

// Header returns the column names.
func (r *Reader) Header() []string { return r.header }

// Separator returns the detected field separator.
func (r *Reader) Separator() rune { return r.sep }

// Charset returns the detected input charset.
func (r *Reader) Charset() string { return r.charset }

// Rows returns the number of data rows read so far.
func (r *Reader) Rows() int64 { return r.rows }

// BytesRead returns the decoded input consumed so far, header included.
func (r *Reader) BytesRead() int64 { return r.csv.InputOffset() }

// EOF reports whether the source is exhausted.
func (r *Reader) EOF() bool { return r.eof }

// ReadChunk reads up to n data rows as all-text columns. Empty fields are
// null. Short rows are padded with nulls; extra fields are dropped. The
// returned table has zero rows once the source is exhausted.
func (r *Reader) ReadChunk(n int) (*table.Table, error) {
	width := len(r.header)
	vals := make([][]string, width)
	nulls := make([][]bool, width)
	read := 0
	for read < n && !r.eof {
		rec, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			r.eof = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r.rows+1, err)
		}
		if len(rec) == 1 && rec[0] == "" {
			continue
		}
		for c := 0; c < width; c++ {
			var s string
			if c < len(rec) {
				s = textutil.EnsureUTF8(rec[c])
			}
			vals[c] = append(vals[c], s)
			nulls[c] = append(nulls[c], s == "")
		}
		read++
		r.rows++
	}

	cols := make([]*table.Column, width)
	for c, name := range r.header {
		if vals[c] == nil {
			vals[c] = []string{}
		}
		cols[c] = table.NewStringColumn(name, vals[c], nulls[c])
	}
	return table.New(cols...)
}

// Close releases the underlying file and decompressor.
func (r *Reader) Close() error {
	return r.src.Close()
}
