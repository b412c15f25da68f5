package testutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// WriteGzip writes content gzip-compressed to dir/name and returns the path.
func WriteGzip(t testing.TB, dir, name, content string) string {
	t.Helper()
	return writeCompressed(t, dir, name, content, func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriter(w), nil
	})
}

// WriteZstd writes content zstd-compressed to dir/name and returns the path.
func WriteZstd(t testing.TB, dir, name, content string) string {
	t.Helper()
	return writeCompressed(t, dir, name, content, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	})
}

// WriteLZ4 writes content lz4-compressed to dir/name and returns the path.
func WriteLZ4(t testing.TB, dir, name, content string) string {
	t.Helper()
	return writeCompressed(t, dir, name, content, func(w io.Writer) (io.WriteCloser, error) {
		return lz4.NewWriter(w), nil
	})
}

func writeCompressed(t testing.TB, dir, name, content string, wrap func(io.Writer) (io.WriteCloser, error)) string {
	t.Helper()
	if err := validateRelativePath(dir, name); err != nil {
		t.Fatalf("writeCompressed: %v", err)
	}
	path := filepath.Join(dir, filepath.Clean(name))
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := wrap(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// CSVRows renders a header and n generated rows. row is called with the
// zero-based row index and returns the fields of that row.
func CSVRows(header string, n int, row func(i int) []string) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteByte('\n')
	for i := 0; i < n; i++ {
		sb.WriteString(strings.Join(row(i), ","))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Itoa is a shorthand for fmt.Sprint on row indices in CSVRows callbacks.
func Itoa(i int) string { return fmt.Sprint(i) }
