package testutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/wesm/tabview/internal/table"
)

// AssertEqualSlices compares two slices element-by-element.
func AssertEqualSlices[T comparable](t testing.TB, got []T, want ...T) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("got len %d, want %d: %v", len(got), len(want), got)
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("at index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

// AssertStrings compares two string slices element-by-element with %q
// formatting, which makes column names and cell text readable.
func AssertStrings(t testing.TB, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("got len %d, want %d: %q", len(got), len(want), got)
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("at index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

// Cells formats every value of the named column the way the grid shows
// it, with decimals digits for floats (-1 for shortest). A missing column
// fails the test.
func Cells(t testing.TB, tbl *table.Table, name string, decimals int) []string {
	t.Helper()
	c := tbl.ColumnByName(name)
	if c == nil {
		t.Fatalf("missing column %q in %q", name, tbl.Names())
	}
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Format(i, decimals)
	}
	return out
}

// AssertValidUTF8 asserts that a decoded cell is valid UTF-8.
func AssertValidUTF8(t testing.TB, s string) {
	t.Helper()
	if !utf8.ValidString(s) {
		t.Errorf("cell is not valid UTF-8: %q", s)
	}
}

// AssertContainsAll asserts that rendered output contains every substring
// in subs.
func AssertContainsAll(t testing.TB, got string, subs []string) {
	t.Helper()
	for _, substr := range subs {
		if !strings.Contains(got, substr) {
			t.Errorf("output %q should contain %q", got, substr)
		}
	}
}

// MustNoErr fails the test immediately if err is non-nil. Use it for
// setup steps the rest of the test depends on.
func MustNoErr(t testing.TB, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}
