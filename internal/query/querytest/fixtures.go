package querytest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/marcboeker/go-duckdb"
)

// WriteParquet writes a Parquet file at dir/name from a VALUES list.
// columns is the alias list for the VALUES clause, e.g. "id, name".
func WriteParquet(t testing.TB, dir, name, columns, values string) string {
	t.Helper()
	sel := fmt.Sprintf("SELECT * FROM (VALUES %s) AS t(%s)", values, columns)
	return CopyToFile(t, dir, name, sel, "FORMAT parquet")
}

// WriteSeriesParquet writes n generated rows with columns
// id (0..n-1), a (id % 100) and b (id * 2).
func WriteSeriesParquet(t testing.TB, dir, name string, n int) string {
	t.Helper()
	sel := fmt.Sprintf("SELECT i AS id, i %% 100 AS a, i * 2 AS b FROM range(%d) r(i)", n)
	return CopyToFile(t, dir, name, sel, "FORMAT parquet")
}

// CopyToFile runs COPY (sel) TO dir/name with the given options using a
// throwaway DuckDB connection.
func CopyToFile(t testing.TB, dir, name, sel, options string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	defer db.Close()

	escaped := strings.ReplaceAll(path, "'", "''")
	q := fmt.Sprintf("COPY (%s) TO '%s' (%s)", sel, escaped, options)
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
