package source

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wesm/tabview/internal/ingest"
	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/table"
)

// splitSQLitePath splits "file.db:table" into its parts. A path naming an
// existing file is never split.
func splitSQLitePath(path string) (file, tbl string) {
	if _, err := os.Stat(path); err == nil {
		return path, ""
	}
	if i := strings.LastIndexByte(path, ':'); i > 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

// openSQLite loads one table of a SQLite database as a resident table.
// Values are read as text and promoted with the same conservative rule
// as delimited files, since SQLite column types are advisory.
func openSQLite(ctx context.Context, path, tbl string, raw bool) (*table.Table, string, error) {
	dsn := (&url.URL{
		Scheme:   "file",
		OmitHost: true,
		Path:     path,
		RawQuery: "mode=ro&_busy_timeout=5000",
	}).String()
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer db.Close()

	if tbl == "" {
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name LIMIT 1`).Scan(&tbl)
		if err == sql.ErrNoRows {
			return nil, "", fmt.Errorf("sqlite %s: no tables", path)
		}
		if err != nil {
			return nil, "", queryErr("list sqlite tables", err)
		}
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+query.QuoteIdent(tbl))
	if err != nil {
		return nil, "", queryErr("read sqlite table "+tbl, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, "", err
	}
	vals := make([][]string, len(names))
	nulls := make([][]bool, len(names))
	scan := make([]any, len(names))
	for i := range scan {
		scan[i] = new(sql.RawBytes)
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, "", fmt.Errorf("scan %s: %w", tbl, err)
		}
		for i, v := range scan {
			b := *v.(*sql.RawBytes)
			vals[i] = append(vals[i], string(b))
			nulls[i] = append(nulls[i], b == nil)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, "", queryErr("read sqlite table "+tbl, err)
	}

	cols := make([]*table.Column, len(names))
	for i, name := range names {
		if vals[i] == nil {
			vals[i] = []string{}
		}
		cols[i] = table.NewStringColumn(name, vals[i], nulls[i])
	}
	t, err := table.New(cols...)
	if err != nil {
		return nil, "", err
	}
	if !raw {
		t, _ = ingest.Promote(t)
	}
	return t, tbl, nil
}
