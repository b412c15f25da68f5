package source

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/wesm/tabview/internal/ingest"
	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/table"
)

// DefaultCSVResidentMaxBytes is the size above which an uncompressed
// delimited file opens disk-backed instead of resident.
const DefaultCSVResidentMaxBytes = 256 << 20

// OpenOptions configures Open.
type OpenOptions struct {
	Ingest ingest.Options
	// CSVResidentMaxBytes overrides DefaultCSVResidentMaxBytes; negative
	// forces every delimited file disk-backed.
	CSVResidentMaxBytes int64
}

// Opened is the result of Open. Stream is set for streaming sources whose
// background chunks the caller must merge with AppendChunk and Finish.
type Opened struct {
	Source *Source
	Stream *ingest.Stream
	// Name is the display label for the new view.
	Name     string
	Warnings []string
}

type format int

const (
	formatUnknown format = iota
	formatParquet
	formatDelimited
	formatJSON
	formatSQLite
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return formatParquet
	case ".csv", ".tsv", ".tab", ".txt", ".psv":
		return formatDelimited
	case ".json", ".ndjson", ".jsonl":
		return formatJSON
	case ".sqlite", ".sqlite3", ".db":
		return formatSQLite
	}
	return formatUnknown
}

// Expand resolves glob patterns. A pattern that matches nothing, or a
// plain path that does not exist, fails with ErrSourceNotFound.
func Expand(paths ...string) ([]string, error) {
	var out []string
	for _, p := range paths {
		if strings.ContainsAny(p, "*?[") {
			matches, err := filepath.Glob(p)
			if err != nil {
				return nil, eris.Wrapf(ErrSourceNotFound, "bad pattern %s: %v", p, err)
			}
			if len(matches) == 0 {
				return nil, eris.Wrapf(ErrSourceNotFound, "no files match %s", p)
			}
			slices.Sort(matches)
			out = append(out, matches...)
			continue
		}
		file, _ := splitSQLitePath(p)
		if _, err := os.Stat(file); err != nil {
			return nil, eris.Wrapf(ErrSourceNotFound, "%s", p)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, eris.Wrapf(ErrSourceNotFound, "no paths given")
	}
	return out, nil
}

// Open binds paths to a source, choosing the storage strategy from the
// extension and size:
//
//   - .parquet and .json/.ndjson open disk-backed
//   - delimited text opens resident, or disk-backed above the size limit
//   - compressed delimited text (.gz, .zst, .lz4) streams in the background
//   - .sqlite/.db (optionally "file.db:table") loads one table resident
//
// Several paths (or a glob) open as one disk-backed set and must share a
// schema.
func Open(ctx context.Context, eng query.Engine, opts OpenOptions, paths ...string) (*Opened, error) {
	paths, err := Expand(paths...)
	if err != nil {
		return nil, err
	}
	if len(paths) > 1 {
		return openSet(ctx, eng, paths)
	}
	path := paths[0]
	name := filepath.Base(path)

	if ingest.IsCompressed(path) {
		if formatOf(ingest.StripCompression(path)) != formatDelimited {
			return nil, eris.Wrapf(ErrUnsupportedSource, "%s: only compressed delimited text can be streamed", name)
		}
		st, err := ingest.Start(ctx, path, opts.Ingest)
		if err != nil {
			return nil, err
		}
		src := NewStream(eng, st.Bootstrap, st.Background(), st.Truncated, path)
		return &Opened{Source: src, Stream: st, Name: name, Warnings: st.Warnings}, nil
	}

	file, tbl := splitSQLitePath(path)
	switch formatOf(file) {
	case formatParquet:
		src, err := NewDisk(ctx, eng, query.FileRelation(query.KindParquet, path))
		if err != nil {
			return nil, err
		}
		return &Opened{Source: src, Name: name}, nil
	case formatJSON:
		src, err := NewDisk(ctx, eng, query.FileRelation(query.KindJSON, path))
		if err != nil {
			return nil, err
		}
		return &Opened{Source: src, Name: name}, nil
	case formatDelimited:
		limit := opts.CSVResidentMaxBytes
		if limit == 0 {
			limit = DefaultCSVResidentMaxBytes
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, eris.Wrapf(ErrSourceNotFound, "%s", path)
		}
		if limit < 0 || info.Size() > limit {
			src, err := NewDisk(ctx, eng, query.FileRelation(query.KindCSV, path))
			if err != nil {
				return nil, err
			}
			return &Opened{Source: src, Name: name}, nil
		}
		t, err := ingest.Load(path, opts.Ingest)
		if err != nil {
			return nil, err
		}
		return &Opened{Source: NewMemory(eng, t, path), Name: name}, nil
	case formatSQLite:
		t, tbl, err := openSQLite(ctx, file, tbl, opts.Ingest.Raw)
		if err != nil {
			return nil, err
		}
		return &Opened{Source: NewMemory(eng, t, path), Name: filepath.Base(file) + ":" + tbl}, nil
	}
	return nil, eris.Wrapf(ErrUnsupportedSource, "%s", name)
}

// openSet opens several files of one format as a single disk relation.
func openSet(ctx context.Context, eng query.Engine, paths []string) (*Opened, error) {
	var kind query.Kind
	switch formatOf(paths[0]) {
	case formatParquet:
		kind = query.KindParquet
	case formatDelimited:
		kind = query.KindCSV
	case formatJSON:
		kind = query.KindJSON
	default:
		return nil, eris.Wrapf(ErrUnsupportedSource, "%s: cannot open as a multi-file set", filepath.Base(paths[0]))
	}

	var first []table.Field
	for i, p := range paths {
		if ingest.IsCompressed(p) || formatOf(p) != formatOf(paths[0]) {
			return nil, eris.Wrapf(ErrUnsupportedSource, "%s: mixed formats in one set", filepath.Base(p))
		}
		fields, err := eng.Schema(ctx, query.FileRelation(kind, p))
		if err != nil {
			return nil, queryErr("schema "+filepath.Base(p), err)
		}
		if i == 0 {
			first = fields
			continue
		}
		if !slices.Equal(first, fields) {
			return nil, eris.Wrapf(ErrSchemaMismatch, "%s differs from %s", filepath.Base(p), filepath.Base(paths[0]))
		}
	}

	src, err := NewDisk(ctx, eng, query.FileRelation(kind, paths...))
	if err != nil {
		return nil, err
	}
	name := filepath.Base(paths[0]) + " +" + strconv.Itoa(len(paths)-1)
	return &Opened{Source: src, Name: name}, nil
}
