// Package egest converts compressed delimited sources to Parquet by
// re-reading the original file in fixed-size chunks.
package egest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wesm/tabview/internal/ingest"
	"github.com/wesm/tabview/internal/table"
	"github.com/wesm/tabview/internal/textutil"
)

// Options configures a conversion.
type Options struct {
	// ChunkRows is the number of rows parsed and written per batch.
	ChunkRows int
	// RowsPerFile rolls output over to a new numbered file once a file
	// holds at least this many rows. 0 writes a single file with one row
	// group per chunk.
	RowsPerFile int64
	// Compression names the Parquet codec ("snappy", "zstd", "gzip",
	// "lz4", "none").
	Compression string
	// Raw skips type promotion; every column is written as text.
	Raw bool
	// ProgressInterval throttles "Written N rows" messages. 0 uses 1s.
	ProgressInterval time.Duration
	Logger           *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ChunkRows <= 0 {
		o.ChunkRows = ingest.DefaultChunkRows
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Progress is one status message from a running conversion.
type Progress struct {
	Rows    int64
	Message string
	// Warning is set for cast diagnostics; Message holds the text.
	Warning bool
	Done    bool
	Err     error
	// Files lists the written outputs; set on the final message.
	Files []string
}

// Result summarizes a finished conversion.
type Result struct {
	Rows     int64
	Files    []string
	Schema   []table.Field
	Warnings []string
}

// Convert runs the conversion in a goroutine and reports progress on the
// returned channel, which is closed after the final Done message.
func Convert(ctx context.Context, src, dst string, opts Options) <-chan Progress {
	ch := make(chan Progress, 16)
	go func() {
		defer close(ch)
		send := func(p Progress) {
			select {
			case ch <- p:
			case <-ctx.Done():
			}
		}
		defer func() {
			if r := recover(); r != nil {
				send(Progress{Done: true, Err: fmt.Errorf("convert panic: %v", r), Message: fmt.Sprintf("Save failed: %v", r)})
			}
		}()
		res, err := Run(ctx, src, dst, opts, send)
		if err != nil {
			send(Progress{Done: true, Err: err, Message: "Save failed: " + err.Error()})
			return
		}
		send(Progress{
			Done:    true,
			Rows:    res.Rows,
			Files:   res.Files,
			Message: fmt.Sprintf("Done: %s rows", textutil.Commify(res.Rows)),
		})
	}()
	return ch
}

// Run converts src to dst synchronously. report, if non-nil, receives
// throttled progress and every cast diagnostic; it never receives the
// final Done message.
func Run(ctx context.Context, src, dst string, opts Options, report func(Progress)) (*Result, error) {
	opts = opts.withDefaults()
	if report == nil {
		report = func(Progress) {}
	}
	codec, err := Codec(opts.Compression)
	if err != nil {
		return nil, err
	}

	r, err := ingest.NewReader(src)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	first, err := r.ReadChunk(opts.ChunkRows)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	schema := first.Schema()
	if !opts.Raw {
		first, schema = ingest.Promote(first)
	}
	out := &writer{
		dst:     dst,
		perFile: opts.RowsPerFile,
		create: func(path string) (*parquetFile, error) {
			return createParquet(path, ArrowSchema(schema), codec)
		},
	}
	defer out.abort()

	res := &Result{Schema: schema}
	log := opts.Logger
	progress := rate.Sometimes{Interval: opts.ProgressInterval}

	chunk := first
	for seq := 0; ; seq++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seq > 0 {
			raw, err := r.ReadChunk(opts.ChunkRows)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", src, err)
			}
			chunk = raw
			if !opts.Raw {
				var warnings []string
				chunk, warnings = castChunk(raw, schema, seq)
				for _, w := range warnings {
					log.Warn("egest cast", "chunk", seq, "msg", w)
					res.Warnings = append(res.Warnings, w)
					report(Progress{Rows: res.Rows, Message: w, Warning: true})
				}
			}
		}
		if chunk.Len() > 0 || seq == 0 {
			if err := out.write(chunk); err != nil {
				return nil, err
			}
			res.Rows += int64(chunk.Len())
		}
		rows := res.Rows
		progress.Do(func() {
			report(Progress{Rows: rows, Message: fmt.Sprintf("Written %s rows", textutil.Commify(rows))})
		})
		if r.EOF() {
			break
		}
	}

	files, err := out.finish()
	if err != nil {
		return nil, err
	}
	res.Files = files
	log.Debug("egest complete", "src", src, "rows", res.Rows, "files", len(files))
	return res, nil
}

// castChunk casts a text chunk to the fixed target schema. Values that do
// not fit become null and each failing column yields one diagnostic.
func castChunk(t *table.Table, schema []table.Field, seq int) (*table.Table, []string) {
	cols := make([]*table.Column, len(schema))
	var warnings []string
	for i, f := range schema {
		c := t.Column(i)
		if f.Type == table.String {
			cols[i] = c
			continue
		}
		cast, failed := ingest.Cast(c, f.Type)
		if failed > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"chunk %d: column %s has %d value(s) that are not %s, written as null", seq, f.Name, failed, f.Type))
		}
		cols[i] = cast
	}
	out, err := table.New(cols...)
	if err != nil {
		// Columns come from one chunk and share its length.
		panic(err)
	}
	return out, warnings
}

// writer owns the current output file and handles rollover.
type writer struct {
	dst     string
	perFile int64
	create  func(path string) (*parquetFile, error)

	cur   *parquetFile
	files []string
}

// PartPath returns the numbered output path for part n (1-based):
// out.parquet becomes out_0001.parquet.
func PartPath(dst string, n int) string {
	ext := filepath.Ext(dst)
	return fmt.Sprintf("%s_%04d%s", strings.TrimSuffix(dst, ext), n, ext)
}

func (w *writer) write(t *table.Table) error {
	if w.cur == nil {
		path := w.dst
		if w.perFile > 0 {
			path = PartPath(w.dst, len(w.files)+1)
		}
		f, err := w.create(path)
		if err != nil {
			return err
		}
		w.cur = f
		w.files = append(w.files, path)
	}
	if err := w.cur.write(t); err != nil {
		return err
	}
	if w.perFile > 0 && w.cur.rows >= w.perFile {
		cur := w.cur
		w.cur = nil
		return cur.close()
	}
	return nil
}

func (w *writer) finish() ([]string, error) {
	if w.cur != nil {
		cur := w.cur
		w.cur = nil
		if err := cur.close(); err != nil {
			return nil, err
		}
	}
	files := w.files
	w.files = nil
	return files, nil
}

// abort closes and removes outputs after a failure. It is a no-op after
// finish.
func (w *writer) abort() {
	if w.cur != nil {
		w.cur.close()
		w.cur = nil
	}
	for _, f := range w.files {
		os.Remove(f)
	}
}
