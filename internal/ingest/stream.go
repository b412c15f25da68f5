package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/wesm/tabview/internal/table"
	"github.com/wesm/tabview/internal/textutil"
)

// Defaults for chunked reads.
const (
	DefaultBootstrapRows = 100_000
	DefaultChunkRows     = 100_000
)

// Options configures ingestion.
type Options struct {
	// BootstrapRows is the size of the synchronous first chunk whose
	// inferred schema governs every later chunk.
	BootstrapRows int
	// ChunkRows is the size of each background chunk.
	ChunkRows int
	// MemLimit is the soft budget in bytes of decoded input kept resident.
	// It is checked at chunk boundaries only. 0 disables the check.
	MemLimit int64
	// Raw disables type promotion; every column stays text.
	Raw bool
	// Logger receives debug progress; nil uses slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.BootstrapRows <= 0 {
		o.BootstrapRows = DefaultBootstrapRows
	}
	if o.ChunkRows <= 0 {
		o.ChunkRows = DefaultChunkRows
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) overBudget(bytes int64) bool {
	return o.MemLimit > 0 && bytes*2 > o.MemLimit
}

// Chunk is one message from the background reader. Tables are never
// modified after they are sent.
type Chunk struct {
	Seq      int
	Table    *table.Table
	Warnings []string
	// Done is set on the final message.
	Done bool
	// Truncated is set when reading stopped before the end of the source,
	// either at the memory budget or on a read error.
	Truncated bool
	Err       error
	// Rows and Bytes are running totals including the bootstrap chunk.
	Rows  int64
	Bytes int64
}

// Stream is the result of starting ingestion of a source.
type Stream struct {
	Path      string
	Bootstrap *table.Table
	Schema    []table.Field
	Warnings  []string
	Charset   string
	// Chunks delivers background chunks. It is nil when ingestion finished
	// synchronously; otherwise the worker closes it after the final chunk.
	Chunks <-chan Chunk
	// Complete is true when the bootstrap chunk reached end-of-source.
	Complete bool
	// Truncated is true when the bootstrap chunk alone exhausted the memory
	// budget and no background phase was started.
	Truncated bool
}

// Background reports whether a worker is still delivering chunks.
func (s *Stream) Background() bool { return s.Chunks != nil }

// Load reads an entire delimited file synchronously and promotes its
// columns. It is used for small resident sources.
func Load(path string, opts Options) (*table.Table, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	t, err := r.ReadChunk(math.MaxInt)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if opts.Raw {
		return t, nil
	}
	t, _ = Promote(t)
	return t, nil
}

// Start parses the bootstrap chunk of path synchronously and, unless the
// source is exhausted or the budget is already spent, continues reading in
// a background goroutine. Cancelling ctx stops the worker at the next
// chunk boundary; its channel is then closed without a Done message.
func Start(ctx context.Context, path string, opts Options) (*Stream, error) {
	opts = opts.withDefaults()
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}

	boot, err := r.ReadChunk(opts.BootstrapRows)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	schema := boot.Schema()
	if !opts.Raw {
		boot, schema = Promote(boot)
	}

	s := &Stream{
		Path:      path,
		Bootstrap: boot,
		Schema:    schema,
		Charset:   r.Charset(),
	}
	if r.Charset() != "UTF-8" {
		s.Warnings = append(s.Warnings, fmt.Sprintf("decoded %s as %s", path, r.Charset()))
	}

	bytes := r.BytesRead()
	switch {
	case r.EOF():
		s.Complete = true
	case opts.overBudget(bytes):
		s.Truncated = true
		s.Warnings = append(s.Warnings, fmt.Sprintf(
			"loaded first %s rows only: memory budget %s reached", textutil.Commify(r.Rows()), textutil.Bytes(opts.MemLimit)))
	}
	if s.Complete || s.Truncated {
		r.Close()
		return s, nil
	}

	ch := make(chan Chunk, 2)
	s.Chunks = ch
	go work(ctx, r, schema, opts, ch)
	return s, nil
}

// work reads chunks until end-of-source, the memory budget, an error or
// cancellation. It owns r and closes both r and out.
func work(ctx context.Context, r *Reader, schema []table.Field, opts Options, out chan<- Chunk) {
	defer close(out)
	defer r.Close()

	log := opts.Logger
	progress := rate.Sometimes{Interval: 2 * time.Second}

	send := func(c Chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for seq := 1; ; seq++ {
		if ctx.Err() != nil {
			return
		}
		raw, err := r.ReadChunk(opts.ChunkRows)
		if err != nil {
			log.Warn("ingest read failed", "rows", r.Rows(), "err", err)
			send(Chunk{Seq: seq, Done: true, Truncated: true, Err: err, Rows: r.Rows(), Bytes: r.BytesRead()})
			return
		}

		c := Chunk{Seq: seq, Table: raw, Rows: r.Rows(), Bytes: r.BytesRead()}
		if !opts.Raw {
			c.Table, schema, c.Warnings = ApplySchema(raw, schema, seq)
		}
		switch {
		case r.EOF():
			c.Done = true
		case opts.overBudget(c.Bytes):
			c.Done, c.Truncated = true, true
			c.Warnings = append(c.Warnings, fmt.Sprintf(
				"stopped at %s rows: memory budget %s reached", textutil.Commify(c.Rows), textutil.Bytes(opts.MemLimit)))
		}
		progress.Do(func() {
			log.Debug("ingest progress", "rows", c.Rows, "bytes", c.Bytes)
		})
		if !send(c) || c.Done {
			return
		}
	}
}
