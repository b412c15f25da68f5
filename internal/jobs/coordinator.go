// Package jobs runs heavy aggregate computations and ingestion in the
// background and merges their results into the view stack from the event
// loop. Workers never touch views; they send immutable results over
// channels that Poll drains without blocking.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/wesm/tabview/internal/egest"
	"github.com/wesm/tabview/internal/ingest"
	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/source"
	"github.com/wesm/tabview/internal/table"
	"github.com/wesm/tabview/internal/textutil"
	"github.com/wesm/tabview/internal/view"
)

// Kind is a job kind. At most one job per aggregate kind is tracked.
type Kind int

const (
	KindProfile Kind = iota
	KindFrequency
	KindPivot
	KindIngest
	KindEgest
)

func (k Kind) String() string {
	switch k {
	case KindProfile:
		return "profile"
	case KindFrequency:
		return "frequency"
	case KindPivot:
		return "pivot"
	case KindIngest:
		return "ingest"
	case KindEgest:
		return "egest"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// maxChunksPerPoll bounds how many ingestion chunks one Poll merges so a
// fast reader cannot stall the event loop.
const maxChunksPerPoll = 4

// Func computes a job's result table.
type Func func(ctx context.Context) (*table.Table, error)

// Result is what a worker sends back. It is never modified after send.
type Result struct {
	Kind Kind
	Seq  uint64
	// Owner is the placeholder view the table is merged into.
	Owner view.ID
	// Parent and Gen locate the view whose profile cache receives the
	// table, when CacheProfile is set.
	Parent       view.ID
	Gen          uint64
	CacheProfile bool

	Table   *table.Table
	Err     error
	Elapsed time.Duration
}

// Event reports something Poll did, for the status line.
type Event struct {
	Kind    Kind
	View    view.ID
	Message string
	Warning bool
	Err     error
	// Done is set when a job or stream finished.
	Done bool
}

// Spec describes a job to start.
type Spec struct {
	Kind         Kind
	Owner        view.ID
	Parent       view.ID
	Gen          uint64
	CacheProfile bool
	Run          Func
}

type tracked struct {
	seq   uint64
	owner view.ID
}

type stream struct {
	owner  view.ID
	src    *source.Source
	chunks <-chan ingest.Chunk
	cancel context.CancelFunc
}

type conversion struct {
	dst      string
	progress <-chan egest.Progress
}

// Coordinator tracks background jobs. All methods except the workers it
// spawns run on the event loop goroutine.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc
	eng    query.Engine
	log    *slog.Logger

	results chan Result
	seq     uint64
	current map[Kind]tracked

	streams     []*stream
	conversions []*conversion
}

// New returns a coordinator whose workers are cancelled by Close.
func New(ctx context.Context, eng query.Engine, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Coordinator{
		ctx:     ctx,
		cancel:  cancel,
		eng:     eng,
		log:     log,
		results: make(chan Result, 16),
		current: make(map[Kind]tracked),
	}
}

// Close cancels every worker. Superseded jobs are otherwise left to
// finish; their results are discarded on arrival.
func (c *Coordinator) Close() {
	c.cancel()
	for _, s := range c.streams {
		s.cancel()
	}
}

// Start runs spec.Run in a new goroutine and tracks it as the only live
// job of its kind, superseding any earlier one.
func (c *Coordinator) Start(spec Spec) uint64 {
	c.seq++
	seq := c.seq
	if prev, ok := c.current[spec.Kind]; ok {
		c.log.Debug("superseding job", "kind", spec.Kind, "seq", prev.seq, "owner", prev.owner)
	}
	c.current[spec.Kind] = tracked{seq: seq, owner: spec.Owner}

	go func() {
		r := Result{
			Kind:         spec.Kind,
			Seq:          seq,
			Owner:        spec.Owner,
			Parent:       spec.Parent,
			Gen:          spec.Gen,
			CacheProfile: spec.CacheProfile,
		}
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				r.Table, r.Err = nil, fmt.Errorf("%s panic: %v", spec.Kind, p)
			}
			r.Elapsed = time.Since(start)
			select {
			case c.results <- r:
			case <-c.ctx.Done():
			}
		}()
		r.Table, r.Err = spec.Run(c.ctx)
	}()
	return seq
}

// Running returns the owner of the live job of kind.
func (c *Coordinator) Running(kind Kind) (view.ID, bool) {
	t, ok := c.current[kind]
	return t.owner, ok
}

// Busy reports whether any job, stream or conversion is live.
func (c *Coordinator) Busy() bool {
	return len(c.current) > 0 || len(c.streams) > 0 || len(c.conversions) > 0
}

// AttachStream merges the background chunks of st into owner's source.
// cancel stops the reader once no view on the stack holds that source.
func (c *Coordinator) AttachStream(owner *view.View, st *ingest.Stream, cancel context.CancelFunc) {
	if !st.Background() {
		cancel()
		return
	}
	c.streams = append(c.streams, &stream{owner: owner.ID, src: owner.Source, chunks: st.Chunks, cancel: cancel})
}

// AttachConversion relays egest progress to the status line.
func (c *Coordinator) AttachConversion(dst string, progress <-chan egest.Progress) {
	c.conversions = append(c.conversions, &conversion{dst: dst, progress: progress})
}

// Poll merges every result that is ready without blocking and returns
// what happened.
func (c *Coordinator) Poll(stack *view.Stack) []Event {
	var events []Event
	for {
		select {
		case r := <-c.results:
			if ev, ok := c.merge(stack, r); ok {
				events = append(events, ev)
			}
			continue
		default:
		}
		break
	}
	events = c.pollStreams(stack, events)
	events = c.pollConversions(events)
	return events
}

func (c *Coordinator) merge(stack *view.Stack, r Result) (Event, bool) {
	cur, ok := c.current[r.Kind]
	if !ok || cur.seq != r.Seq {
		c.log.Debug("discarding superseded result", "kind", r.Kind, "seq", r.Seq)
		return Event{}, false
	}
	delete(c.current, r.Kind)

	v := stack.Find(r.Owner)
	if v == nil {
		c.log.Debug("discarding result for closed view", "kind", r.Kind, "view", r.Owner)
		return Event{}, false
	}
	if r.Err == nil && r.Table == nil {
		r.Err = fmt.Errorf("no result")
	}
	if r.Err != nil {
		c.log.Warn("background job failed", "kind", r.Kind, "view", r.Owner, "err", r.Err)
		return Event{Kind: r.Kind, View: r.Owner, Err: r.Err, Done: true,
			Message: fmt.Sprintf("%s failed: %v", r.Kind, r.Err)}, true
	}

	v.Placeholder = false
	v.SetSource(source.NewMemory(c.eng, r.Table))
	if r.CacheProfile {
		if parent := stack.Find(r.Parent); parent != nil {
			parent.StoreProfile(r.Gen, r.Table)
		}
	}
	c.log.Debug("merged background result", "kind", r.Kind, "view", r.Owner, "rows", r.Table.Len(), "elapsed", r.Elapsed)
	return Event{Kind: r.Kind, View: r.Owner, Done: true,
		Message: fmt.Sprintf("%s ready in %s", r.Kind, r.Elapsed.Round(time.Millisecond))}, true
}

func (c *Coordinator) pollStreams(stack *view.Stack, events []Event) []Event {
	live := c.streams[:0]
	for _, s := range c.streams {
		done := false
		v := s.holder(stack)
		if v == nil {
			c.log.Debug("stream orphaned, stopping reader", "view", s.owner)
			s.cancel()
			continue
		}
	drain:
		for i := 0; i < maxChunksPerPoll; i++ {
			select {
			case ch, ok := <-s.chunks:
				if !ok {
					// Reader went away without a final chunk.
					v.Source.Finish(true)
					events = append(events, Event{Kind: KindIngest, View: s.owner, Done: true, Warning: true,
						Message: "loading stopped early, data is incomplete"})
					done = true
					break drain
				}
				events = c.mergeChunk(v, ch, events)
				if ch.Done {
					done = true
					break drain
				}
			default:
				break drain
			}
		}
		if done {
			s.cancel()
			continue
		}
		live = append(live, s)
	}
	clear(c.streams[len(live):])
	c.streams = live
	return events
}

// holder returns a stack view still bound to the stream's source,
// preferring the original owner. Duplicated views share the source.
func (s *stream) holder(stack *view.Stack) *view.View {
	if v := stack.Find(s.owner); v != nil && v.Source == s.src {
		return v
	}
	for _, v := range stack.Views() {
		if v.Source == s.src {
			s.owner = v.ID
			return v
		}
	}
	return nil
}

func (c *Coordinator) mergeChunk(v *view.View, ch ingest.Chunk, events []Event) []Event {
	warnings := slices.Clone(ch.Warnings)
	if ch.Table != nil {
		w, err := v.Source.AppendChunk(ch.Table)
		if err != nil {
			ch.Err, ch.Done, ch.Truncated = err, true, true
		}
		warnings = append(warnings, w...)
	}
	for _, w := range warnings {
		events = append(events, Event{Kind: KindIngest, View: v.ID, Warning: true, Message: w})
	}
	switch {
	case ch.Err != nil:
		v.Source.Finish(true)
		c.log.Warn("ingest failed", "view", v.ID, "err", ch.Err)
		events = append(events, Event{Kind: KindIngest, View: v.ID, Done: true, Err: ch.Err,
			Message: fmt.Sprintf("loading failed after %s rows: %v", textutil.Commify(ch.Rows), ch.Err)})
	case ch.Done:
		v.Source.Finish(ch.Truncated)
		msg := fmt.Sprintf("Loaded %s rows", textutil.Commify(ch.Rows))
		if ch.Truncated {
			msg += " (truncated)"
		}
		events = append(events, Event{Kind: KindIngest, View: v.ID, Done: true, Message: msg})
	}
	return events
}

func (c *Coordinator) pollConversions(events []Event) []Event {
	live := c.conversions[:0]
	for _, cv := range c.conversions {
		finished := false
	drain:
		for {
			select {
			case p, ok := <-cv.progress:
				if !ok {
					finished = true
					break drain
				}
				events = append(events, Event{Kind: KindEgest, Message: p.Message, Warning: p.Warning, Err: p.Err, Done: p.Done})
				if p.Done {
					finished = true
					break drain
				}
			default:
				break drain
			}
		}
		if finished {
			c.log.Debug("conversion finished", "dst", cv.dst)
			continue
		}
		live = append(live, cv)
	}
	clear(c.conversions[len(live):])
	c.conversions = live
	return events
}
