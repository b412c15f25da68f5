// Package session is the command surface of tabview. It owns the view
// stack and the background coordinator and maps each user verb to a data
// source operation or a background job. All methods run on the caller's
// event loop goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wesm/tabview/internal/config"
	"github.com/wesm/tabview/internal/jobs"
	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/view"
)

// ErrNoView is returned by verbs that need a view when the stack is empty.
var ErrNoView = errors.New("no view open")

// maxHistory bounds the status history kept for the log pane.
const maxHistory = 200

// Status is one status line message.
type Status struct {
	Message string
	Warning bool
	Err     error
	At      time.Time
}

// Options configures a session.
type Options struct {
	Config *config.Config
	Engine query.Engine
	Logger *slog.Logger
	// Budget overrides the memory budget resolved from Config.
	Budget *config.Budget
}

// Session holds the view stack of one interactive run.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	budget config.Budget
	eng    query.Engine
	log    *slog.Logger

	stack *view.Stack
	jobs  *jobs.Coordinator

	history []Status
}

// New returns an empty session. The memory budget is resolved once here.
func New(ctx context.Context, opts Options) *Session {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default(config.DefaultHome())
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	budget := cfg.MemoryBudget()
	if opts.Budget != nil {
		budget = *opts.Budget
	}
	ctx, cancel := context.WithCancel(ctx)
	log.Debug("session start", "mem_total", budget.Total, "mem_limit", budget.Limit)
	return &Session{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		budget: budget,
		eng:    opts.Engine,
		log:    log,
		stack:  view.NewStack(),
		jobs:   jobs.New(ctx, opts.Engine, log),
	}
}

// Close stops every background reader, job and conversion.
func (s *Session) Close() {
	s.jobs.Close()
	s.cancel()
}

// Config returns the session configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Stack returns the view stack.
func (s *Session) Stack() *view.Stack { return s.stack }

// Top returns the current view, nil when the stack is empty.
func (s *Session) Top() *view.View { return s.stack.Top() }

// Busy reports whether background work is in flight.
func (s *Session) Busy() bool { return s.jobs.Busy() }

// Status returns the latest status message.
func (s *Session) Status() Status {
	if len(s.history) == 0 {
		return Status{}
	}
	return s.history[len(s.history)-1]
}

// History returns recent status messages, oldest first.
func (s *Session) History() []Status { return s.history }

func (s *Session) say(format string, args ...any) {
	s.push(Status{Message: fmt.Sprintf(format, args...)})
}

func (s *Session) warn(msg string) {
	s.log.Warn(msg)
	s.push(Status{Message: msg, Warning: true})
}

// fail records err on the status line and returns it. Failures never
// change the stack.
func (s *Session) fail(err error) error {
	s.log.Debug("command failed", "err", err)
	s.push(Status{Message: err.Error(), Err: err})
	return err
}

// Reject records an input error raised by the interface before any verb
// ran, such as an unparsable prompt value.
func (s *Session) Reject(err error) {
	s.fail(err)
}

func (s *Session) push(st Status) {
	st.At = time.Now()
	s.history = append(s.history, st)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
}

// Poll merges finished background work into the stack. It never blocks
// and reports whether anything changed.
func (s *Session) Poll() bool {
	events := s.jobs.Poll(s.stack)
	for _, ev := range events {
		if ev.Message == "" {
			continue
		}
		s.push(Status{Message: ev.Message, Warning: ev.Warning, Err: ev.Err})
	}
	return len(events) > 0
}

// Pop closes the current view and returns the number left. A view still
// loading has its reader stopped on the next Poll.
func (s *Session) Pop() int {
	if v := s.stack.Pop(); v != nil {
		s.log.Debug("closed view", "view", v.ID, "name", v.Name)
	}
	return s.stack.Len()
}

// Swap exchanges the top two views.
func (s *Session) Swap() bool { return s.stack.Swap() }

// Dup pushes a copy of the current view with a fresh identity.
func (s *Session) Dup() error {
	if s.stack.Dup() == nil {
		return s.fail(ErrNoView)
	}
	return nil
}

func (s *Session) top() (*view.View, error) {
	v := s.stack.Top()
	if v == nil {
		return nil, s.fail(ErrNoView)
	}
	return v, nil
}

func (s *Session) newView(name string, kind view.Derivation, parent *view.View) *view.View {
	v := view.New(name, nil, s.cfg.View.RenderPad)
	v.Kind = kind
	if parent != nil {
		v.Parent = &view.Parent{ID: parent.ID, Rows: parent.Rows(), Name: parent.Name}
	}
	return v
}
