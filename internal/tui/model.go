// Package tui provides the terminal user interface for tabview.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wesm/tabview/internal/session"
)

// tickInterval bounds how long a finished background result waits before
// it is merged into the stack.
const tickInterval = 100 * time.Millisecond

// spinnerFrames are shown on the status line while background work runs.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Options configuration for TUI.
type Options struct {
	Version string
	// Decimals is the float precision used for display.
	Decimals int
}

// promptKind is the command the prompt line is collecting input for.
type promptKind int

const (
	promptNone promptKind = iota
	promptFilter
	promptSave
	promptOpen
	promptPivot
	promptSelect
	promptRename
	promptTake
)

func (p promptKind) label() string {
	switch p {
	case promptFilter:
		return "filter: "
	case promptSave:
		return "save as: "
	case promptOpen:
		return "open: "
	case promptPivot:
		return "pivot (column value agg): "
	case promptSelect:
		return "columns: "
	case promptRename:
		return "rename to: "
	case promptTake:
		return "keep first rows: "
	}
	return ""
}

// Model is the main TUI model following the Elm architecture. The session
// it wraps is only touched from Update, which bubbletea runs on one
// goroutine.
type Model struct {
	ctx      context.Context
	sess     *session.Session
	version  string
	decimals int

	// Terminal dimensions
	width    int
	height   int
	pageSize int

	prompt promptKind
	input  textinput.Model
	// promptColumn is the column a rename prompt was opened on.
	promptColumn string

	showHelp     bool
	spinnerFrame int
	quitting     bool
}

// tickMsg drives background polling and the spinner.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// New creates a new TUI model over sess.
func New(ctx context.Context, sess *session.Session, opts Options) Model {
	ti := textinput.New()
	ti.CharLimit = 1000
	ti.Width = 60
	if opts.Decimals <= 0 {
		opts.Decimals = 3
	}
	return Model{
		ctx:      ctx,
		sess:     sess,
		version:  opts.Version,
		decimals: opts.Decimals,
		pageSize: 20,
		input:    ti,
	}
}

// Run takes the terminal and runs the interface until the last view is
// closed or ctx is cancelled.
func Run(ctx context.Context, sess *session.Session, opts Options) error {
	p := tea.NewProgram(New(ctx, sess, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model. After every message the top view's
// viewport is moved to keep the cursor visible, so View only reads it.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	if nm, ok := next.(Model); ok {
		nm.settle()
		return nm, cmd
	}
	return next, cmd
}

func (m Model) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.handlePromptKeys(msg)
		}
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = max(0, msg.Width)
		m.height = max(0, msg.Height)
		// Reserve space for: title bar (1) + table header (1) + separator (1) + status (1) + footer (1) = 5
		m.pageSize = max(1, m.height-5)
		return m, nil

	case tickMsg:
		m.sess.Poll()
		if m.sess.Busy() {
			m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		}
		return m, tick()
	}
	return m, nil
}

// settle scrolls the top view so the cursor row and column fit the
// terminal.
func (m Model) settle() {
	v := m.sess.Top()
	if v == nil || m.width == 0 {
		return
	}
	lo, hi := v.Scroll(int64(m.pageSize))
	rows, _, err := v.Cache().Rows(m.ctx, v.Source, lo, hi)
	if err != nil || rows.Width() == 0 {
		return
	}
	v.Cursor.Left = int64(m.columnLayout(v, rows).first)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}
	return m.renderView()
}
