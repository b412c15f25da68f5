package tui

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/wesm/tabview/internal/config"
	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/session"
	"github.com/wesm/tabview/internal/testutil"
	"github.com/wesm/tabview/internal/view"
)

// ansiStart is the escape sequence prefix found in styled terminal output.
const ansiStart = "\x1b["

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile sets lipgloss to ANSI color output for tests that assert
// on styled output. It acquires colorProfileMu to prevent data races with
// parallel tests and restores the original profile via t.Cleanup.
func forceColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

const peopleCSV = "name,age,city\nada,36,london\ngrace,85,nyc\nlinus,54,helsinki\nmargaret,33,boston\n"

// newTestModel opens peopleCSV in a session backed by a real engine and
// sizes the model to 80x24.
func newTestModel(t *testing.T) Model {
	t.Helper()
	eng, err := query.NewDuckDBEngine(0)
	testutil.MustNoErr(t, err, "NewDuckDBEngine")
	sess := session.New(context.Background(), session.Options{
		Config: config.Default(t.TempDir()),
		Engine: eng,
		Budget: &config.Budget{},
	})
	t.Cleanup(func() {
		sess.Close()
		eng.Close()
	})
	path := testutil.WriteFile(t, t.TempDir(), "people.csv", []byte(peopleCSV))
	testutil.MustNoErr(t, sess.Open(path), "Open")

	m := New(context.Background(), sess, Options{Version: "test"})
	return update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m = update(t, m, keyRunes(string(r)))
	}
	return m
}

// tickUntil sends ticks until cond holds.
func tickUntil(t *testing.T, m Model, cond func(Model) bool) Model {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		m = update(t, m, tickMsg(time.Now()))
		if cond(m) {
			return m
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met; status = %+v", m.sess.Status())
	return m
}

func TestView_RendersTable(t *testing.T) {
	m := newTestModel(t)
	out := stripANSI(m.View())
	testutil.AssertContainsAll(t, out, []string{"tabview test", "people.csv", "name", "age", "city", "grace", "helsinki", "1/4"})

	lines := strings.Split(out, "\n")
	if len(lines) != 24 {
		t.Errorf("rendered %d lines, want 24", len(lines))
	}
	for i, line := range lines {
		if w := lipgloss.Width(line); w > 80 {
			t.Errorf("line %d is %d cells wide", i, w)
		}
	}
}

func TestView_CursorRowIsStyled(t *testing.T) {
	forceColorProfile(t)
	m := newTestModel(t)
	out := m.View()
	if !strings.Contains(out, ansiStart) {
		t.Error("expected styled output")
	}
}

func TestKeys_Navigation(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = update(t, m, keyRunes("j"))
	m = update(t, m, keyRunes("l"))
	v := m.sess.Top()
	if v.Cursor.Row != 2 || v.CurrentColumn() != "age" {
		t.Errorf("cursor = %+v column %q", v.Cursor, v.CurrentColumn())
	}
	m = update(t, m, keyRunes("G"))
	if v.Cursor.Row != 3 {
		t.Errorf("G row = %d, want 3", v.Cursor.Row)
	}
	if !strings.Contains(stripANSI(m.View()), "4/4") {
		t.Error("position not shown on status line")
	}
}

func TestUpdate_ScrollsSoViewOnlyReads(t *testing.T) {
	m := newTestModel(t)
	// Height 6 leaves a one-row table.
	m = update(t, m, tea.WindowSizeMsg{Width: 14, Height: 6})
	m = update(t, m, keyRunes("G"))
	m = update(t, m, keyRunes("l"))
	m = update(t, m, keyRunes("l"))

	v := m.sess.Top()
	if v.Cursor.TopRow != 3 {
		t.Errorf("TopRow after G = %d, want 3", v.Cursor.TopRow)
	}
	if v.Cursor.Left == 0 {
		t.Error("Left not advanced to keep the city column on a narrow screen")
	}
	before := v.Cursor
	out := stripANSI(m.View())
	_ = m.View()
	if v.Cursor != before {
		t.Errorf("View changed cursor %+v -> %+v", before, v.Cursor)
	}
	testutil.AssertContainsAll(t, out, []string{"boston"})
	if strings.Contains(out, "london") {
		t.Error("scrolled-off row still rendered")
	}
}

func TestKeys_SortAndSelect(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, keyRunes("l"))
	m = update(t, m, keyRunes("S"))
	v := m.sess.Top()
	if got := v.Source.Table().Cell(0, 0, -1); got != "grace" {
		t.Errorf("first row after sort by age desc = %q", got)
	}

	m = update(t, m, keyRunes("c"))
	m = update(t, m, keyRunes("d"))
	testutil.AssertStrings(t, v.Source.Columns(), "name", "city")
}

func TestPrompt_FilterPushesView(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, keyRunes("/"))
	if m.prompt != promptFilter {
		t.Fatal("filter prompt not open")
	}
	m = typeText(t, m, "age > 50")
	if !strings.Contains(stripANSI(m.View()), "filter: age > 50") {
		t.Error("prompt not rendered")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.prompt != promptNone {
		t.Error("prompt still open")
	}
	if m.sess.Stack().Len() != 2 || m.sess.Top().Rows() != 2 {
		t.Errorf("stack = %v", m.sess.Stack().Names())
	}

	m = update(t, m, keyRunes("q"))
	if m.sess.Stack().Len() != 1 || m.quitting {
		t.Error("q should close only the filtered view")
	}
	m = update(t, m, keyRunes("q"))
	if !m.quitting {
		t.Error("closing the last view should quit")
	}
}

func TestPrompt_EscCancels(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, keyRunes("/"))
	m = typeText(t, m, "age > 1")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.prompt != promptNone || m.sess.Stack().Len() != 1 {
		t.Error("esc should cancel without filtering")
	}
}

func TestPrompt_RenameAndTake(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, keyRunes("R"))
	if m.prompt != promptRename || m.promptColumn != "name" {
		t.Fatalf("rename prompt = %v on %q", m.prompt, m.promptColumn)
	}
	m = typeText(t, m, "who")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	testutil.AssertStrings(t, m.sess.Top().Source.Columns(), "who", "age", "city")

	m = update(t, m, keyRunes("T"))
	m = typeText(t, m, "many")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.sess.Stack().Len() != 1 || m.sess.Status().Err == nil {
		t.Errorf("bad count: stack len %d, status %+v", m.sess.Stack().Len(), m.sess.Status())
	}

	m = update(t, m, keyRunes("T"))
	m = typeText(t, m, "2")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.sess.Stack().Len() != 2 || m.sess.Top().Rows() != 2 {
		t.Errorf("take: stack = %v", m.sess.Stack().Names())
	}
}

func TestTick_MergesFrequency(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m = update(t, m, keyRunes("F"))

	freq := m.sess.Top()
	if freq.Kind != view.Frequency || !freq.Placeholder {
		t.Fatalf("expected a frequency placeholder, got %s", freq.Kind)
	}
	m = tickUntil(t, m, func(Model) bool { return !freq.Placeholder })
	if freq.Rows() != 4 {
		t.Errorf("frequency rows = %d, want 4", freq.Rows())
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if top := m.sess.Top(); top.Kind != view.Filtered || top.Rows() != 1 {
		t.Errorf("enter on frequency row gave %s with %d rows", top.Kind, top.Rows())
	}
}

func TestView_HelpOverlay(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, keyRunes("?"))
	if !strings.Contains(stripANSI(m.View()), "toggle key column") {
		t.Error("help not shown")
	}
	m = update(t, m, keyRunes("x"))
	if m.showHelp {
		t.Error("any key should close help")
	}
}
