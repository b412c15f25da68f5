package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wesm/tabview/internal/view"
)

// handleKeyPress handles keys while no prompt is open.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	v := m.sess.Top()
	if v == nil {
		m.quitting = true
		return m, tea.Quit
	}

	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "q", "esc":
		if m.sess.Pop() == 0 {
			m.quitting = true
			return m, tea.Quit
		}
	case "?":
		m.showHelp = true

	// Navigation
	case "up", "k":
		v.MoveCursor(-1, 0)
	case "down", "j":
		v.MoveCursor(1, 0)
	case "left", "h":
		v.MoveCursor(0, -1)
	case "right", "l":
		v.MoveCursor(0, 1)
	case "pgup", "ctrl+u":
		v.MoveCursor(-int64(m.pageSize), 0)
	case "pgdown", "ctrl+d":
		v.MoveCursor(int64(m.pageSize), 0)
	case "home", "g":
		v.MoveCursor(-v.Cursor.Row, 0)
	case "end", "G":
		v.MoveCursor(v.Rows(), 0)

	// Selection
	case " ":
		v.ToggleRow(v.Cursor.Row)
		v.MoveCursor(1, 0)
	case "c":
		v.ToggleColumn(v.CurrentColumn())
	case "u":
		v.ClearSelection()

	// Stack
	case "tab":
		m.sess.Swap()
	case "D":
		_ = m.sess.Dup()

	// Column operations
	case "s":
		_ = m.sess.Sort(v.CurrentColumn(), false)
	case "S":
		_ = m.sess.Sort(v.CurrentColumn(), true)
	case "d":
		_ = m.sess.DropColumns(m.targetColumns(v)...)
	case "<":
		if col := v.CurrentColumn(); col != "" {
			_ = m.sess.MoveColumn(col, int(v.Cursor.Col)-1)
			v.MoveCursor(0, -1)
		}
	case ">":
		if col := v.CurrentColumn(); col != "" {
			_ = m.sess.MoveColumn(col, int(v.Cursor.Col)+1)
			v.MoveCursor(0, 1)
		}
	case "!":
		_ = m.sess.ToggleKey(v.CurrentColumn())

	// Aggregates
	case "F":
		_ = m.sess.Frequency(v.CurrentColumn())
	case "I":
		_ = m.sess.Profile(m.ctx)
	case "enter":
		if v.Kind == view.Frequency {
			_ = m.sess.FrequencyEnter(m.ctx)
		}

	// Prompts
	case "/":
		return m.openPrompt(promptFilter, "")
	case "w":
		return m.openPrompt(promptSave, "")
	case "o":
		return m.openPrompt(promptOpen, "")
	case "P":
		return m.openPrompt(promptPivot, v.CurrentColumn()+" ")
	case "*":
		return m.openPrompt(promptSelect, strings.Join(v.Source.Columns(), " "))
	case "R":
		if col := v.CurrentColumn(); col != "" {
			m.promptColumn = col
			return m.openPrompt(promptRename, "")
		}
	case "T":
		return m.openPrompt(promptTake, "")
	}
	return m, nil
}

// targetColumns returns the selected columns, or the cursor column when
// none is selected.
func (m Model) targetColumns(v *view.View) []string {
	if cols := v.SelectedColumns(); len(cols) > 0 {
		return cols
	}
	if c := v.CurrentColumn(); c != "" {
		return []string{c}
	}
	return nil
}

func (m Model) openPrompt(kind promptKind, initial string) (tea.Model, tea.Cmd) {
	m.prompt = kind
	m.input.Prompt = kind.label()
	m.input.SetValue(initial)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

// handlePromptKeys handles keys while the prompt line is open.
func (m Model) handlePromptKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "esc":
		m.closePrompt()
		return m, nil
	case "enter":
		kind, value := m.prompt, strings.TrimSpace(m.input.Value())
		column := m.promptColumn
		m.closePrompt()
		if value != "" {
			m.runPrompt(kind, column, value)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) closePrompt() {
	m.prompt = promptNone
	m.promptColumn = ""
	m.input.Blur()
	m.input.SetValue("")
}

// runPrompt dispatches a committed prompt. Errors are already on the
// session status line.
func (m *Model) runPrompt(kind promptKind, column, value string) {
	switch kind {
	case promptFilter:
		_ = m.sess.Filter(m.ctx, value)
	case promptSave:
		_ = m.sess.Save(m.ctx, value)
	case promptOpen:
		_ = m.sess.Open(strings.Fields(value)...)
	case promptSelect:
		_ = m.sess.SelectColumns(strings.Fields(value)...)
	case promptRename:
		_ = m.sess.Rename(column, value)
	case promptTake:
		n, err := strconv.ParseInt(strings.ReplaceAll(value, ",", ""), 10, 64)
		if err != nil {
			m.sess.Reject(fmt.Errorf("take: %q is not a row count", value))
			return
		}
		_ = m.sess.Take(n)
	case promptPivot:
		f := strings.Fields(value)
		for len(f) < 3 {
			f = append(f, "")
		}
		if f[2] == "" {
			f[2] = "count"
		}
		_ = m.sess.Pivot(nil, f[0], f[1], f[2])
	}
}
