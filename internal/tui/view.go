package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wesm/tabview/internal/table"
	"github.com/wesm/tabview/internal/textutil"
	"github.com/wesm/tabview/internal/view"
)

// Column width limits in terminal cells.
const (
	minColWidth = 3
	maxColWidth = 32
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgAlt    = lipgloss.AdaptiveColor{Light: "#f0f0f0", Dark: "#181818"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}

	// Title bar style - bold with visible background
	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	// Spinner style - NOT faint so it's visible
	spinnerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	// Key column headers are underlined as well
	keyHeaderStyle = tableHeaderStyle.Underline(true)

	separatorStyle = lipgloss.NewStyle().
			Faint(true).
			Background(bgBase)

	cursorRowStyle = lipgloss.NewStyle().
			Background(bgCursor)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	altRowStyle = lipgloss.NewStyle().
			Background(bgAlt)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	// Warnings use the amber flash color
	warningStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"}).
			Background(bgBase)

	loadingStyle = lipgloss.NewStyle().
			Italic(true).
			Background(bgBase)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2).
			Background(bgBase)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true)
)

var helpLines = []string{
	"↑↓←→ hjkl  move          g/G      first/last row",
	"/          filter        F        frequency of column",
	"I          profile       P        pivot",
	"s/S        sort asc/desc d        drop column(s)",
	"< >        move column   !        toggle key column",
	"*          select cols   space/c  select row/column",
	"R          rename column T        keep first N rows",
	"enter      filter by frequency row(s)",
	"w          save          o        open",
	"tab        swap views    D        duplicate view",
	"q/esc      close view    ctrl+c   quit",
}

// renderView lays out title, table, status and footer.
func (m Model) renderView() string {
	v := m.sess.Top()
	if v == nil {
		return "No views open"
	}
	body := m.tableView(v)
	if m.showHelp {
		body = m.helpView()
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s",
		m.headerView(),
		body,
		m.statusView(v),
		m.footerView(),
	)
}

// headerView renders the title bar with the stack breadcrumb.
func (m Model) headerView() string {
	title := "tabview"
	if m.version != "" {
		title += " " + m.version
	}
	crumbs := strings.Join(m.sess.Stack().Names(), " › ")
	return titleBarStyle.Render(padRight(title+" │ "+truncateRunes(crumbs, max(0, m.width-lipgloss.Width(title)-5)), max(0, m.width-2)))
}

// layout is the set of visible columns and their widths.
type layout struct {
	first  int
	widths []int
}

// columnLayout picks the visible columns starting at v.Cursor.Left, moved
// just enough to keep the cursor column on screen. It does not modify v.
func (m Model) columnLayout(v *view.View, rows *table.Table) layout {
	n := rows.Width()
	widths := make([]int, n)
	for c := 0; c < n; c++ {
		col := rows.Column(c)
		w := cellWidth(col.Name)
		for r := 0; r < rows.Len() && w < maxColWidth; r++ {
			w = max(w, cellWidth(rows.Cell(r, c, m.decimals)))
		}
		widths[c] = min(max(w, minColWidth), maxColWidth)
	}

	cur := int(v.Cursor.Col)
	first := int(v.Cursor.Left)
	if cur < first {
		first = cur
	}
	for first < cur && span(widths[first:cur+1]) > m.width {
		first++
	}

	end := first
	for end < n && span(widths[first:end+1]) <= m.width {
		end++
	}
	if end == first && end < n {
		end++
	}
	return layout{first: first, widths: widths[:end]}
}

// span is the width of adjacent columns with one cell of separation.
func span(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w + 1
	}
	return total
}

// tableView renders the visible window of the current view.
func (m Model) tableView(v *view.View) string {
	lo, hi := v.Window(int64(m.pageSize))
	rows, incomplete, err := v.Cache().Rows(m.ctx, v.Source, lo, hi)
	if err != nil {
		return m.fill([]string{errorStyle.Render(truncateRunes(err.Error(), m.width))})
	}
	if rows.Width() == 0 {
		return m.fill(nil)
	}
	lay := m.columnLayout(v, rows)
	keys := v.KeyCount

	sep := func(c int) string {
		if c == keys-1 {
			return "│"
		}
		return " "
	}

	var header, rule strings.Builder
	for c := lay.first; c < len(lay.widths); c++ {
		name := rows.Column(c).Name
		style := tableHeaderStyle
		if c < keys {
			style = keyHeaderStyle
		}
		if v.SelectedCols[name] {
			name = "*" + name
		}
		header.WriteString(style.Render(padRight(truncateRunes(name, lay.widths[c]), lay.widths[c])))
		header.WriteString(sep(c))
		rule.WriteString(strings.Repeat("─", lay.widths[c]) + sep(c))
	}

	lines := []string{padRight(header.String(), m.width), separatorStyle.Render(padRight(rule.String(), m.width))}
	for r := 0; r < rows.Len(); r++ {
		abs := lo + int64(r)
		var line strings.Builder
		for c := lay.first; c < len(lay.widths); c++ {
			cell := truncateRunes(rows.Cell(r, c, m.decimals), lay.widths[c])
			if rows.Column(c).Type.Numeric() {
				cell = padLeft(cell, lay.widths[c])
			} else {
				cell = padRight(cell, lay.widths[c])
			}
			line.WriteString(cell)
			line.WriteString(sep(c))
		}
		text := padRight(line.String(), m.width)
		switch {
		case abs == v.Cursor.Row:
			text = cursorRowStyle.Render(text)
		case v.SelectedRows[abs]:
			text = selectedRowStyle.Render(text)
		case r%2 == 1:
			text = altRowStyle.Render(text)
		default:
			text = normalRowStyle.Render(text)
		}
		lines = append(lines, text)
	}
	if incomplete {
		lines = append(lines, loadingStyle.Render(padRight("  loading more rows...", m.width)))
	}
	return m.fill(lines)
}

// fill pads lines to the table area height.
func (m Model) fill(lines []string) string {
	height := m.pageSize + 2
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := normalRowStyle.Render(strings.Repeat(" ", m.width))
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

// statusView renders the latest session message with a spinner and the
// cursor position right-aligned.
func (m Model) statusView(v *view.View) string {
	st := m.sess.Status()
	msg := st.Message

	pos := fmt.Sprintf("%s/%s", textutil.Commify(v.Cursor.Row+1), textutil.Commify(v.Rows()))
	switch {
	case v.Placeholder:
		pos += " computing"
	case v.Source.Loading():
		pos += "+ loading"
	case v.Source.Truncated():
		pos += " truncated"
	}
	if m.sess.Busy() {
		pos = spinnerStyle.Render(spinnerFrames[m.spinnerFrame]) + " " + pos
	}

	contentWidth := max(1, m.width-2)
	gap := contentWidth - lipgloss.Width(pos) - 1
	msg = truncateRunes(msg, max(0, gap))
	switch {
	case st.Err != nil:
		msg = errorStyle.Render(msg)
	case st.Warning:
		msg = warningStyle.Render(msg)
	}
	return statsStyle.Render(padRight(msg, gap) + " " + pos)
}

// footerView renders the prompt line when open, key hints otherwise.
func (m Model) footerView() string {
	if m.prompt != promptNone {
		return padRight(m.input.View(), m.width)
	}
	keys := []string{"/ filter", "F freq", "I profile", "w save", "q back", "? help"}
	return footerStyle.Render(padRight(strings.Join(keys, " │ "), max(0, m.width-2)))
}

// helpView renders the key reference.
func (m Model) helpView() string {
	content := modalTitleStyle.Render("Keys") + "\n\n" + strings.Join(helpLines, "\n")
	box := modalStyle.Render(content)
	return lipgloss.Place(m.width, m.pageSize+2, lipgloss.Center, lipgloss.Center, box)
}
