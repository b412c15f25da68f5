package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/wesm/tabview/internal/session"
	"github.com/wesm/tabview/internal/table"
	"github.com/wesm/tabview/internal/tui"
)

var viewRows int

var viewCmd = &cobra.Command{
	Use:   "view <path>...",
	Short: "Browse one or more files interactively",
	Long: `Open the interactive viewer on the given files. Several paths or a
glob open as one disk-backed set and must share a schema. Append
:table to a SQLite path to pick a table.

Navigation:
  ↑/k, ↓/j    Move up/down
  ←/h, →/l    Move left/right
  PgUp/PgDn   Page up/down
  /           Filter with a SQL predicate
  F           Frequency of the current column
  I           Profile every column
  P           Pivot
  w           Save the current view
  q           Close the current view
  ?           All keys

When stdout is not a terminal the first rows are printed as text instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runView,
}

func runView(cmd *cobra.Command, args []string) error {
	if !interactive() {
		return printWindow(cmd, args)
	}

	// The terminal belongs to the interface; log to a file instead.
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	fileLogger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}))

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := cmd.Context()
	budget := cfg.MemoryBudget()
	fileLogger.Info("session start", "paths", args, "mem_limit", budget.Limit)
	sess := session.New(ctx, session.Options{
		Config: cfg,
		Engine: eng,
		Logger: fileLogger,
		Budget: &budget,
	})
	defer sess.Close()

	if err := sess.Open(args...); err != nil {
		return err
	}
	if err := tui.Run(ctx, sess, tui.Options{Version: Version, Decimals: cfg.View.FloatDecimals}); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// interactive reports whether the viewer can take the terminal.
var interactive = func() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printWindow writes the first viewRows rows of args as aligned text.
func printWindow(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := cmd.Context()
	op, err := openSource(ctx, eng, args...)
	if err != nil {
		return err
	}
	page, err := op.Source.FetchWindow(ctx, "", 0, int64(max(viewRows, 0)))
	if err != nil {
		return fmt.Errorf("fetch rows: %w", err)
	}
	writeTable(cmd.OutOrStdout(), page.Rows, cfg.View.FloatDecimals)
	return nil
}

// writeTable prints t with a header and a rule under it.
func writeTable(out io.Writer, t *table.Table, decimals int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	names := t.Names()
	rule := make([]string, len(names))
	for i, n := range names {
		rule[i] = strings.Repeat("─", max(1, len([]rune(n))))
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))
	fmt.Fprintln(w, strings.Join(rule, "\t"))
	row := make([]string, len(names))
	for r := 0; r < t.Len(); r++ {
		for c := range names {
			row[c] = t.Cell(r, c, decimals)
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

func init() {
	viewCmd.Flags().IntVar(&viewRows, "rows", 20, "rows printed when output is not a terminal")
	rootCmd.AddCommand(viewCmd)
}
