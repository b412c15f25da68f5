package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/tabview/internal/egest"
	"github.com/wesm/tabview/internal/testutil"
)

// newTestRootCmd creates a fresh root command for testing, avoiding mutation
// of the global rootCmd which could cause race conditions in parallel tests.
func newTestRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tabview",
		Short: "Terminal viewer for tabular data",
	}
}

// TestExecuteContext_CancellationPropagates verifies that context cancellation
// from ExecuteContext propagates to command handlers.
func TestExecuteContext_CancellationPropagates(t *testing.T) {
	var contextWasCancelled atomic.Bool

	// Signal when the command handler has started waiting on ctx.Done()
	handlerStarted := make(chan struct{})

	testRoot := newTestRootCmd()
	testCmd := &cobra.Command{
		Use:   "test-cancel",
		Short: "Test command for context cancellation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			close(handlerStarted)
			select {
			case <-ctx.Done():
				contextWasCancelled.Store(true)
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		},
	}
	testRoot.AddCommand(testCmd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		testRoot.SetArgs([]string{"test-cancel"})
		done <- testRoot.ExecuteContext(ctx)
	}()

	select {
	case <-handlerStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("command handler did not start in time")
	}

	// Simulates SIGINT/SIGTERM
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled error, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command did not return after context cancellation")
	}
	if !contextWasCancelled.Load() {
		t.Error("handler did not observe cancellation")
	}
}

const scoresCSV = "name,team,score\nada,red,10\ngrace,blue,25\nlinus,red,7\nmargaret,red,31\n"

// runRoot executes the global root command with args against a fresh home
// directory and returns everything written to stdout.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := interactive
	interactive = func() bool { return false }
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--home", t.TempDir()))
	t.Cleanup(func() {
		interactive = prev
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "scores.csv", []byte(scoresCSV))
	out, err := runRoot(t, "stats", path)
	testutil.MustNoErr(t, err, "stats")
	testutil.AssertContainsAll(t, out, []string{"scores.csv", "memory", "Rows:    4", "Columns: 3", "score", "i64"})
}

func TestStatsCommand_CompressedStreamIsDrained(t *testing.T) {
	content := testutil.CSVRows("id,v", 500, func(i int) []string {
		return []string{testutil.Itoa(i), testutil.Itoa(i * 2)}
	})
	path := testutil.WriteGzip(t, t.TempDir(), "big.csv.gz", content)
	out, err := runRoot(t, "stats", path)
	testutil.MustNoErr(t, err, "stats")
	if !strings.Contains(out, "Rows:    500") {
		t.Errorf("stats output:\n%s", out)
	}
}

func TestFreqCommand(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "scores.csv", []byte(scoresCSV))
	out, err := runRoot(t, "freq", path, "team", "--where", "score > 8")
	testutil.MustNoErr(t, err, "freq")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("want header, rule and 2 values, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[2], "red") || !strings.HasPrefix(lines[3], "blue") {
		t.Errorf("values out of order:\n%s", out)
	}
}

func TestFreqCommand_UnknownColumn(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "scores.csv", []byte(scoresCSV))
	if _, err := runRoot(t, "freq", path, "nope"); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestViewPrintsWindowWhenNotTerminal(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "scores.csv", []byte(scoresCSV))
	out, err := runRoot(t, "view", path, "--rows", "2")
	testutil.MustNoErr(t, err, "view")
	testutil.AssertContainsAll(t, out, []string{"name", "team", "ada", "grace"})
	if strings.Contains(out, "linus") {
		t.Errorf("--rows 2 printed more rows:\n%s", out)
	}
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "scores.csv", []byte(scoresCSV))
	dst := filepath.Join(dir, "scores.parquet")

	out, err := runRoot(t, "convert", src, dst)
	testutil.MustNoErr(t, err, "convert")
	testutil.AssertContainsAll(t, out, []string{"Wrote 4 rows to 1 file(s)", dst})
	testutil.MustExist(t, dst)

	out, err = runRoot(t, "stats", dst)
	testutil.MustNoErr(t, err, "stats parquet")
	testutil.AssertContainsAll(t, out, []string{"disk", "Rows:    4"})
}

func TestConvertCommand_RejectsNonParquetOutput(t *testing.T) {
	src := testutil.WriteFile(t, t.TempDir(), "scores.csv", []byte(scoresCSV))
	if _, err := runRoot(t, "convert", src, filepath.Join(t.TempDir(), "out.csv")); err == nil {
		t.Fatal("expected error for .csv output")
	}
}

func TestConvertProgress(t *testing.T) {
	var buf bytes.Buffer
	p := &convertProgress{out: &buf}
	p.report(egest.Progress{Rows: 100, Message: "Written 100 rows"})
	p.report(egest.Progress{Message: "column x: 3 values set to null", Warning: true})
	p.report(egest.Progress{Rows: 200, Message: "Written 200 rows"})
	p.finish()
	want := "\rWritten 100 rows\nwarning: column x: 3 values set to null\n\rWritten 200 rows\n"
	if got := buf.String(); got != want {
		t.Errorf("progress output = %q, want %q", got, want)
	}
}
