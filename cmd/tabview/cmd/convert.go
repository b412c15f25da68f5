package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/tabview/internal/egest"
)

var (
	convertRaw         bool
	convertRowsPerFile int64
	convertCompression string
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output.parquet>",
	Short: "Convert delimited text to Parquet",
	Long: `Convert a CSV or TSV file, optionally gzip, zstd or lz4 compressed, to
Parquet without loading it into memory. Column types are inferred from
the first chunk; later values that do not fit become null and are
reported on stderr. Use --raw to keep every column as text.

With --rows-per-file the output rolls over to numbered files
(out_0001.parquet, out_0002.parquet, ...).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, dst := args[0], args[1]
		if !strings.EqualFold(filepath.Ext(dst), ".parquet") {
			return fmt.Errorf("output must be a .parquet file: %s", dst)
		}

		opts := cfg.EgestOptions()
		opts.Logger = logger
		if cmd.Flags().Changed("raw") {
			opts.Raw = convertRaw
		}
		if cmd.Flags().Changed("rows-per-file") {
			opts.RowsPerFile = convertRowsPerFile
		}
		if cmd.Flags().Changed("compression") {
			opts.Compression = convertCompression
		}

		p := &convertProgress{out: cmd.ErrOrStderr()}
		res, err := egest.Run(cmd.Context(), src, dst, opts, p.report)
		p.finish()
		if err != nil {
			return fmt.Errorf("convert %s: %w", src, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Wrote %s rows to %d file(s)\n", humanize.Comma(res.Rows), len(res.Files))
		for _, f := range res.Files {
			size := "?"
			if info, err := os.Stat(f); err == nil {
				size = humanize.Bytes(uint64(info.Size()))
			}
			fmt.Fprintf(out, "  %s (%s)\n", f, size)
		}
		if n := len(res.Warnings); n > 0 {
			fmt.Fprintf(out, "%d column(s) had values that did not fit and were written as null\n", n)
		}
		return nil
	},
}

// convertProgress rewrites one stderr line with the running row count and
// prints cast diagnostics on their own lines.
type convertProgress struct {
	out     io.Writer
	pending bool
}

func (p *convertProgress) report(pr egest.Progress) {
	if pr.Warning {
		p.finish()
		fmt.Fprintf(p.out, "warning: %s\n", pr.Message)
		return
	}
	fmt.Fprintf(p.out, "\r%s", pr.Message)
	p.pending = true
}

// finish ends an in-place progress line.
func (p *convertProgress) finish() {
	if p.pending {
		fmt.Fprintln(p.out)
		p.pending = false
	}
}

func init() {
	convertCmd.Flags().BoolVar(&convertRaw, "raw", false, "skip type inference and write every column as text")
	convertCmd.Flags().Int64Var(&convertRowsPerFile, "rows-per-file", 0, "roll over to a new file after this many rows (0 = single file)")
	convertCmd.Flags().StringVar(&convertCompression, "compression", "snappy", "parquet codec: snappy, zstd, gzip, lz4, none")
	rootCmd.AddCommand(convertCmd)
}
