package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wesm/tabview/internal/source"
	"github.com/wesm/tabview/internal/textutil"
)

var statsCmd = &cobra.Command{
	Use:   "stats <path>...",
	Short: "Show the schema and row count of a source",
	Long: `Show the column names, types and row count of a source. Parquet,
JSON and large CSV files are counted by the engine without reading rows
into memory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		op, err := openSource(cmd.Context(), eng, args...)
		if err != nil {
			return err
		}
		src := op.Source

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Source: %s (%s)\n", op.Name, src.Kind())
		rows, err := src.RowCount()
		var partial *source.PartialError
		switch {
		case errors.As(err, &partial):
			fmt.Fprintf(out, "  Rows:    %s (truncated at the memory budget)\n", textutil.Commify(src.Buffered()))
		case err != nil:
			return fmt.Errorf("count rows: %w", err)
		default:
			fmt.Fprintf(out, "  Rows:    %s\n", textutil.Commify(rows))
		}
		schema := src.Schema()
		fmt.Fprintf(out, "  Columns: %d\n\n", len(schema))

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tCOLUMN\tTYPE")
		fmt.Fprintln(w, "─\t──────\t────")
		for i, f := range schema {
			typ := f.Type.String()
			if f.Native != "" {
				typ = f.Native
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, f.Name, typ)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
