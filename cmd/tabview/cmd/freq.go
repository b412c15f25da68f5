package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	freqWhere string
	freqLimit int
)

var freqCmd = &cobra.Command{
	Use:   "freq <path> <column>",
	Short: "Print the frequency table of a column",
	Long: `Count the rows for each distinct value of column, most frequent
first, with min, max and sum of the other numeric columns. --where takes
a SQL predicate applied before counting.

Compressed sources are read to the end first. A source cut short at the
memory budget cannot be counted.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, column := args[0], args[1]

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx := cmd.Context()
		op, err := openSource(ctx, eng, path)
		if err != nil {
			return err
		}
		freq, err := op.Source.Frequency(ctx, column, nil, freqWhere)
		if err != nil {
			return fmt.Errorf("frequency of %s: %w", column, err)
		}
		if freqLimit > 0 && freq.Len() > freqLimit {
			freq = freq.Slice(0, freqLimit)
		}
		writeTable(cmd.OutOrStdout(), freq, cfg.View.FloatDecimals)
		return nil
	},
}

func init() {
	freqCmd.Flags().StringVar(&freqWhere, "where", "", "SQL predicate applied before counting")
	freqCmd.Flags().IntVar(&freqLimit, "limit", 0, "print at most this many values (0 = all)")
	rootCmd.AddCommand(freqCmd)
}
