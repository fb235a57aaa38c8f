package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print trade receipts from the ledger, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, _, container, _, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer container.Close()

			trades, err := container.TradeLogRepo.GetHistory(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), trades)
			}
			return writeHistory(cmd.OutOrStdout(), trades)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of receipts (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// writeHistory prints receipts as a table
func writeHistory(w io.Writer, trades []domain.TradeLog) error {
	if len(trades) == 0 {
		_, err := fmt.Fprintln(w, "No trades recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tVENUE\tSIDE\tPAIR\tAMOUNT\tPRICE\tSTATUS\tTX")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\t%.2f\t%s\t%s\n",
			t.Timestamp.UTC().Format(time.RFC3339), t.Venue, t.Side, t.Pair,
			t.Amount, t.Price, t.Status, t.TxHash)
	}
	return tw.Flush()
}
