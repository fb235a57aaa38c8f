package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch prices once and print the rebalance evaluation without trading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, log, container, _, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer container.Close()

			settings := container.SettingsService.Current()
			priced, err := container.PriceService.Fetch(ctx, container.Book.Snapshot(), settings.Venue)
			if err != nil {
				log.Warn().Err(err).Msg("Price fetch failed, evaluating stored prices")
			} else {
				container.Book.AdoptPrices(priced)
			}

			assets := container.Book.Snapshot()
			result := container.Engine.Evaluate(assets, settings.DeltaThreshold)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]interface{}{
					"portfolio": portfolio.Summarize(assets),
					"result":    result,
					"threshold": settings.DeltaThreshold,
					"venue":     settings.Venue,
				})
			}
			return writeEvaluation(out, assets, result, settings.DeltaThreshold)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// writeEvaluation prints allocations and the proposed actions
func writeEvaluation(w io.Writer, assets []domain.Asset, result domain.RebalanceResult, threshold float64) error {
	total := portfolio.TotalValue(assets)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tBALANCE\tPRICE\tVALUE\tCURRENT%\tTARGET%")
	for _, a := range assets {
		fmt.Fprintf(tw, "%s\t%.4f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			a.Symbol, a.Balance, a.Price, a.Value(),
			portfolio.CurrentAllocationPercent(a, total), a.TargetAllocation)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTotal value: $%.2f\n", total)
	fmt.Fprintf(w, "Max deviation: %.2f%% (threshold %.2f%%)\n", result.Deviation, threshold)
	if !result.NeedsRebalance {
		fmt.Fprintln(w, "No rebalance needed.")
		return nil
	}

	fmt.Fprintln(w, "\nProposed actions:")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SIDE\tSYMBOL\tAMOUNT\tUSD")
	for _, action := range result.Actions {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.2f\n", action.Side, action.Symbol, action.Amount, action.USDValue)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
