package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/howardwork830-creator/nomad-guide/internal/scoring"
)

var (
	trendDays int
	trendJSON bool
)

var trendCmd = &cobra.Command{
	Use:   "trend <destination>",
	Short: "Show a destination's score and cost series over time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		key := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		points, err := st.Trend(ctx, key, trendDays)
		if err != nil {
			return err
		}

		if trendJSON {
			return json.NewEncoder(os.Stdout).Encode(points)
		}
		if len(points) == 0 {
			fmt.Printf("No snapshots for %q in the last %d days.\n", key, trendDays)
			return nil
		}

		p := message.NewPrinter(language.English)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tSCORE\t\tFX RATE\tFLIGHT (TWD)\tCOL (USD)")
		prev := points[0].FinalScore
		for i, pt := range points {
			arrow := "●"
			if i > 0 {
				arrow = scoring.Arrow(pt.FinalScore - prev)
				prev = pt.FinalScore
			}
			fmt.Fprintf(w, "%s\t%.1f\t%s\t%.3f\t%s\t%s\n",
				pt.SnapshotDate, pt.FinalScore, arrow, pt.ExchangeRate,
				p.Sprintf("%.0f", pt.FlightCost), p.Sprintf("%.0f", pt.ColAmount))
		}
		return w.Flush()
	},
}

func init() {
	trendCmd.Flags().IntVar(&trendDays, "days", 30, "trend window in days")
	trendCmd.Flags().BoolVar(&trendJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(trendCmd)
}
