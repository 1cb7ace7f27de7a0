package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/howardwork830-creator/nomad-guide/internal/countries"
	"github.com/howardwork830-creator/nomad-guide/internal/pipeline"
)

var (
	backfillDays      int
	backfillCountries []string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Seed historical snapshots with synthetic demo data",
	Long:  "Generates deterministic synthetic history so trend and delta features have data to work with before enough real daily runs accumulate. Synthetic rows are marked as mock data and never mix with live provenance.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		catalog, err := countries.Load(cfg.Countries.Path)
		if err != nil {
			return err
		}

		bf := pipeline.NewBackfiller(catalog, st)
		written, err := bf.Backfill(ctx, backfillDays, backfillCountries)
		if err != nil {
			return err
		}

		fmt.Printf("Backfilled %d snapshots over %d days.\n", written, backfillDays)
		return nil
	},
}

func init() {
	backfillCmd.Flags().IntVar(&backfillDays, "days", 90, "number of days of history to generate")
	backfillCmd.Flags().StringSliceVar(&backfillCountries, "country", nil, "restrict to specific destinations (default all)")
	rootCmd.AddCommand(backfillCmd)
}
