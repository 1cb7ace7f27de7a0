package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/howardwork830-creator/nomad-guide/internal/monitoring"
)

var (
	healthDays int
	healthJSON bool
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database, cache, breaker, and data freshness health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, envOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		checker := monitoring.NewChecker(e.store, e.cache, e.breakers, e.limiters, dataSources, e.pipe.LastSuccessfulUpdate)
		report := checker.Check(ctx)

		collector := monitoring.NewCollector(e.store)
		qr, err := collector.Collect(ctx, healthDays)
		if err != nil {
			return err
		}

		if healthJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"health":  report,
				"quality": qr,
			})
		}

		fmt.Printf("Overall: %s\n\n", strings.ToUpper(string(report.Status)))
		for _, ch := range report.Components {
			line := fmt.Sprintf("  %-12s %s", ch.Name, ch.Status)
			if ch.Detail != "" {
				line += "  (" + ch.Detail + ")"
			}
			fmt.Println(line)
		}

		fmt.Println()
		if qr.Stats.TotalSnapshots == 0 {
			fmt.Printf("No snapshots in the last %d days.\n", qr.WindowDays)
		} else {
			fmt.Printf("Quality (last %d days): avg %.0f (%s), %d snapshots, %.0f%% live\n",
				qr.WindowDays, qr.Stats.AvgQuality, qr.Level, qr.Stats.TotalSnapshots, qr.LiveShare*100)
		}

		if report.Status != monitoring.StatusOK {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().IntVar(&healthDays, "days", 7, "quality report window in days")
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(healthCmd)
}
