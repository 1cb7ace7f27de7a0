package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/howardwork830-creator/nomad-guide/internal/store"
)

var (
	historyDays  int
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [destination]",
	Short: "Show stored snapshots, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.HistoryFilter{Days: historyDays, Limit: historyLimit}
		if len(args) == 1 {
			filter.CountryKey = args[0]
		}

		snaps, err := st.History(ctx, filter)
		if err != nil {
			return err
		}

		if historyJSON {
			return json.NewEncoder(os.Stdout).Encode(snaps)
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots in window. Run `nomad-guide rank` first.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tDESTINATION\tSCORE\tCHANGE\tSOURCE\tQUALITY\tBADGES")
		for _, s := range snaps {
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%+.1f%%\t%s\t%.0f\t%s\n",
				s.SnapshotDate, s.CountryName, s.FinalScore, s.OverallChange,
				s.DataSource, s.DataQualityScore, strings.Join(s.Badges, ", "))
		}
		return w.Flush()
	},
}

var cleanupKeepDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete snapshots older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		deleted, err := st.Cleanup(ctx, cleanupKeepDays)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d snapshots older than %d days.\n", deleted, cleanupKeepDays)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupKeepDays, "keep-days", 365, "retention window in days")
	rootCmd.AddCommand(cleanupCmd)

	historyCmd.Flags().IntVar(&historyDays, "days", 7, "history window in days")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "max rows (0 = all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(historyCmd)
}
