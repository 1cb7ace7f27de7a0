package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/howardwork830-creator/nomad-guide/internal/pipeline"
	"github.com/howardwork830-creator/nomad-guide/internal/quality"
	"github.com/howardwork830-creator/nomad-guide/internal/scoring"
)

var (
	rankMock   bool
	rankDryRun bool
	rankJSON   bool
	rankCSV    bool
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank all destinations and store today's snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, envOptions{mock: rankMock, persist: !rankDryRun})
		if err != nil {
			return err
		}
		defer e.Close()

		run, err := e.pipe.Rank(ctx)
		if err != nil {
			return err
		}

		if rankJSON {
			return json.NewEncoder(os.Stdout).Encode(run)
		}
		if rankCSV {
			return writeRankingsCSV(os.Stdout, run)
		}
		printRankings(run)
		return nil
	},
}

func printRankings(run *pipeline.RunResult) {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "RANK\tDESTINATION\tSCORE\tTREND\tFLIGHT (TWD)\tFX RATE\tCOL (USD)\tQUALITY\tBADGES")
	for i, r := range run.Rankings {
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%s %+.1f%%\t%s\t%.3f\t%s\t%s\t%s\n",
			i+1,
			r.Destination.Name,
			r.Result.FinalScore,
			scoring.Arrow(r.Result.OverallChange),
			r.Result.OverallChange,
			p.Sprintf("%.0f", r.Result.Flight.Current),
			r.Result.Exchange.Current,
			p.Sprintf("%.0f", r.Result.Col.Current),
			qualityCell(r.Quality),
			strings.Join(scoring.BadgeStrings(r.Badges), ", "),
		)
	}
	w.Flush()

	fmt.Println()
	printQualityFooter(run)
}

func writeRankingsCSV(out io.Writer, run *pipeline.RunResult) error {
	w := csv.NewWriter(out)
	header := []string{"rank", "destination", "final_score", "overall_change",
		"flight_twd", "exchange_rate", "col_usd", "quality", "source", "badges"}
	if err := w.Write(header); err != nil {
		return err
	}
	for i, r := range run.Rankings {
		row := []string{
			strconv.Itoa(i + 1),
			r.Destination.Name,
			strconv.FormatFloat(r.Result.FinalScore, 'f', 1, 64),
			strconv.FormatFloat(r.Result.OverallChange, 'f', 1, 64),
			strconv.FormatFloat(r.Result.Flight.Current, 'f', 0, 64),
			strconv.FormatFloat(r.Result.Exchange.Current, 'f', 4, 64),
			strconv.FormatFloat(r.Result.Col.Current, 'f', 0, 64),
			strconv.FormatFloat(r.Quality.OverallScore(), 'f', 0, 64),
			r.Quality.PrimarySource().String(),
			strings.Join(scoring.BadgeStrings(r.Badges), "|"),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func qualityCell(dq *quality.DestinationQuality) string {
	return fmt.Sprintf("%.0f (%s)", dq.OverallScore(), dq.PrimarySource().Label())
}

func printQualityFooter(run *pipeline.RunResult) {
	q := run.Quality
	fmt.Printf("Data quality: avg %.0f (min %.0f, max %.0f) across %d destinations\n",
		q.AverageQuality, q.MinQuality, q.MaxQuality, q.TotalDestinations)

	var parts []string
	for _, source := range []string{"live_api", "cache", "stale_cache", "baseline", "mock"} {
		if n := q.SourceDistribution[source]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", source, n))
		}
	}
	if len(parts) > 0 {
		fmt.Printf("Sources: %s\n", strings.Join(parts, ", "))
	}
	fmt.Printf("Run %s finished in %s\n", run.RunID, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
}

func init() {
	rankCmd.Flags().BoolVar(&rankMock, "mock", false, "use demo data instead of live APIs")
	rankCmd.Flags().BoolVar(&rankDryRun, "dry-run", false, "rank without storing snapshots")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "emit JSON instead of a table")
	rankCmd.Flags().BoolVar(&rankCSV, "csv", false, "emit CSV instead of a table")
	rootCmd.AddCommand(rankCmd)
}
