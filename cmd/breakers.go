package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/howardwork830-creator/nomad-guide/internal/resilience"
)

var breakersJSON bool

var breakersCmd = &cobra.Command{
	Use:   "breakers",
	Short: "Inspect and reset circuit breakers",
}

var breakersStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show circuit breaker state per data source",
	RunE: func(cmd *cobra.Command, args []string) error {
		breakers := resilience.NewRegistry(resilience.SourceConfigs(), resilience.DefaultCircuitBreakerConfig())
		for _, source := range dataSources {
			breakers.Get(source)
		}

		counters := breakers.Counters()
		if breakersJSON {
			return json.NewEncoder(os.Stdout).Encode(counters)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tSTATE\tFAILURES\tREQUESTS\tBLOCKED\tLAST CHANGE")
		for _, source := range dataSources {
			c := counters[source]
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
				source, c.StateName, c.ConsecutiveFailures,
				c.TotalRequests, c.BlockedRequests,
				c.LastStateChange.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var breakersResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Force all circuit breakers back to closed",
	RunE: func(cmd *cobra.Command, args []string) error {
		breakers := resilience.NewRegistry(resilience.SourceConfigs(), resilience.DefaultCircuitBreakerConfig())
		for _, source := range dataSources {
			breakers.Get(source)
		}
		breakers.ResetAll()
		fmt.Printf("Reset %d circuit breakers.\n", len(dataSources))
		return nil
	},
}

func init() {
	breakersStatusCmd.Flags().BoolVar(&breakersJSON, "json", false, "emit JSON instead of a table")
	breakersCmd.AddCommand(breakersStatusCmd, breakersResetCmd)
	rootCmd.AddCommand(breakersCmd)
}
