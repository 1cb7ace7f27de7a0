package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/howardwork830-creator/nomad-guide/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "nomad-guide",
	Short: "Travel destination ranker for Taiwan-based travelers",
	Long:  "Ranks travel destinations by currency momentum, flight costs, and cost of living, with provenance-tracked data quality and daily snapshot history.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
