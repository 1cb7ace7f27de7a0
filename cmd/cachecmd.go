package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/howardwork830-creator/nomad-guide/internal/cache"
)

var cacheJSON bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the fetch cache",
}

func openCache() (*cache.Store, error) {
	return cache.New(cfg.Cache.Dir, cache.WithMaxBytes(cfg.Cache.MaxBytes))
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache entry counts, size, and corruption",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := openCache()
		if err != nil {
			return err
		}
		h, err := cs.CheckHealth()
		if err != nil {
			return err
		}

		if cacheJSON {
			return json.NewEncoder(os.Stdout).Encode(h)
		}

		fmt.Printf("Cache dir:   %s\n", h.Dir)
		fmt.Printf("Entries:     %d total (%d valid, %d stale, %d corrupt)\n",
			h.TotalEntries, h.ValidEntries, h.StaleEntries, h.Corrupt)
		fmt.Printf("Size:        %.1f MB of %.0f MB (%.1f%%)\n",
			float64(h.SizeBytes)/(1<<20), float64(h.MaxBytes)/(1<<20), h.UsagePercent)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := openCache()
		if err != nil {
			return err
		}
		removed, err := cs.Clear()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d cache entries.\n", removed)
		return nil
	},
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Evict oldest entries until the cache fits its size ceiling",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := openCache()
		if err != nil {
			return err
		}
		freed, removed, err := cs.EvictLRU()
		if err != nil {
			return err
		}
		if removed == 0 {
			fmt.Println("Cache is under its size ceiling; nothing evicted.")
			return nil
		}
		fmt.Printf("Evicted %d entries, freed %.1f MB.\n", removed, float64(freed)/(1<<20))
		return nil
	},
}

func init() {
	cacheStatusCmd.Flags().BoolVar(&cacheJSON, "json", false, "emit JSON instead of text")
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd, cacheEvictCmd)
	rootCmd.AddCommand(cacheCmd)
}
