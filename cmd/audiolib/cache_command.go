package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"audiolib/internal/analysiscache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the analysis memoization cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print cache entry counts and age range",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			cache, err := analysiscache.Open(filepath.Join(cfg.CacheDir, "analysis_cache.db"), nil)
			if err != nil {
				return fmt.Errorf("open analysis cache: %w", err)
			}
			defer cache.Close()

			stats, err := cache.Stat(cmd.Context())
			if err != nil {
				return fmt.Errorf("stat cache: %w", err)
			}

			out := cmd.OutOrStdout()
			if ctx.JSONMode() {
				doc, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal cache stats: %w", err)
				}
				fmt.Fprintln(out, string(doc))
				return nil
			}

			rows := [][]string{{"entries", fmt.Sprint(stats.EntryCount)}}
			if !stats.OldestEntry.IsZero() {
				rows = append(rows, []string{"oldest", stats.OldestEntry.Format("2006-01-02 15:04:05")})
			}
			if !stats.NewestEntry.IsZero() {
				rows = append(rows, []string{"newest", stats.NewestEntry.Format("2006-01-02 15:04:05")})
			}
			fmt.Fprintln(out, renderTable([]string{"Metric", "Value"}, rows, nil))
			return nil
		},
	}
}
