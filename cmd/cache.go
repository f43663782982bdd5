package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the local Census response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts and size",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		cache, err := openCache(cmd.Context(), cfg.Store.CachePath)
		if err != nil {
			return err
		}
		defer cache.Close() //nolint:errcheck

		stats, err := cache.Stats(cmd.Context())
		if err != nil {
			return err
		}
		printCacheStats(os.Stdout, cfg.Store.CachePath, stats)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheDelete(cmd, "prune", (*store.Cache).DeleteExpired)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheDelete(cmd, "clear", (*store.Cache).Clear)
	},
}

func runCacheDelete(cmd *cobra.Command, op string, del func(*store.Cache, context.Context) (int64, error)) error {
	if err := cfg.Validate("cache"); err != nil {
		return err
	}
	cache, err := openCache(cmd.Context(), cfg.Store.CachePath)
	if err != nil {
		return err
	}
	defer cache.Close() //nolint:errcheck

	n, err := del(cache, cmd.Context())
	if err != nil {
		return err
	}
	zap.L().Info("cache "+op+" complete", zap.Int64("deleted", n))
	fmt.Fprintf(os.Stdout, "deleted %d entries\n", n)
	return nil
}

func printCacheStats(w io.Writer, path string, s store.Stats) {
	fmt.Fprintf(w, "path:     %s\n", path)
	fmt.Fprintf(w, "entries:  %d\n", s.Entries)
	fmt.Fprintf(w, "expired:  %d\n", s.Expired)
	fmt.Fprintf(w, "size:     %.1f KiB\n", float64(s.Bytes)/1024)
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cachePruneCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
