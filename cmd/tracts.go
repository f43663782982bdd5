package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/db"
	"github.com/sells-group/demographics-cli/internal/fetcher"
	"github.com/sells-group/demographics-cli/internal/tiger"
)

var (
	tractsStates      string
	tractsYear        int
	tractsTempDir     string
	tractsConcurrency int
	tractsIncremental bool
	tractsDryRun      bool
)

var tractsCmd = &cobra.Command{
	Use:   "tracts",
	Short: "Manage the PostGIS census tract table",
}

var tractsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Download TIGER/Line tract shapefiles and load geo.census_tracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("tracts"); err != nil {
			return err
		}
		ctx := cmd.Context()

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{MaxConns: cfg.Store.MaxConns})
		if err != nil {
			return eris.Wrap(err, "connect tract store")
		}
		defer pool.Close()

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Fetcher.UserAgent,
			Timeout:    10 * time.Minute,
			MaxRetries: cfg.Fetcher.MaxRetries,
		})
		defer f.CloseIdleConnections()

		results, err := tiger.Load(ctx, pool, f, tiger.LoadOptions{
			Year:        tractsYear,
			States:      splitList(tractsStates),
			TempDir:     tractsTempDir,
			Concurrency: tractsConcurrency,
			Incremental: tractsIncremental,
			DryRun:      tractsDryRun,
		})
		if err != nil {
			return err
		}

		var rows int64
		skipped := 0
		for _, r := range results {
			rows += r.Rows
			if r.Skipped {
				skipped++
			}
		}
		zap.L().Info("tract load complete",
			zap.Int("states", len(results)),
			zap.Int("skipped", skipped),
			zap.Int64("rows", rows),
			zap.Bool("dry_run", tractsDryRun),
		)
		return nil
	},
}

var tractsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show loaded tract vintages per state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("tracts"); err != nil {
			return err
		}
		ctx := cmd.Context()

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{MaxConns: 2})
		if err != nil {
			return eris.Wrap(err, "connect tract store")
		}
		defer pool.Close()

		status, err := tiger.LoadStatus(ctx, pool)
		if err != nil {
			return err
		}
		return printLoadStatus(os.Stdout, status)
	},
}

func printLoadStatus(w io.Writer, status []tiger.StatusRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tFIPS\tYEAR\tTRACTS\tLOADED\tDURATION")
	for _, s := range status {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.StateAbbr, s.StateFIPS, s.Year, s.RowCount,
			s.LoadedAt.Format(time.RFC3339),
			time.Duration(s.DurationMs)*time.Millisecond,
		)
	}
	return tw.Flush()
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	tractsLoadCmd.Flags().StringVar(&tractsStates, "states", "", "comma-separated state abbreviations or FIPS codes (default all)")
	tractsLoadCmd.Flags().IntVar(&tractsYear, "year", tiger.DefaultYear, "TIGER/Line vintage")
	tractsLoadCmd.Flags().StringVar(&tractsTempDir, "temp-dir", "", "download directory")
	tractsLoadCmd.Flags().IntVar(&tractsConcurrency, "concurrency", 3, "parallel state loads")
	tractsLoadCmd.Flags().BoolVar(&tractsIncremental, "incremental", true, "skip states already loaded for the year")
	tractsLoadCmd.Flags().BoolVar(&tractsDryRun, "dry-run", false, "download and parse without writing")
	tractsCmd.AddCommand(tractsLoadCmd, tractsStatusCmd)
	rootCmd.AddCommand(tractsCmd)
}
