package tiger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/demographics-cli/internal/db"
	"github.com/sells-group/demographics-cli/internal/fetcher"
)

// LoadOptions configures a tract load.
type LoadOptions struct {
	Year        int      // TIGER/Line vintage (default DefaultYear)
	States      []string // abbreviations or FIPS codes; empty = all
	TempDir     string   // download directory (default $TMPDIR/tiger)
	Concurrency int      // parallel state loads (default 3)
	BatchSize   int      // COPY batch size (default 5,000)
	Incremental bool     // skip states already loaded for Year
	DryRun      bool     // download and parse without writing
}

func (o *LoadOptions) applyDefaults() {
	if o.Year == 0 {
		o.Year = DefaultYear
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 3
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.TempDir == "" {
		o.TempDir = filepath.Join(os.TempDir(), "tiger")
	}
}

// StateResult reports one state's load.
type StateResult struct {
	StateAbbr string
	StateFIPS string
	Rows      int64
	Skipped   bool
	Duration  time.Duration
}

// StatusRow represents a row from geo.tract_load_status.
type StatusRow struct {
	StateFIPS  string
	StateAbbr  string
	Year       int
	RowCount   int
	LoadedAt   time.Time
	DurationMs int
}

// Load downloads and loads tract shapefiles for the requested states. A
// failed state cancels the rest.
func Load(ctx context.Context, pool db.Pool, f fetcher.Fetcher, opts LoadOptions) ([]StateResult, error) {
	opts.applyDefaults()

	log := zap.L().With(
		zap.String("component", "tiger.loader"),
		zap.Int("year", opts.Year),
	)

	states := opts.States
	if len(states) == 0 {
		states = AllStateAbbrs()
	}
	type target struct{ abbr, fips string }
	targets := make([]target, 0, len(states))
	for _, s := range states {
		abbr, fips, ok := ResolveState(s)
		if !ok {
			return nil, eris.Errorf("tiger: unknown state %q", s)
		}
		targets = append(targets, target{abbr, fips})
	}

	if !opts.DryRun {
		if err := EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
	}

	var (
		mu      sync.Mutex
		results []StateResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, t := range targets {
		g.Go(func() error {
			res, err := loadState(gctx, pool, f, t.abbr, t.fips, opts)
			if err != nil {
				return eris.Wrapf(err, "tiger: load %s", t.abbr)
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	log.Info("census tracts loaded", zap.Int("states", len(results)))
	return results, nil
}

// loadState downloads, parses, and loads one state's tracts.
func loadState(ctx context.Context, pool db.Pool, f fetcher.Fetcher, abbr, fips string, opts LoadOptions) (StateResult, error) {
	res := StateResult{StateAbbr: abbr, StateFIPS: fips}
	log := zap.L().With(
		zap.String("component", "tiger.loader"),
		zap.String("state", abbr),
	)

	if opts.Incremental && !opts.DryRun {
		loaded, err := isLoaded(ctx, pool, fips, opts.Year)
		if err != nil {
			return res, err
		}
		if loaded {
			log.Debug("already loaded, skipping")
			res.Skipped = true
			return res, nil
		}
	}

	start := time.Now()
	shpPath, err := Download(ctx, f, TractURL(opts.Year, fips), filepath.Join(opts.TempDir, fips))
	if err != nil {
		return res, err
	}

	records, err := ParseTracts(shpPath)
	if err != nil {
		return res, err
	}
	log.Info("shapefile parsed", zap.Int("tracts", len(records)))

	if opts.DryRun {
		res.Rows = int64(len(records))
		res.Duration = time.Since(start)
		return res, nil
	}

	if _, err := DeleteState(ctx, pool, fips); err != nil {
		return res, err
	}
	res.Rows, err = BulkLoad(ctx, pool, records, opts.BatchSize)
	if err != nil {
		return res, err
	}
	res.Duration = time.Since(start)

	if err := recordLoad(ctx, pool, fips, abbr, opts.Year, int(res.Rows), int(res.Duration.Milliseconds())); err != nil {
		log.Warn("failed to record load status", zap.Error(err))
	}
	log.Info("state tracts loaded",
		zap.Int64("rows", res.Rows),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// isLoaded checks whether a state's tracts are loaded for year.
func isLoaded(ctx context.Context, pool db.Pool, stateFIPS string, year int) (bool, error) {
	var count int
	row := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM geo.tract_load_status WHERE state_fips = $1 AND year = $2",
		stateFIPS, year,
	)
	if err := row.Scan(&count); err != nil {
		return false, eris.Wrap(err, "tiger: check load status")
	}
	return count > 0, nil
}

// recordLoad upserts the load_status row for a completed load.
func recordLoad(ctx context.Context, pool db.Pool, stateFIPS, stateAbbr string, year, rowCount, durationMs int) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO geo.tract_load_status (state_fips, state_abbr, year, row_count, duration_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (state_fips, year) DO UPDATE SET
			state_abbr = EXCLUDED.state_abbr,
			row_count = EXCLUDED.row_count,
			loaded_at = now(),
			duration_ms = EXCLUDED.duration_ms`,
		stateFIPS, stateAbbr, year, rowCount, durationMs,
	)
	if err != nil {
		return eris.Wrap(err, "tiger: record load status")
	}
	return nil
}

// LoadStatus returns the recorded tract loads.
func LoadStatus(ctx context.Context, pool db.Pool) ([]StatusRow, error) {
	rows, err := pool.Query(ctx, `
		SELECT state_fips, state_abbr, year, row_count, loaded_at, COALESCE(duration_ms, 0)
		FROM geo.tract_load_status
		ORDER BY state_fips, year`)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: query load status")
	}
	defer rows.Close()

	var status []StatusRow
	for rows.Next() {
		var sr StatusRow
		if err := rows.Scan(&sr.StateFIPS, &sr.StateAbbr, &sr.Year, &sr.RowCount, &sr.LoadedAt, &sr.DurationMs); err != nil {
			return nil, eris.Wrap(err, "tiger: scan load status row")
		}
		status = append(status, sr)
	}
	return status, rows.Err()
}
