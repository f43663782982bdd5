package tiger

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/db"
)

// schemaStatements create the tract table, its indexes, and the load log.
var schemaStatements = []struct {
	name string
	sql  string
}{
	{"schema", `CREATE SCHEMA IF NOT EXISTS geo`},
	{"census_tracts", `
		CREATE TABLE IF NOT EXISTS geo.census_tracts (
			geoid       TEXT PRIMARY KEY,
			state_fips  TEXT NOT NULL,
			county_fips TEXT NOT NULL,
			tract_ce    TEXT NOT NULL,
			name        TEXT,
			aland       BIGINT,
			awater      BIGINT,
			latitude    DOUBLE PRECISION,
			longitude   DOUBLE PRECISION,
			geom        geometry(MultiPolygon, 4326)
		)`},
	{"geom index", `CREATE INDEX IF NOT EXISTS idx_census_tracts_geom ON geo.census_tracts USING GIST (geom)`},
	{"county index", `CREATE INDEX IF NOT EXISTS idx_census_tracts_county ON geo.census_tracts (state_fips, county_fips)`},
	{"load_status", `
		CREATE TABLE IF NOT EXISTS geo.tract_load_status (
			state_fips  TEXT NOT NULL,
			state_abbr  TEXT NOT NULL,
			year        INTEGER NOT NULL,
			row_count   INTEGER NOT NULL,
			loaded_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			duration_ms INTEGER,
			PRIMARY KEY (state_fips, year)
		)`},
}

// EnsureSchema creates geo.census_tracts and geo.tract_load_status when
// they do not exist.
func EnsureSchema(ctx context.Context, pool db.Pool) error {
	for _, s := range schemaStatements {
		if _, err := pool.Exec(ctx, s.sql); err != nil {
			return eris.Wrapf(err, "tiger: create %s", s.name)
		}
	}
	zap.L().Debug("tiger: schema ready")
	return nil
}
