// Package geospatial answers tract questions from a PostGIS copy of the
// TIGER census tract layer (geo.census_tracts).
package geospatial

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/db"
	"github.com/sells-group/demographics-cli/internal/geo"
)

// ErrNoTract means no tract polygon contains the point.
var ErrNoTract = eris.New("geo: no tract contains point")

// TractStore reads census tracts from PostGIS.
type TractStore struct {
	pool db.Pool
}

// NewTractStore creates a TractStore over pool.
func NewTractStore(pool db.Pool) *TractStore {
	return &TractStore{pool: pool}
}

// TractAt returns the tract whose polygon contains p.
func (s *TractStore) TractAt(ctx context.Context, p geo.GeoPoint) (geo.TractRef, error) {
	sql := `
		SELECT state_fips, county_fips, tract_ce
		FROM geo.census_tracts
		WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		LIMIT 1
	`
	var ref geo.TractRef
	err := s.pool.QueryRow(ctx, sql, p.Lng, p.Lat).Scan(&ref.StateFIPS, &ref.CountyFIPS, &ref.TractID)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return geo.TractRef{}, eris.Wrapf(ErrNoTract, "geo: pip census tract %.6f,%.6f", p.Lat, p.Lng)
		}
		return geo.TractRef{}, eris.Wrap(err, "geo: pip census tract")
	}
	return ref, nil
}

// CountyCentroids returns the internal point of every tract in county,
// keyed by tract id. Rows with a zero coordinate are skipped.
func (s *TractStore) CountyCentroids(ctx context.Context, county geo.CountyKey) (map[string]geo.GeoPoint, error) {
	sql := `
		SELECT tract_ce, latitude, longitude
		FROM geo.census_tracts
		WHERE state_fips = $1 AND county_fips = $2
		ORDER BY tract_ce
	`
	rows, err := s.pool.Query(ctx, sql, county.StateFIPS, county.CountyFIPS)
	if err != nil {
		return nil, eris.Wrap(err, "geo: query county centroids")
	}
	defer rows.Close()

	points := make(map[string]geo.GeoPoint)
	for rows.Next() {
		var (
			tract    string
			lat, lng float64
		)
		if err := rows.Scan(&tract, &lat, &lng); err != nil {
			return nil, eris.Wrap(err, "geo: scan county centroid")
		}
		if lat == 0 || lng == 0 {
			continue
		}
		points[tract] = geo.GeoPoint{Lat: lat, Lng: lng}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "geo: iterate county centroids")
	}
	zap.L().Debug("geo: county centroids", zap.String("county", county.String()), zap.Int("tracts", len(points)))
	return points, nil
}
