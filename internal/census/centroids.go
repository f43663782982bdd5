package census

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/fetcher"
	"github.com/sells-group/demographics-cli/internal/geo"
)

// DefaultGazetteerURL is the per-state tract gazetteer file; %s is the state FIPS.
const DefaultGazetteerURL = "https://www2.census.gov/geo/docs/maps-data/data/gazetteer/2020_Gazetteer/2020_gaz_tracts_%s.txt"

// CentroidSource names where a centroid set came from.
type CentroidSource string

// Centroid sources.
const (
	SourceLocal     CentroidSource = "postgis"
	SourceGazetteer CentroidSource = "gazetteer"
	SourceGeoinfo   CentroidSource = "geoinfo"
	SourceNone      CentroidSource = ""
)

// CentroidSet maps tract ids to centroids. An empty set means no centroid
// data could be found for the county; it is not an error.
type CentroidSet struct {
	Source CentroidSource
	Points map[string]geo.GeoPoint
}

// Empty reports whether the set has no centroids.
func (s CentroidSet) Empty() bool { return len(s.Points) == 0 }

// LocalCentroids looks up tract centroids from a local store.
type LocalCentroids interface {
	CountyCentroids(ctx context.Context, county geo.CountyKey) (map[string]geo.GeoPoint, error)
}

// ResolverOptions configures a CentroidResolver.
type ResolverOptions struct {
	// Local, when set, is tried before the remote tiers.
	Local LocalCentroids
	// GazetteerURL is a format string taking the state FIPS. Empty disables
	// the gazetteer tier.
	GazetteerURL string
	// GeoinfoYear is the year of the geoinfo dataset. Empty disables the
	// geoinfo tier.
	GeoinfoYear string
}

// CentroidResolver resolves tract centroids for a county from the local
// store, then the gazetteer file, then the geoinfo dataset, caching per county.
type CentroidResolver struct {
	fetcher fetcher.Fetcher
	client  *Client
	opts    ResolverOptions
	cache   *countyCache[CentroidSet]
}

// NewCentroidResolver creates a CentroidResolver.
func NewCentroidResolver(f fetcher.Fetcher, client *Client, opts ResolverOptions) *CentroidResolver {
	return &CentroidResolver{
		fetcher: f,
		client:  client,
		opts:    opts,
		cache:   newCountyCache[CentroidSet]("centroids"),
	}
}

// ResolveCentroids returns the centroids of the county's tracts. Tier
// failures are logged and fall through; the only error is context
// cancellation. A non-empty result is always cached. An empty result is
// cached only when every enabled tier answered without a transport failure.
func (r *CentroidResolver) ResolveCentroids(ctx context.Context, county geo.CountyKey) (CentroidSet, error) {
	return r.cache.get(ctx, county, func(ctx context.Context) (CentroidSet, bool, error) {
		log := zap.L().With(zap.String("component", "centroids"), zap.String("county", county.String()))
		allAnswered := true

		if r.opts.Local != nil {
			points, err := r.opts.Local.CountyCentroids(ctx, county)
			switch {
			case ctx.Err() != nil:
				return CentroidSet{}, false, eris.Wrap(ctx.Err(), "census: resolve centroids")
			case err != nil:
				allAnswered = false
				log.Warn("local centroids unavailable", zap.Error(err))
			case len(points) > 0:
				log.Debug("centroids from local store", zap.Int("tracts", len(points)))
				return CentroidSet{Source: SourceLocal, Points: points}, true, nil
			}
		}

		if r.opts.GazetteerURL != "" {
			points, err := r.fromGazetteer(ctx, county)
			switch {
			case ctx.Err() != nil:
				return CentroidSet{}, false, eris.Wrap(ctx.Err(), "census: resolve centroids")
			case err != nil:
				allAnswered = false
				log.Warn("gazetteer centroids unavailable", zap.Error(err))
			case len(points) > 0:
				log.Debug("centroids from gazetteer", zap.Int("tracts", len(points)))
				return CentroidSet{Source: SourceGazetteer, Points: points}, true, nil
			}
		}

		if r.opts.GeoinfoYear != "" {
			points, err := r.fromGeoinfo(ctx, county)
			switch {
			case ctx.Err() != nil:
				return CentroidSet{}, false, eris.Wrap(ctx.Err(), "census: resolve centroids")
			case err != nil:
				allAnswered = false
				log.Warn("geoinfo centroids unavailable", zap.Error(err))
			case len(points) > 0:
				log.Debug("centroids from geoinfo", zap.Int("tracts", len(points)))
				return CentroidSet{Source: SourceGeoinfo, Points: points}, true, nil
			}
		}

		log.Warn("no centroid data for county")
		return CentroidSet{Source: SourceNone}, allAnswered, nil
	})
}

// fromGazetteer reads the state's tab-delimited gazetteer and keeps rows
// whose GEOID starts with the county prefix.
func (r *CentroidResolver) fromGazetteer(ctx context.Context, county geo.CountyKey) (map[string]geo.GeoPoint, error) {
	rawURL := fmt.Sprintf(r.opts.GazetteerURL, county.StateFIPS)
	body, err := r.fetcher.Download(ctx, rawURL)
	if err != nil {
		return nil, upstream(err, "census: gazetteer for state %s", county.StateFIPS)
	}
	defer body.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, body, fetcher.CSVOptions{
		Delimiter:  '\t',
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	prefix := county.String()
	points := make(map[string]geo.GeoPoint)
	var idx map[string]int
	var idxErr error
	for row := range rowCh {
		if idx == nil && idxErr == nil {
			idx, idxErr = fetcher.HeaderIndex(<-headerCh, "GEOID", "INTPTLAT", "INTPTLON")
		}
		if idxErr != nil {
			continue
		}
		geoid := field(row, idx["GEOID"])
		if len(geoid) <= len(prefix) || !strings.HasPrefix(geoid, prefix) {
			continue
		}
		pt, ok := parsePoint(field(row, idx["INTPTLAT"]), field(row, idx["INTPTLON"]))
		if !ok {
			continue
		}
		points[geoid[len(prefix):]] = pt
	}
	if err := <-errCh; err != nil {
		return nil, upstream(err, "census: read gazetteer for state %s", county.StateFIPS)
	}
	if idxErr != nil {
		return nil, upstream(idxErr, "census: gazetteer header for state %s", county.StateFIPS)
	}
	return points, nil
}

// fromGeoinfo queries the geoinfo dataset for internal points of every
// tract in the county. Rows with a zero coordinate are discarded.
func (r *CentroidResolver) fromGeoinfo(ctx context.Context, county geo.CountyKey) (map[string]geo.GeoPoint, error) {
	table, err := r.client.Query(ctx, Query{
		Year:    r.opts.GeoinfoYear,
		Dataset: "geoinfo",
		Get:     []string{"NAME", "INTPTLAT", "INTPTLON"},
		County:  county,
	})
	if err != nil {
		return nil, err
	}
	points := make(map[string]geo.GeoPoint, len(table.Rows))
	for _, row := range table.Rows {
		pt, ok := parsePoint(row.Values["INTPTLAT"], row.Values["INTPTLON"])
		if !ok {
			continue
		}
		points[row.Tract.TractID] = pt
	}
	return points, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parsePoint rejects unparseable coordinates and any coordinate exactly 0.
func parsePoint(latRaw, lngRaw string) (geo.GeoPoint, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil || lat == 0 {
		return geo.GeoPoint{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err != nil || lng == 0 {
		return geo.GeoPoint{}, false
	}
	return geo.GeoPoint{Lat: lat, Lng: lng}, true
}
