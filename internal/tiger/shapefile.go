package tiger

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// TractRecord is one census tract row from a TIGER/Line tract shapefile.
type TractRecord struct {
	GEOID      string
	StateFIPS  string
	CountyFIPS string
	TractCE    string
	Name       string
	LandArea   int64
	WaterArea  int64
	Latitude   float64
	Longitude  float64
	Geom       []byte // EWKB MultiPolygon, SRID 4326
}

// tractColumns are the geo.census_tracts columns in Row order.
var tractColumns = []string{
	"geoid", "state_fips", "county_fips", "tract_ce", "name",
	"aland", "awater", "latitude", "longitude", "geom",
}

// Row returns the record's values in tractColumns order.
func (r TractRecord) Row() []any {
	return []any{
		r.GEOID, r.StateFIPS, r.CountyFIPS, r.TractCE, r.Name,
		r.LandArea, r.WaterArea, r.Latitude, r.Longitude, r.Geom,
	}
}

// shapeReader is the subset of *shp.Reader that ParseTracts reads.
type shapeReader interface {
	Fields() []shp.Field
	Next() bool
	Shape() (int, shp.Shape)
	Attribute(n int) string
}

// ParseTracts reads a tract shapefile. Records without a usable polygon or
// tract code are skipped.
func ParseTracts(shpPath string) ([]TractRecord, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	return readTracts(reader)
}

func readTracts(reader shapeReader) ([]TractRecord, error) {
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	for _, col := range []string{"statefp", "countyfp", "tractce"} {
		if _, ok := fieldIdx[col]; !ok {
			return nil, eris.Errorf("tiger: shapefile is missing field %s", strings.ToUpper(col))
		}
	}

	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var records []TractRecord
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		rec := TractRecord{
			StateFIPS:  attr("statefp"),
			CountyFIPS: attr("countyfp"),
			TractCE:    attr("tractce"),
			GEOID:      attr("geoid"),
			Name:       attr("namelsad"),
			LandArea:   parseInt(attr("aland")),
			WaterArea:  parseInt(attr("awater")),
			Latitude:   parseFloat(attr("intptlat")),
			Longitude:  parseFloat(attr("intptlon")),
		}
		if rec.TractCE == "" {
			skipped++
			continue
		}
		if rec.GEOID == "" {
			rec.GEOID = rec.StateFIPS + rec.CountyFIPS + rec.TractCE
		}

		wkb, err := EncodeWKB(shape)
		if err != nil || wkb == nil {
			skipped++
			continue
		}
		rec.Geom = wkb
		records = append(records, rec)
	}

	if skipped > 0 {
		zap.L().Debug("tiger: skipped tract records", zap.Int("skipped", skipped))
	}
	return records, nil
}

// parseFloat reads INTPTLAT/INTPTLON values such as "+30.2672000".
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimPrefix(s, "+"), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
