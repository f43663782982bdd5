package geo

import (
	"encoding/json"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	circleVertices = 64
	milesPerDegree = 69.0

	// NeutralColor is used for radii without a canonical color.
	NeutralColor = "#999999"
)

// radiusColors maps the canonical report radii to their overlay colors.
var radiusColors = map[float64]string{
	1: "#FF6B6B",
	3: "#4ECDC4",
	5: "#45B7D1",
}

// MapCircle is a display-only overlay approximating a radius around a point.
type MapCircle struct {
	RadiusMiles float64    `json:"radius_miles"`
	Population  int64      `json:"population"`
	Center      GeoPoint   `json:"center"`
	Color       string     `json:"color"`
	Ring        []GeoPoint `json:"-"`
}

// ColorFor returns the overlay color for a radius.
func ColorFor(radiusMiles float64) string {
	if c, ok := radiusColors[radiusMiles]; ok {
		return c
	}
	return NeutralColor
}

// BuildCircles builds one closed 64-vertex ring per radius. Populations are
// looked up by RadiusLabel; a missing label yields zero.
func BuildCircles(center GeoPoint, radii []float64, populationByRadius map[string]int64) []MapCircle {
	circles := make([]MapCircle, 0, len(radii))
	for _, r := range radii {
		circles = append(circles, MapCircle{
			RadiusMiles: r,
			Population:  populationByRadius[RadiusLabel(r)],
			Center:      center,
			Color:       ColorFor(r),
			Ring:        circleRing(center, r),
		})
	}
	return circles
}

// circleRing uses the flat approximation of 69 miles per degree of latitude
// and 69*cos(lat) miles per degree of longitude.
func circleRing(center GeoPoint, radiusMiles float64) []GeoPoint {
	ring := make([]GeoPoint, 0, circleVertices+1)
	latScale := radiusMiles / milesPerDegree
	lngScale := radiusMiles / (milesPerDegree * math.Cos(toRadians(center.Lat)))
	for i := range circleVertices {
		angle := 2 * math.Pi / circleVertices * float64(i)
		ring = append(ring, GeoPoint{
			Lat: center.Lat + latScale*math.Sin(angle),
			Lng: center.Lng + lngScale*math.Cos(angle),
		})
	}
	return append(ring, ring[0])
}

// Polygon returns the ring as a go-geom polygon in lng/lat order.
func (c MapCircle) Polygon() *geom.Polygon {
	coords := make([]geom.Coord, len(c.Ring))
	for i, p := range c.Ring {
		coords[i] = geom.Coord{p.Lng, p.Lat}
	}
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{coords})
}

// Feature returns the circle as a GeoJSON feature with styling properties.
func (c MapCircle) Feature() *geojson.Feature {
	return &geojson.Feature{
		Geometry: c.Polygon(),
		Properties: map[string]any{
			"radius_miles":         c.RadiusMiles,
			"population":           c.Population,
			"population_formatted": FormatCount(c.Population),
			"center":               []float64{c.Center.Lng, c.Center.Lat},
			"color":                c.Color,
			"fillOpacity":          0.15,
			"strokeOpacity":        0.8,
			"strokeWeight":         2,
		},
	}
}

// MarshalJSON encodes the circle as a GeoJSON feature.
func (c MapCircle) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Feature())
}

// FeatureCollection wraps circles in a GeoJSON feature collection.
func FeatureCollection(circles []MapCircle) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(circles))}
	for _, c := range circles {
		fc.Features = append(fc.Features, c.Feature())
	}
	return fc
}

// FormatCount renders an integer with thousands separators ("12,345").
func FormatCount(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}
