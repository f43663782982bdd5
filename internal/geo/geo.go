// Package geo holds the geographic value types shared by the radius engine:
// points, census tract identifiers, and distance helpers.
package geo

import "fmt"

// GeoPoint is a WGS84 latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TractRef identifies a census tract by its state, county, and tract codes.
// TractRef values compare equal by value and are safe to use as map keys.
type TractRef struct {
	StateFIPS  string `json:"state_fips"`
	CountyFIPS string `json:"county_fips"`
	TractID    string `json:"tract"`
}

// GEOID returns the 11-character combined identifier (state+county+tract).
func (t TractRef) GEOID() string {
	return t.StateFIPS + t.CountyFIPS + t.TractID
}

// County returns the county key the tract belongs to.
func (t TractRef) County() CountyKey {
	return CountyKey{StateFIPS: t.StateFIPS, CountyFIPS: t.CountyFIPS}
}

// CountyKey identifies a county by its state and county FIPS codes.
type CountyKey struct {
	StateFIPS  string `json:"state_fips"`
	CountyFIPS string `json:"county_fips"`
}

// String returns the 5-character state+county prefix used by GEOIDs.
func (k CountyKey) String() string {
	return k.StateFIPS + k.CountyFIPS
}

// TractCentroid is a tract with its resolved representative point.
type TractCentroid struct {
	TractRef
	Point GeoPoint `json:"point"`
}

// SelectedTract is a tract chosen for one radius. Point is nil when the
// tract was picked by the approximation path without a centroid.
type SelectedTract struct {
	TractRef
	Point         *GeoPoint `json:"point,omitempty"`
	DistanceMiles float64   `json:"distance_miles"`
	WithinRadius  bool      `json:"within_radius"`
	Approximated  bool      `json:"approximated"`
}

// RadiusLabel formats a radius as the map key used in results ("1_mile", "2.5_mile").
func RadiusLabel(radiusMiles float64) string {
	return fmt.Sprintf("%g_mile", radiusMiles)
}
