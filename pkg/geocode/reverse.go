package geocode

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/geo"
)

// Layer names in the Census geographies response.
const (
	layerStates = "States"
	layerCounty = "Counties"
	layerTracts = "Census Tracts"
)

// ReverseResult holds the census geographies containing a point.
type ReverseResult struct {
	StateFIPS  string `json:"state_fips"`
	CountyFIPS string `json:"county_fips"`
	TractID    string `json:"tract,omitempty"`
	StateName  string `json:"state_name,omitempty"`
	StateAbbr  string `json:"state_abbr,omitempty"`
	CountyName string `json:"county_name,omitempty"`
}

// County returns the county key of the result.
func (r *ReverseResult) County() geo.CountyKey {
	return geo.CountyKey{StateFIPS: r.StateFIPS, CountyFIPS: r.CountyFIPS}
}

// Tract returns the tract reference of the result.
func (r *ReverseResult) Tract() geo.TractRef {
	return geo.TractRef{StateFIPS: r.StateFIPS, CountyFIPS: r.CountyFIPS, TractID: r.TractID}
}

type censusGeographyRecord struct {
	Name   string `json:"NAME"`
	State  string `json:"STATE"`
	County string `json:"COUNTY"`
	Tract  string `json:"TRACT"`
	Stusab string `json:"STUSAB"`
}

type censusCoordinatesResponse struct {
	Result struct {
		Geographies map[string][]censusGeographyRecord `json:"geographies"`
	} `json:"result"`
}

func (r *censusCoordinatesResponse) first(layer string) (censusGeographyRecord, bool) {
	recs := r.Result.Geographies[layer]
	if len(recs) == 0 {
		return censusGeographyRecord{}, false
	}
	return recs[0], true
}

// ReverseGeocode resolves a point to its state, county, and tract using the
// Census geographies/coordinates endpoint. A missing tract layer is not an
// error; a missing state or county is.
func (g *geocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*ReverseResult, error) {
	params := url.Values{
		"x":         {strconv.FormatFloat(lng, 'f', -1, 64)},
		"y":         {strconv.FormatFloat(lat, 'f', -1, 64)},
		"benchmark": {censusBenchmark},
		"vintage":   {censusVintage},
		"format":    {"json"},
	}
	resp, err := getJSON[censusCoordinatesResponse](ctx, g, censusCoordinatesURL+"?"+params.Encode(), "census reverse")
	if err != nil {
		return nil, eris.Wrapf(ErrLocationNotResolved, "geocode: reverse %.6f,%.6f: %s", lat, lng, err.Error())
	}

	state, okState := resp.first(layerStates)
	county, okCounty := resp.first(layerCounty)
	if !okState || !okCounty || state.State == "" || county.County == "" {
		zap.L().Debug("reverse geocode: no county",
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
		)
		return nil, eris.Wrapf(ErrLocationNotResolved, "geocode: no county at %.6f,%.6f", lat, lng)
	}

	result := &ReverseResult{
		StateFIPS:  state.State,
		CountyFIPS: county.County,
		StateName:  state.Name,
		StateAbbr:  state.Stusab,
		CountyName: county.Name,
	}
	if tract, ok := resp.first(layerTracts); ok {
		result.TractID = tract.Tract
	}
	return result, nil
}
