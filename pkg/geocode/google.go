package geocode

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// geocodeGoogle geocodes a single address using the Google Geocoding API.
func (g *geocoder) geocodeGoogle(ctx context.Context, line string) (*Result, error) {
	if g.googleKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	params := url.Values{
		"address": {line},
		"key":     {g.googleKey},
	}
	googleResp, err := getJSON[googleGeocodeResponse](ctx, g, googleGeocodeURL+"?"+params.Encode(), "google")
	if err != nil {
		return nil, err
	}

	switch googleResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &Result{Matched: false, Source: "google"}, nil
	default:
		return nil, eris.Errorf("geocode: google returned status %s", googleResp.Status)
	}
	if len(googleResp.Results) == 0 {
		return &Result{Matched: false, Source: "google"}, nil
	}

	result := googleResp.Results[0]
	return &Result{
		Latitude:       result.Geometry.Location.Lat,
		Longitude:      result.Geometry.Location.Lng,
		Source:         "google",
		Quality:        mapGoogleQuality(result.Geometry.LocationType),
		MatchedAddress: result.FormattedAddress,
		Matched:        true,
	}, nil
}

// mapGoogleQuality maps Google location_type to our quality levels.
func mapGoogleQuality(locationType string) string {
	switch locationType {
	case "ROOFTOP":
		return "rooftop"
	case "RANGE_INTERPOLATED":
		return "range"
	case "GEOMETRIC_CENTER":
		return "centroid"
	default:
		return "approximate"
	}
}
