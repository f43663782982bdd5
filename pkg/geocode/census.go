package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/demographics-cli/internal/fetcher"
)

const (
	censusOneLineURL     = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusCoordinatesURL = "https://geocoding.geo.census.gov/geocoder/geographies/coordinates"
	censusBenchmark      = "Public_AR_Current"
	censusVintage        = "Current_Current"
)

// censusOneLineResponse is the JSON response from the Census single-address API.
type censusOneLineResponse struct {
	Result struct {
		AddressMatches []censusAddressMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusAddressMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}

// getJSON issues a rate-limited GET and decodes a JSON object.
func getJSON[T any](ctx context.Context, g *geocoder, reqURL, what string) (*T, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "geocode: %s rate limit", what)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s build request", what)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = &url.Error{Op: uerr.Op, URL: fetcher.RedactURL(uerr.URL), Err: uerr.Err}
		}
		return nil, eris.Wrapf(err, "geocode: %s request", what)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: %s returned status %d", what, resp.StatusCode)
	}

	out, err := fetcher.DecodeJSONObject[T](resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s parse response", what)
	}
	return out, nil
}

// geocodeCensus geocodes a single address using the Census one-line API.
func (g *geocoder) geocodeCensus(ctx context.Context, line string) (*Result, error) {
	params := url.Values{
		"address":   {line},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}
	censusResp, err := getJSON[censusOneLineResponse](ctx, g, censusOneLineURL+"?"+params.Encode(), "census")
	if err != nil {
		return nil, err
	}

	if len(censusResp.Result.AddressMatches) == 0 {
		return &Result{Matched: false, Source: "census"}, nil
	}

	match := censusResp.Result.AddressMatches[0]
	return &Result{
		Latitude:       match.Coordinates.Y,
		Longitude:      match.Coordinates.X,
		Source:         "census",
		Quality:        "rooftop",
		MatchedAddress: match.MatchedAddress,
		Matched:        true,
	}, nil
}

// formatOneLine formats an address as a single line for the geocoders.
func formatOneLine(addr AddressInput) string {
	if line := strings.TrimSpace(addr.Line); line != "" {
		return line
	}
	parts := []string{addr.Street, addr.City, addr.State, addr.ZipCode}
	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
