// Package geocode resolves addresses to coordinates via the Census Geocoder
// (primary) and Google (fallback), and resolves coordinates back to their
// state, county, and census tract.
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/demographics-cli/internal/geo"
)

var (
	// ErrAddressNotFound means no provider matched the address.
	ErrAddressNotFound = eris.New("geocode: address not found")

	// ErrLocationNotResolved means a point could not be placed in a state,
	// county, and tract.
	ErrLocationNotResolved = eris.New("geocode: location not resolved")

	// ErrUnavailable means every configured provider failed outright.
	ErrUnavailable = eris.New("geocode: geocoder unavailable")
)

// Client geocodes addresses and reverse geocodes points.
type Client interface {
	// Geocode geocodes a single address. It fails with ErrAddressNotFound
	// when no provider matches.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)

	// ReverseGeocode returns the state, county, and tract containing a
	// point. It fails with ErrLocationNotResolved.
	ReverseGeocode(ctx context.Context, lat, lng float64) (*ReverseResult, error)

	// TractAt returns the tract containing p.
	TractAt(ctx context.Context, p geo.GeoPoint) (geo.TractRef, error)
}

// AddressInput represents an address to geocode. Line, when set, is used
// verbatim instead of the structured fields.
type AddressInput struct {
	Line    string
	Street  string
	City    string
	State   string
	ZipCode string
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude       float64 `json:"lat"`
	Longitude      float64 `json:"lng"`
	Source         string  `json:"source"`  // "census" or "google"
	Quality        string  `json:"quality"` // "rooftop", "range", "centroid", "approximate"
	MatchedAddress string  `json:"matched_address,omitempty"`
	Matched        bool    `json:"-"`
}

// Point returns the result as a GeoPoint.
func (r *Result) Point() geo.GeoPoint {
	return geo.GeoPoint{Lat: r.Latitude, Lng: r.Longitude}
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for both Census and Google requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit for geocoder calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

type geocoder struct {
	httpClient *http.Client
	googleKey  string
	limiter    *rate.Limiter
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode geocodes a single address, trying Census first, then Google if configured.
func (g *geocoder) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	line := formatOneLine(addr)
	if line == "" {
		return nil, eris.Wrap(ErrAddressNotFound, "geocode: empty address")
	}

	result, censusErr := g.geocodeCensus(ctx, line)
	if censusErr == nil && result.Matched {
		return result, nil
	}
	if censusErr != nil {
		zap.L().Warn("geocode: census geocoder failed", zap.Error(censusErr))
	}

	var googleErr error
	if g.googleKey != "" {
		var googleResult *Result
		googleResult, googleErr = g.geocodeGoogle(ctx, line)
		if googleErr == nil && googleResult.Matched {
			return googleResult, nil
		}
		if googleErr != nil {
			zap.L().Warn("geocode: google geocoder failed", zap.Error(googleErr))
		}
	}

	if censusErr != nil && (g.googleKey == "" || googleErr != nil) {
		return nil, eris.Wrapf(ErrUnavailable, "geocode: %q: %s", line, censusErr.Error())
	}
	return nil, eris.Wrapf(ErrAddressNotFound, "geocode: %q", line)
}

// TractAt implements the tract lookup used when centroids are unavailable.
func (g *geocoder) TractAt(ctx context.Context, p geo.GeoPoint) (geo.TractRef, error) {
	rev, err := g.ReverseGeocode(ctx, p.Lat, p.Lng)
	if err != nil {
		return geo.TractRef{}, err
	}
	if rev.TractID == "" {
		return geo.TractRef{}, eris.Wrapf(ErrLocationNotResolved, "geocode: no tract at %.6f,%.6f", p.Lat, p.Lng)
	}
	return rev.Tract(), nil
}
