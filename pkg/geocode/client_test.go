package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const censusMatchJSON = `{"result":{"addressMatches":[{"coordinates":{"x":-97.7431,"y":30.2672},"matchedAddress":"100 CONGRESS AVE, AUSTIN, TX, 78701"}]}}`

const censusNoMatchJSON = `{"result":{"addressMatches":[]}}`

const googleMatchJSON = `{"status":"OK","results":[{"geometry":{"location":{"lat":30.2672,"lng":-97.7431},"location_type":"RANGE_INTERPOLATED"},"formatted_address":"100 Congress Ave, Austin, TX 78701, USA"}]}`

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient()
	g, ok := c.(*geocoder)
	require.True(t, ok)
	assert.NotNil(t, g.httpClient)
	assert.NotNil(t, g.limiter)
	assert.Empty(t, g.googleKey)
}

func TestNewClient_Options(t *testing.T) {
	hc := &http.Client{}
	c := NewClient(WithGoogleAPIKey("gkey"), WithHTTPClient(hc), WithRateLimit(2))
	g := c.(*geocoder)
	assert.Equal(t, "gkey", g.googleKey)
	assert.Same(t, hc, g.httpClient)
	assert.InDelta(t, 2.0, float64(g.limiter.Limit()), 0.001)
	assert.Equal(t, 2, g.limiter.Burst())
}

func TestGeocode_CensusMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100 Congress Ave, Austin, TX 78701", r.URL.Query().Get("address"))
		assert.Equal(t, censusBenchmark, r.URL.Query().Get("benchmark"))
		_, _ = w.Write([]byte(censusMatchJSON))
	}))
	defer srv.Close()

	g := &geocoder{httpClient: newRewriteClient(srv.URL, censusOneLineURL), limiter: newTestLimiter()}
	res, err := g.Geocode(context.Background(), AddressInput{Line: "100 Congress Ave, Austin, TX 78701"})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "census", res.Source)
	assert.Equal(t, "rooftop", res.Quality)
	assert.InDelta(t, 30.2672, res.Point().Lat, 1e-9)
	assert.InDelta(t, -97.7431, res.Point().Lng, 1e-9)
}

func TestGeocode_StructuredAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100 Congress Ave, Austin, TX, 78701", r.URL.Query().Get("address"))
		_, _ = w.Write([]byte(censusMatchJSON))
	}))
	defer srv.Close()

	g := &geocoder{httpClient: newRewriteClient(srv.URL, censusOneLineURL), limiter: newTestLimiter()}
	_, err := g.Geocode(context.Background(), AddressInput{
		Street: "100 Congress Ave", City: "Austin", State: "TX", ZipCode: "78701",
	})
	require.NoError(t, err)
}

func TestGeocode_EmptyAddress(t *testing.T) {
	g := &geocoder{httpClient: http.DefaultClient, limiter: newTestLimiter()}
	_, err := g.Geocode(context.Background(), AddressInput{Line: "   "})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrAddressNotFound))
}

func TestGeocode_NoMatchNoFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(censusNoMatchJSON))
	}))
	defer srv.Close()

	g := &geocoder{httpClient: newRewriteClient(srv.URL, censusOneLineURL), limiter: newTestLimiter()}
	_, err := g.Geocode(context.Background(), AddressInput{Line: "nowhere"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrAddressNotFound))
}

func TestGeocode_GoogleFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/census", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(censusNoMatchJSON))
	})
	mux.HandleFunc("/google", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gkey", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(googleMatchJSON))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := &geocoder{
		httpClient: &http.Client{Transport: pathRewrite{srv.URL}},
		googleKey:  "gkey",
		limiter:    newTestLimiter(),
	}

	res, err := g.Geocode(context.Background(), AddressInput{Line: "100 Congress Ave"})
	require.NoError(t, err)
	assert.Equal(t, "google", res.Source)
	assert.Equal(t, "range", res.Quality)
	assert.Equal(t, "100 Congress Ave, Austin, TX 78701, USA", res.MatchedAddress)
}

func TestGeocode_AllProvidersDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newMultiRewriteClient(srv.URL, censusOneLineURL, googleGeocodeURL),
		googleKey:  "gkey",
		limiter:    newTestLimiter(),
	}
	_, err := g.Geocode(context.Background(), AddressInput{Line: "100 Congress Ave"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnavailable))
	assert.NotContains(t, err.Error(), "gkey")
}

func TestGeocode_CensusDownGoogleNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("key") {
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newMultiRewriteClient(srv.URL, censusOneLineURL, googleGeocodeURL),
		googleKey:  "gkey",
		limiter:    newTestLimiter(),
	}
	_, err := g.Geocode(context.Background(), AddressInput{Line: "100 Congress Ave"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrAddressNotFound))
}

func TestGeocode_ContextCancelled(t *testing.T) {
	g := &geocoder{httpClient: http.DefaultClient, limiter: newTestLimiter()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Geocode(ctx, AddressInput{Line: "100 Congress Ave"})
	require.Error(t, err)
}

func TestFormatOneLine(t *testing.T) {
	tests := []struct {
		name string
		in   AddressInput
		want string
	}{
		{"line wins", AddressInput{Line: " 1 Main St ", Street: "ignored"}, "1 Main St"},
		{"full", AddressInput{Street: "1 Main St", City: "Austin", State: "TX", ZipCode: "78701"}, "1 Main St, Austin, TX, 78701"},
		{"partial", AddressInput{City: "Austin", State: "TX"}, "Austin, TX"},
		{"empty", AddressInput{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatOneLine(tt.in))
		})
	}
}

// pathRewrite sends census requests to /census and google requests to
// /google on the test server.
type pathRewrite struct{ server string }

func (p pathRewrite) RoundTrip(req *http.Request) (*http.Response, error) {
	path := "/census"
	if req.URL.Host == "maps.googleapis.com" {
		path = "/google"
	}
	target := p.server + path + "?" + req.URL.RawQuery
	newReq := req.Clone(req.Context())
	parsed, err := req.URL.Parse(target)
	if err != nil {
		return nil, err
	}
	newReq.URL = parsed
	newReq.Host = parsed.Host
	return http.DefaultTransport.RoundTrip(newReq)
}
