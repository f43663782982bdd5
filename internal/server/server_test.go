package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/demographics-cli/internal/demographics"
	"github.com/sells-group/demographics-cli/internal/geo"
	"github.com/sells-group/demographics-cli/pkg/geocode"
)

type mockLookuper struct {
	mock.Mock
}

func (m *mockLookuper) Lookup(ctx context.Context, address string, radii []float64) (*demographics.Result, error) {
	args := m.Called(ctx, address, radii)
	if r := args.Get(0); r != nil {
		return r.(*demographics.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLookuper) LookupPoint(ctx context.Context, p geo.GeoPoint, radii []float64) (*demographics.Result, error) {
	args := m.Called(ctx, p, radii)
	if r := args.Get(0); r != nil {
		return r.(*demographics.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	h := New(&mockLookuper{}, Options{Version: "1.2.3"})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
}

func TestRequestID(t *testing.T) {
	h := New(&mockLookuper{}, Options{})

	rec := do(t, h, http.MethodGet, "/health", "")
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(RequestIDHeader))
}

func TestLookupAddress_OK(t *testing.T) {
	svc := &mockLookuper{}
	svc.On("Lookup", mock.Anything, "1600 Pennsylvania Ave NW, Washington, DC", []float64{1, 3}).
		Return(&demographics.Result{
			Address:     "1600 Pennsylvania Ave NW, Washington, DC",
			Coordinates: demographics.Coordinates{Lat: 38.8977, Lng: -77.0365},
		}, nil)
	h := New(svc, Options{})

	rec := do(t, h, http.MethodPost, "/demographics",
		`{"address":"1600 Pennsylvania Ave NW, Washington, DC","radii":[1,3]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Address     string                   `json:"address"`
		Coordinates demographics.Coordinates `json:"coordinates"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "1600 Pennsylvania Ave NW, Washington, DC", body.Address)
	assert.InDelta(t, 38.8977, body.Coordinates.Lat, 1e-9)
	svc.AssertExpectations(t)
}

func TestLookupAddress_DefaultRadii(t *testing.T) {
	svc := &mockLookuper{}
	svc.On("Lookup", mock.Anything, "Austin, TX", []float64(nil)).
		Return(&demographics.Result{Address: "Austin, TX"}, nil)
	h := New(svc, Options{})

	rec := do(t, h, http.MethodPost, "/demographics", `{"address":"Austin, TX"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestLookupAddress_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"address":`, "invalid request body"},
		{"missing address", `{"radii":[1]}`, "address is required"},
		{"negative radius", `{"address":"x","radii":[1,-2]}`, "radii must be positive numbers"},
		{"zero radius", `{"address":"x","radii":[0]}`, "radii must be positive numbers"},
		{"too large", `{"address":"x","radii":[250]}`, "radii must not exceed 100 miles"},
		{"too many", `{"address":"x","radii":[1,2,3,4,5,6,7,8,9,10,11]}`, "at most 10 radii are allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockLookuper{}
			h := New(svc, Options{})

			rec := do(t, h, http.MethodPost, "/demographics", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeError(t, rec))
			svc.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLookupAddress_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found", eris.Wrap(geocode.ErrAddressNotFound, "demographics: geocode"), http.StatusNotFound, "address not found"},
		{"unresolved", eris.Wrap(geocode.ErrLocationNotResolved, "demographics: reverse geocode"), http.StatusUnprocessableEntity, "location could not be resolved to a census tract"},
		{"unavailable", eris.Wrap(geocode.ErrUnavailable, "demographics: geocode"), http.StatusBadGateway, "geocoding service unavailable"},
		{"timeout", eris.Wrap(context.DeadlineExceeded, "demographics: radius engine"), http.StatusGatewayTimeout, "Gateway Timeout"},
		{"other", eris.New("boom"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockLookuper{}
			svc.On("Lookup", mock.Anything, "somewhere", []float64(nil)).Return(nil, tt.err)
			h := New(svc, Options{})

			rec := do(t, h, http.MethodPost, "/demographics", `{"address":"somewhere"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, decodeError(t, rec))
		})
	}
}

func TestLookupPoint_OK(t *testing.T) {
	svc := &mockLookuper{}
	svc.On("LookupPoint", mock.Anything, geo.GeoPoint{Lat: 30.2672, Lng: -97.7431}, []float64{5}).
		Return(&demographics.Result{Coordinates: demographics.Coordinates{Lat: 30.2672, Lng: -97.7431}}, nil)
	h := New(svc, Options{})

	rec := do(t, h, http.MethodPost, "/demographics/point", `{"lat":30.2672,"lng":-97.7431,"radii":[5]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestLookupPoint_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing lng", `{"lat":30.2}`, "lat and lng are required"},
		{"lat out of range", `{"lat":91,"lng":0}`, "lat/lng out of range"},
		{"lng out of range", `{"lat":0,"lng":-181}`, "lat/lng out of range"},
		{"bad radii", `{"lat":0,"lng":0,"radii":[-1]}`, "radii must be positive numbers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&mockLookuper{}, Options{})
			rec := do(t, h, http.MethodPost, "/demographics/point", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeError(t, rec))
		})
	}
}

func TestLookupPoint_ZeroCoordinatesAllowed(t *testing.T) {
	svc := &mockLookuper{}
	svc.On("LookupPoint", mock.Anything, geo.GeoPoint{}, []float64(nil)).
		Return(nil, eris.Wrap(geocode.ErrLocationNotResolved, "demographics: reverse geocode"))
	h := New(svc, Options{})

	rec := do(t, h, http.MethodPost, "/demographics/point", `{"lat":0,"lng":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	svc.AssertExpectations(t)
}

func TestRateLimit(t *testing.T) {
	svc := &mockLookuper{}
	svc.On("Lookup", mock.Anything, "x", []float64(nil)).Return(&demographics.Result{}, nil)
	h := New(svc, Options{RateLimit: 1})

	first := do(t, h, http.MethodPost, "/demographics", `{"address":"x"}`)
	second := do(t, h, http.MethodPost, "/demographics", `{"address":"x"}`)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Health is never rate limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestCORS(t *testing.T) {
	h := New(&mockLookuper{}, Options{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/demographics", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/demographics", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	h := New(&mockLookuper{}, Options{})
	rec := do(t, h, http.MethodGet, "/demographics", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
