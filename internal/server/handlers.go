package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/geo"
	"github.com/sells-group/demographics-cli/internal/radius"
	"github.com/sells-group/demographics-cli/pkg/geocode"
)

const (
	maxBodyBytes = 1 << 16
	// MaxRadii bounds the radii accepted per request.
	MaxRadii = 10
	// MaxRadiusMiles bounds a single requested radius.
	MaxRadiusMiles = 100.0
)

type addressRequest struct {
	Address string    `json:"address"`
	Radii   []float64 `json:"radii"`
}

type pointRequest struct {
	Lat   *float64  `json:"lat"`
	Lng   *float64  `json:"lng"`
	Radii []float64 `json:"radii"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{"status": "ok"}
	if h.version != "" {
		body["version"] = h.version
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) lookupAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	if err := validateRadii(req.Radii); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Lookup(r.Context(), req.Address, req.Radii)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) lookupPoint(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	p := geo.GeoPoint{Lat: *req.Lat, Lng: *req.Lng}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		writeError(w, http.StatusBadRequest, "lat/lng out of range")
		return
	}
	if err := validateRadii(req.Radii); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.LookupPoint(r.Context(), p, req.Radii)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// validateRadii accepts an empty list, which selects the configured defaults.
func validateRadii(radii []float64) error {
	if len(radii) == 0 {
		return nil
	}
	if len(radii) > MaxRadii {
		return eris.Errorf("at most %d radii are allowed", MaxRadii)
	}
	norm, err := radius.NormalizeRadii(radii)
	if err != nil {
		return eris.New("radii must be positive numbers")
	}
	if norm[len(norm)-1] > MaxRadiusMiles {
		return eris.Errorf("radii must not exceed %g miles", MaxRadiusMiles)
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps lookup errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case eris.Is(err, geocode.ErrAddressNotFound):
		return http.StatusNotFound
	case eris.Is(err, geocode.ErrLocationNotResolved):
		return http.StatusUnprocessableEntity
	case eris.Is(err, geocode.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	switch status {
	case http.StatusNotFound:
		msg = "address not found"
	case http.StatusUnprocessableEntity:
		msg = "location could not be resolved to a census tract"
	case http.StatusBadGateway:
		msg = "geocoding service unavailable"
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("demographics lookup failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", w.Header().Get(RequestIDHeader)),
			zap.Error(err),
		)
	}
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}
