// Package demographics runs a full lookup: geocode, resolve the county,
// run the radius engine, format the card, and generate insights.
package demographics

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/census"
	"github.com/sells-group/demographics-cli/internal/geo"
	"github.com/sells-group/demographics-cli/internal/insights"
	"github.com/sells-group/demographics-cli/internal/radius"
	"github.com/sells-group/demographics-cli/internal/report"
	"github.com/sells-group/demographics-cli/pkg/geocode"
)

// Geocoder resolves addresses and points.
type Geocoder interface {
	Geocode(ctx context.Context, addr geocode.AddressInput) (*geocode.Result, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (*geocode.ReverseResult, error)
}

// Engine computes radius demographics.
type Engine interface {
	Run(ctx context.Context, req radius.Request) (*radius.Report, error)
}

// Config holds request defaults.
type Config struct {
	Radii          []float64
	CurrentYear    string
	HistoricalYear string
	Variables      census.VariableSet
	// Timeout bounds a whole lookup. Zero means no limit.
	Timeout       time.Duration
	IncludeTracts bool
}

// Coordinates is the geocoded center.
type Coordinates struct {
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	MatchedAddress string  `json:"matched_address,omitempty"`
	Source         string  `json:"source,omitempty"`
	Quality        string  `json:"quality,omitempty"`
}

// Performance records phase durations in seconds.
type Performance struct {
	GeocodingTime    float64 `json:"geocoding_time"`
	ReverseTime      float64 `json:"reverse_geocoding_time"`
	DemographicsTime float64 `json:"demographics_time"`
	InsightsTime     float64 `json:"insights_time"`
	TotalTime        float64 `json:"total_time"`
}

// Result is the full lookup output.
type Result struct {
	Address      string                `json:"address,omitempty"`
	Coordinates  Coordinates           `json:"coordinates"`
	Location     geocode.ReverseResult `json:"location"`
	Demographics *radius.Report        `json:"demographics"`
	Card         report.Card           `json:"formatted_data"`
	Insights     *insights.Insights    `json:"market_insights,omitempty"`
	Performance  Performance           `json:"performance"`
}

// Service wires the lookup phases.
type Service struct {
	geocoder Geocoder
	engine   Engine
	insights insights.Generator
	cfg      Config
}

// NewService creates a Service. gen may be nil to skip insights.
func NewService(g Geocoder, engine Engine, gen insights.Generator, cfg Config) *Service {
	if len(cfg.Radii) == 0 {
		cfg.Radii = []float64{1, 3, 5}
	}
	return &Service{geocoder: g, engine: engine, insights: gen, cfg: cfg}
}

// Lookup geocodes address and runs the lookup around it. Geocoding errors
// are returned; downstream failures degrade the result instead.
func (s *Service) Lookup(ctx context.Context, address string, radii []float64) (*Result, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.geocoder.Geocode(ctx, geocode.AddressInput{Line: address})
	if err != nil {
		return nil, eris.Wrap(err, "demographics: geocode")
	}
	geocodeSecs := time.Since(start).Seconds()

	out, err := s.run(ctx, res.Point(), radii, start)
	if err != nil {
		return nil, err
	}
	out.Address = address
	out.Coordinates.MatchedAddress = res.MatchedAddress
	out.Coordinates.Source = res.Source
	out.Coordinates.Quality = res.Quality
	out.Performance.GeocodingTime = geocodeSecs
	return out, nil
}

// LookupPoint runs the lookup around a known point.
func (s *Service) LookupPoint(ctx context.Context, p geo.GeoPoint, radii []float64) (*Result, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.run(ctx, p, radii, time.Now())
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) run(ctx context.Context, p geo.GeoPoint, radii []float64, start time.Time) (*Result, error) {
	log := zap.L().With(zap.String("component", "demographics"),
		zap.Float64("lat", p.Lat), zap.Float64("lng", p.Lng))
	if len(radii) == 0 {
		radii = s.cfg.Radii
	}

	phase := time.Now()
	loc, err := s.geocoder.ReverseGeocode(ctx, p.Lat, p.Lng)
	if err != nil {
		return nil, eris.Wrap(err, "demographics: reverse geocode")
	}
	out := &Result{
		Coordinates: Coordinates{Lat: p.Lat, Lng: p.Lng},
		Location:    *loc,
	}
	out.Performance.ReverseTime = time.Since(phase).Seconds()

	phase = time.Now()
	rep, err := s.engine.Run(ctx, radius.Request{
		Center:         p,
		Radii:          radii,
		County:         loc.County(),
		Variables:      s.cfg.Variables,
		CurrentYear:    s.cfg.CurrentYear,
		HistoricalYear: s.cfg.HistoricalYear,
		IncludeTracts:  s.cfg.IncludeTracts,
	})
	if err != nil {
		return nil, eris.Wrap(err, "demographics: radius engine")
	}
	out.Demographics = rep
	out.Card = report.BuildCard(rep)
	out.Performance.DemographicsTime = time.Since(phase).Seconds()

	if s.insights != nil {
		phase = time.Now()
		ins, err := s.insights.Generate(ctx, rep, out.Card)
		if err != nil {
			log.Warn("insights unavailable", zap.Error(err))
		} else {
			out.Insights = ins
		}
		out.Performance.InsightsTime = time.Since(phase).Seconds()
	}

	out.Performance.TotalTime = time.Since(start).Seconds()
	log.Info("demographics lookup complete",
		zap.String("county", loc.County().String()),
		zap.Int("errors", len(rep.Errors)),
		zap.Float64("total_secs", out.Performance.TotalTime),
	)
	return out, nil
}
