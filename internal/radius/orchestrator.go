package radius

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/demographics-cli/internal/census"
	"github.com/sells-group/demographics-cli/internal/geo"
)

// TractLister lists the tracts of a county.
type TractLister interface {
	ListTracts(ctx context.Context, county geo.CountyKey) ([]geo.TractRef, error)
}

// CentroidProvider resolves tract centroids for a county.
type CentroidProvider interface {
	ResolveCentroids(ctx context.Context, county geo.CountyKey) (census.CentroidSet, error)
}

// TractSelector picks tracts for one radius.
type TractSelector interface {
	SelectTracts(ctx context.Context, catalog []geo.TractRef, centroids census.CentroidSet, center geo.GeoPoint, radiusMiles float64) Selection
}

// SnapshotAggregator rolls up tract variables for one year.
type SnapshotAggregator interface {
	Aggregate(ctx context.Context, tracts []geo.SelectedTract, year string, vars census.VariableSet) Snapshot
}

// Request is one engine run.
type Request struct {
	Center         geo.GeoPoint
	Radii          []float64
	County         geo.CountyKey
	Variables      census.VariableSet
	CurrentYear    string
	HistoricalYear string
	// IncludeTracts attaches the selected tracts to each RadiusResult.
	IncludeTracts bool
}

// RadiusResult is the outcome for one radius. A failed radius carries
// zero-valued snapshots and an Error.
type RadiusResult struct {
	RadiusMiles       float64               `json:"radius_miles"`
	Label             string                `json:"label"`
	Current           Snapshot              `json:"current"`
	Historical        Snapshot              `json:"historical"`
	TractCount        int                   `json:"tract_count"`
	WithinRadiusCount int                   `json:"within_radius_count"`
	Approximated      bool                  `json:"approximated"`
	SelectionMethod   SelectionMethod       `json:"selection_method,omitempty"`
	CentroidSource    census.CentroidSource `json:"centroid_source,omitempty"`
	Status            Outcome               `json:"status"`
	Error             string                `json:"error,omitempty"`
	Warnings          []string              `json:"warnings,omitempty"`
	Tracts            []geo.SelectedTract   `json:"tracts,omitempty"`
}

// Population returns the current total population, or zero.
func (r RadiusResult) Population() int64 {
	v, _ := r.Current.Value(census.TotalPopulation)
	return int64(math.Round(v))
}

// Report is the full engine output for one center point.
type Report struct {
	Location       geo.GeoPoint            `json:"location"`
	State          string                  `json:"state"`
	County         string                  `json:"county"`
	CurrentYear    string                  `json:"current_year"`
	HistoricalYear string                  `json:"historical_year"`
	Radii          []float64               `json:"radii"`
	RadiusData     map[string]RadiusResult `json:"radius_data"`
	Growth         Growth                  `json:"growth_metrics"`
	GrowthRadius   string                  `json:"growth_radius"`
	MapCircles     []geo.MapCircle         `json:"map_circles"`
	Errors         []string                `json:"errors,omitempty"`
}

// Largest returns the result for the largest radius.
func (r *Report) Largest() (RadiusResult, bool) {
	res, ok := r.RadiusData[r.GrowthRadius]
	return res, ok
}

// Orchestrator runs selection and aggregation for every radius concurrently.
type Orchestrator struct {
	catalog    TractLister
	centroids  CentroidProvider
	selector   TractSelector
	aggregator SnapshotAggregator
}

// NewOrchestrator wires the engine components. The catalog and centroid
// provider are shared across radii and requests.
func NewOrchestrator(catalog TractLister, centroids CentroidProvider, selector TractSelector, aggregator SnapshotAggregator) *Orchestrator {
	return &Orchestrator{
		catalog:    catalog,
		centroids:  centroids,
		selector:   selector,
		aggregator: aggregator,
	}
}

// NormalizeRadii drops duplicates and sorts ascending. Every radius must be
// positive and finite.
func NormalizeRadii(radii []float64) ([]float64, error) {
	if len(radii) == 0 {
		return nil, eris.New("radius: no radii requested")
	}
	out := make([]float64, 0, len(radii))
	for _, r := range radii {
		if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, eris.Errorf("radius: invalid radius %v", r)
		}
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Run computes a RadiusResult for every requested radius. It fails only on
// an invalid request; per-radius failures become failed results.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Report, error) {
	radii, err := NormalizeRadii(req.Radii)
	if err != nil {
		return nil, err
	}
	if req.Variables.Len() == 0 {
		return nil, eris.New("radius: empty variable set")
	}
	if req.CurrentYear == "" || req.HistoricalYear == "" {
		return nil, eris.New("radius: current and historical years are required")
	}

	log := zap.L().With(
		zap.String("component", "radius"),
		zap.String("county", req.County.String()),
	)

	results := make([]RadiusResult, len(radii))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range radii {
		g.Go(func() error {
			res, err := o.runRadius(gctx, req, r)
			if err != nil {
				log.Warn("radius unit failed", zap.Float64("radius_miles", r), zap.Error(err))
				res = failedResult(req, r, err)
			}
			results[i] = res
			return nil //nolint:nilerr // a failed radius becomes a failed result
		})
	}
	_ = g.Wait()

	report := &Report{
		Location:       req.Center,
		State:          req.County.StateFIPS,
		County:         req.County.CountyFIPS,
		CurrentYear:    req.CurrentYear,
		HistoricalYear: req.HistoricalYear,
		Radii:          radii,
		RadiusData:     make(map[string]RadiusResult, len(radii)),
	}
	populations := make(map[string]int64, len(radii))
	for _, res := range results {
		report.RadiusData[res.Label] = res
		populations[res.Label] = res.Population()
		if res.Error != "" {
			report.Errors = append(report.Errors, res.Label+": "+res.Error)
		}
	}

	report.GrowthRadius = geo.RadiusLabel(radii[len(radii)-1])
	if largest := report.RadiusData[report.GrowthRadius]; largest.Status != OutcomeFailed {
		report.Growth = ComputeGrowth(largest.Current, largest.Historical)
	}
	report.MapCircles = geo.BuildCircles(req.Center, radii, populations)

	log.Info("radius demographics complete",
		zap.Int("radii", len(radii)),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func (o *Orchestrator) runRadius(ctx context.Context, req Request, radiusMiles float64) (RadiusResult, error) {
	res := RadiusResult{
		RadiusMiles: radiusMiles,
		Label:       geo.RadiusLabel(radiusMiles),
	}

	catalog, err := o.catalog.ListTracts(ctx, req.County)
	if err != nil {
		return res, eris.Wrapf(err, "radius: %s catalog", res.Label)
	}
	centroids, err := o.centroids.ResolveCentroids(ctx, req.County)
	if err != nil {
		return res, eris.Wrapf(err, "radius: %s centroids", res.Label)
	}

	sel := o.selector.SelectTracts(ctx, catalog, centroids, req.Center, radiusMiles)
	res.SelectionMethod = sel.Method
	res.CentroidSource = centroids.Source
	res.Warnings = sel.Warnings
	res.TractCount = len(sel.Tracts)
	res.WithinRadiusCount = sel.WithinRadiusCount()
	res.Approximated = sel.Method == MethodApproximate
	if req.IncludeTracts {
		res.Tracts = sel.Tracts
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.Current = o.aggregator.Aggregate(gctx, sel.Tracts, req.CurrentYear, req.Variables)
		return nil
	})
	g.Go(func() error {
		res.Historical = o.aggregator.Aggregate(gctx, sel.Tracts, req.HistoricalYear, req.Variables)
		return nil
	})
	_ = g.Wait()

	if res.Current.Status == OutcomeFailed {
		return res, eris.Errorf("radius: %s current year %s: %s", res.Label, req.CurrentYear, strings.Join(res.Current.Errors, "; "))
	}
	res.Status = OutcomeOK
	if res.Current.Status == OutcomePartial || res.Historical.Status != OutcomeOK {
		res.Status = OutcomePartial
	}
	return res, nil
}

func failedResult(req Request, radiusMiles float64, err error) RadiusResult {
	return RadiusResult{
		RadiusMiles: radiusMiles,
		Label:       geo.RadiusLabel(radiusMiles),
		Current:     Snapshot{Year: req.CurrentYear, Data: map[string]float64{}, Coverage: "0/0 tracts", Status: OutcomeFailed},
		Historical:  Snapshot{Year: req.HistoricalYear, Data: map[string]float64{}, Coverage: "0/0 tracts", Status: OutcomeFailed},
		Status:      OutcomeFailed,
		Error:       err.Error(),
	}
}
