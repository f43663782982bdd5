package radius

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/demographics-cli/internal/census"
	"github.com/sells-group/demographics-cli/internal/geo"
)

// Outcome tags how complete a computed unit is.
type Outcome string

// Outcomes.
const (
	OutcomeOK      Outcome = "ok"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// Snapshot is the aggregate of one tract set for one year. Data holds the
// semantic variable names plus derived ratios.
type Snapshot struct {
	Year       string             `json:"year"`
	Data       map[string]float64 `json:"data"`
	TractCount int                `json:"tract_count"`
	Coverage   string             `json:"coverage"`
	Status     Outcome            `json:"status"`
	Errors     []string           `json:"errors,omitempty"`
}

// Value returns a data field and whether it is present.
func (s Snapshot) Value(name string) (float64, bool) {
	v, ok := s.Data[name]
	return v, ok
}

// TableQuerier issues one county-wide tract query.
type TableQuerier interface {
	Query(ctx context.Context, q census.Query) (*census.Table, error)
}

// Aggregator fetches tract variables in one request per county and rolls
// them up by each variable's mode.
type Aggregator struct {
	client  TableQuerier
	dataset string
	// maxConcurrent bounds in-flight county requests per call.
	maxConcurrent int
}

// NewAggregator creates an Aggregator. An empty dataset uses the ACS 5-year tables.
func NewAggregator(client TableQuerier, dataset string) *Aggregator {
	if dataset == "" {
		dataset = census.DefaultACSDataset
	}
	return &Aggregator{client: client, dataset: dataset, maxConcurrent: 8}
}

type partitionResult struct {
	county geo.CountyKey
	rows   []census.TractRow
	err    error
}

// Aggregate rolls up vars across tracts for year. County partitions are
// fetched concurrently; a failed partition is logged, recorded in Errors,
// and contributes nothing. Aggregate never returns an error.
func (a *Aggregator) Aggregate(ctx context.Context, tracts []geo.SelectedTract, year string, vars census.VariableSet) Snapshot {
	snap := Snapshot{Year: year, Data: map[string]float64{}, Status: OutcomeOK}
	if len(tracts) == 0 {
		snap.Coverage = "0/0 tracts"
		return snap
	}

	// Partition by county, preserving first-seen order.
	var order []geo.CountyKey
	targets := map[geo.CountyKey]map[string]struct{}{}
	for _, t := range tracts {
		key := t.County()
		if _, ok := targets[key]; !ok {
			targets[key] = map[string]struct{}{}
			order = append(order, key)
		}
		targets[key][t.TractID] = struct{}{}
	}

	results := make([]partitionResult, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrent)
	for i, key := range order {
		g.Go(func() error {
			table, err := a.client.Query(gctx, census.Query{
				Year:    year,
				Dataset: a.dataset,
				Get:     vars.Codes(),
				County:  key,
			})
			if err != nil {
				zap.L().Warn("radius: county partition failed",
					zap.String("county", key.String()),
					zap.String("year", year),
					zap.Error(err),
				)
				results[i] = partitionResult{county: key, err: err}
				return nil //nolint:nilerr // partition failures degrade coverage
			}
			want := targets[key]
			rows := make([]census.TractRow, 0, len(want))
			for _, row := range table.Rows {
				if _, ok := want[row.Tract.TractID]; ok {
					rows = append(rows, row)
				}
			}
			results[i] = partitionResult{county: key, rows: rows}
			return nil
		})
	}
	_ = g.Wait()

	sums := map[string]float64{}
	medians := map[string][]float64{}
	contributed := map[geo.TractRef]struct{}{}
	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			snap.Errors = append(snap.Errors, fmt.Sprintf("county %s: %v", res.county, res.err))
			continue
		}
		for _, row := range res.rows {
			for _, v := range vars.All() {
				val, ok := row.Value(v.Code)
				if !ok {
					continue
				}
				contributed[row.Tract] = struct{}{}
				switch v.Mode {
				case census.ModeSum:
					sums[v.Name] += val
				case census.ModeMedian:
					medians[v.Name] = append(medians[v.Name], val)
				}
			}
		}
	}

	for name, total := range sums {
		snap.Data[name] = total
	}
	for name, values := range medians {
		snap.Data[name] = median(values)
	}
	deriveRatios(snap.Data)

	snap.TractCount = len(contributed)
	snap.Coverage = fmt.Sprintf("%d/%d tracts", snap.TractCount, len(tracts))
	switch {
	case failed == len(results):
		snap.Status = OutcomeFailed
	case failed > 0:
		snap.Status = OutcomePartial
	}
	return snap
}

// deriveRatios adds unemployment_rate and college_grad_percentage when
// their denominators are positive.
func deriveRatios(data map[string]float64) {
	if lf := data[census.LaborForce]; lf > 0 {
		if un, ok := data[census.Unemployed]; ok {
			data[census.UnemploymentRate] = un / lf * 100
		}
	}
	if pop := data[census.TotalPopulation]; pop > 0 {
		grads := 0.0
		found := false
		for _, name := range []string{census.BachelorsDegree, census.MastersDegree, census.ProfessionalDegree, census.DoctorateDegree} {
			if v, ok := data[name]; ok {
				grads += v
				found = true
			}
		}
		if found {
			data[census.CollegeGradPercentage] = grads / pop * 100
		}
	}
}

// median returns the middle value, averaging the two middle values for an
// even count. values must be non-empty.
func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
