package radius

import "github.com/sells-group/demographics-cli/internal/census"

// Growth compares a current and a historical snapshot. Nil fields could not
// be computed because a value was missing or the historical base was zero.
type Growth struct {
	PopulationGrowthPct       *float64 `json:"population_growth_pct"`
	IncomeGrowthPct           *float64 `json:"income_growth_pct"`
	JobGrowthPct              *float64 `json:"job_growth_pct"`
	UnemploymentRateChangePts *float64 `json:"unemployment_rate_change_pts"`
}

// ComputeGrowth derives percentage changes for population, median household
// income, and employment, and the unemployment rate change in points.
func ComputeGrowth(current, historical Snapshot) Growth {
	return Growth{
		PopulationGrowthPct:       pctChange(current, historical, census.TotalPopulation),
		IncomeGrowthPct:           pctChange(current, historical, census.MedianHouseholdIncome),
		JobGrowthPct:              pctChange(current, historical, census.Employed),
		UnemploymentRateChangePts: rateChange(current, historical),
	}
}

func pctChange(current, historical Snapshot, name string) *float64 {
	base, ok := historical.Value(name)
	if !ok || base <= 0 {
		return nil
	}
	now, ok := current.Value(name)
	if !ok {
		return nil
	}
	v := (now - base) / base * 100
	return &v
}

func unemploymentRate(s Snapshot) (float64, bool) {
	lf, ok := s.Value(census.LaborForce)
	if !ok || lf <= 0 {
		return 0, false
	}
	un, ok := s.Value(census.Unemployed)
	if !ok {
		return 0, false
	}
	return un / lf * 100, true
}

func rateChange(current, historical Snapshot) *float64 {
	cur, ok := unemploymentRate(current)
	if !ok {
		return nil
	}
	hist, ok := unemploymentRate(historical)
	if !ok {
		return nil
	}
	v := cur - hist
	return &v
}
