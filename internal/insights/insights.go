// Package insights turns a radius report into short market insights, either
// from fixed rules or from an LLM with the rules as fallback.
package insights

import (
	"context"
	"strconv"
	"strings"

	"github.com/sells-group/demographics-cli/internal/census"
	"github.com/sells-group/demographics-cli/internal/geo"
	"github.com/sells-group/demographics-cli/internal/radius"
	"github.com/sells-group/demographics-cli/internal/report"
)

// MaxPerCategory caps each insight list.
const MaxPerCategory = 4

// Engine names.
const (
	EngineRules = "rules"
	EngineLLM   = "llm"
)

// Insights are the generated lists plus how they were produced.
type Insights struct {
	Strengths          []string `json:"demographic_strengths"`
	Opportunities      []string `json:"market_opportunities"`
	TargetDemographics []string `json:"target_demographics"`
	Metadata           Metadata `json:"insights_metadata"`
}

// Metadata describes the engine that produced a set of insights.
type Metadata struct {
	Generated bool   `json:"generated"`
	Engine    string `json:"engine"`
	Model     string `json:"model,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Generator produces insights for a report.
type Generator interface {
	Generate(ctx context.Context, r *radius.Report, card report.Card) (*Insights, error)
}

// metrics are the inputs the rules read. Inner, mid, and outer are the
// smallest, middle, and largest requested radii.
type metrics struct {
	innerLabel string

	popInner, popMid, popOuter float64
	incomeMid                  float64
	eduMid                     float64
	ageMid                     float64
	hasAge                     bool
	unemploymentMid            float64
	hasUnemployment            bool

	popGrowth, incomeGrowth, jobGrowth float64
	years                              int

	dist    report.IncomeDistribution
	hasDist bool
}

func extractMetrics(r *radius.Report, card report.Card) metrics {
	m := metrics{years: yearSpan(r.CurrentYear, r.HistoricalYear)}
	if len(r.Radii) == 0 {
		return m
	}
	inner := geo.RadiusLabel(r.Radii[0])
	mid := geo.RadiusLabel(r.Radii[len(r.Radii)/2])
	outer := geo.RadiusLabel(r.Radii[len(r.Radii)-1])
	m.innerLabel = strings.Replace(inner, "_", "-", 1)

	m.popInner = value(r, inner, census.TotalPopulation)
	m.popMid = value(r, mid, census.TotalPopulation)
	m.popOuter = value(r, outer, census.TotalPopulation)
	m.incomeMid = value(r, mid, census.MedianHouseholdIncome)
	m.eduMid = value(r, mid, census.CollegeGradPercentage)
	m.ageMid, m.hasAge = lookup(r, mid, census.MedianAge)
	m.unemploymentMid, m.hasUnemployment = lookup(r, mid, census.UnemploymentRate)

	m.popGrowth = deref(r.Growth.PopulationGrowthPct)
	m.incomeGrowth = deref(r.Growth.IncomeGrowthPct)
	m.jobGrowth = deref(r.Growth.JobGrowthPct)

	m.dist, m.hasDist = card.IncomeDistribution[mid]
	return m
}

func lookup(r *radius.Report, label, name string) (float64, bool) {
	res, ok := r.RadiusData[label]
	if !ok || res.Status == radius.OutcomeFailed {
		return 0, false
	}
	return res.Current.Value(name)
}

func value(r *radius.Report, label, name string) float64 {
	v, _ := lookup(r, label, name)
	return v
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func yearSpan(current, historical string) int {
	c, err1 := strconv.Atoi(current)
	h, err2 := strconv.Atoi(historical)
	if err1 != nil || err2 != nil || c <= h {
		return 5
	}
	return c - h
}

// limit dedupes case-insensitively and caps the list.
func limit(items []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, MaxPerCategory)
	for _, s := range items {
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
		if len(out) == MaxPerCategory {
			break
		}
	}
	return out
}
