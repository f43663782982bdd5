// Package report shapes a radius report into the display values shown on a
// demographics card.
package report

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/demographics-cli/internal/census"
	"github.com/sells-group/demographics-cli/internal/radius"
)

// NotAvailable is shown for values that could not be computed.
const NotAvailable = "N/A"

// Count is an integer with its display string.
type Count struct {
	Value     int64  `json:"value"`
	Formatted string `json:"formatted"`
}

// Trend is a nullable change with its display string.
type Trend struct {
	Value     *float64 `json:"value"`
	Formatted string   `json:"formatted"`
}

// IncomeDistribution holds the share of households per income band, in
// percent of all households counted across the bracket variables.
type IncomeDistribution struct {
	Under50k  float64 `json:"under_50k"`
	From50k   float64 `json:"50k_100k"`
	From100k  float64 `json:"100k_150k"`
	Over150k  float64 `json:"150k_plus"`
	Household int64   `json:"households"`
}

// GrowthTrends are the formatted growth metrics.
type GrowthTrends struct {
	PopulationGrowth       Trend `json:"population_growth"`
	IncomeGrowth           Trend `json:"income_growth"`
	JobGrowth              Trend `json:"job_growth"`
	UnemploymentRateChange Trend `json:"unemployment_rate_change"`
}

// Card is the demographics card. Maps are keyed by radius label; failed
// radii are omitted.
type Card struct {
	RadiusPopulations  map[string]Count              `json:"radius_populations"`
	RadiusIncomes      map[string]Count              `json:"radius_incomes"`
	IncomeDistribution map[string]IncomeDistribution `json:"income_distribution"`
	GrowthTrends       GrowthTrends                  `json:"growth_trends"`
}

// incomeBands groups the sixteen household income brackets, in order, into
// the four card bands.
var incomeBands = [4]int{9, 3, 2, 2}

var printer = message.NewPrinter(language.English)

// BuildCard formats r for display.
func BuildCard(r *radius.Report) Card {
	card := Card{
		RadiusPopulations:  map[string]Count{},
		RadiusIncomes:      map[string]Count{},
		IncomeDistribution: map[string]IncomeDistribution{},
		GrowthTrends: GrowthTrends{
			PopulationGrowth:       percentTrend(r.Growth.PopulationGrowthPct),
			IncomeGrowth:           percentTrend(r.Growth.IncomeGrowthPct),
			JobGrowth:              percentTrend(r.Growth.JobGrowthPct),
			UnemploymentRateChange: pointsTrend(r.Growth.UnemploymentRateChangePts),
		},
	}
	for label, res := range r.RadiusData {
		if res.Status == radius.OutcomeFailed {
			continue
		}
		pop := rounded(res.Current, census.TotalPopulation)
		card.RadiusPopulations[label] = Count{Value: pop, Formatted: printer.Sprintf("%d", pop)}
		income := rounded(res.Current, census.MedianHouseholdIncome)
		card.RadiusIncomes[label] = Count{Value: income, Formatted: printer.Sprintf("$%d", income)}
		card.IncomeDistribution[label] = Distribution(res.Current)
	}
	return card
}

// Distribution computes the income band shares of one snapshot. All shares
// are zero when no household was counted.
func Distribution(s radius.Snapshot) IncomeDistribution {
	brackets := census.IncomeBrackets()
	var bands [4]float64
	total := 0.0
	i := 0
	for band, n := range incomeBands {
		for range n {
			v, _ := s.Value(brackets[i])
			bands[band] += v
			total += v
			i++
		}
	}
	if total <= 0 {
		return IncomeDistribution{}
	}
	return IncomeDistribution{
		Under50k:  bands[0] / total * 100,
		From50k:   bands[1] / total * 100,
		From100k:  bands[2] / total * 100,
		Over150k:  bands[3] / total * 100,
		Household: int64(math.Round(total)),
	}
}

func rounded(s radius.Snapshot, name string) int64 {
	v, _ := s.Value(name)
	return int64(math.Round(v))
}

func percentTrend(v *float64) Trend {
	if v == nil {
		return Trend{Formatted: NotAvailable}
	}
	return Trend{Value: v, Formatted: fmt.Sprintf("%.1f%%", *v)}
}

func pointsTrend(v *float64) Trend {
	if v == nil {
		return Trend{Formatted: NotAvailable}
	}
	return Trend{Value: v, Formatted: fmt.Sprintf("%+.1f pts", *v)}
}
