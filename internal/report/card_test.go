package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/demographics-cli/internal/census"
	"github.com/sells-group/demographics-cli/internal/radius"
)

func ptr(v float64) *float64 { return &v }

func snapshotWith(data map[string]float64) radius.Snapshot {
	return radius.Snapshot{Year: "2022", Data: data, Status: radius.OutcomeOK}
}

func bracketData(counts ...float64) map[string]float64 {
	data := map[string]float64{}
	for i, name := range census.IncomeBrackets() {
		if i < len(counts) {
			data[name] = counts[i]
		}
	}
	return data
}

func TestDistribution(t *testing.T) {
	// 9 brackets under 50k at 10 each, 3 at 20, 2 at 30, 2 at 40.
	data := bracketData(10, 10, 10, 10, 10, 10, 10, 10, 10, 20, 20, 20, 30, 30, 40, 40)
	d := Distribution(snapshotWith(data))

	assert.Equal(t, int64(290), d.Household)
	assert.InDelta(t, 90.0/290*100, d.Under50k, 1e-9)
	assert.InDelta(t, 60.0/290*100, d.From50k, 1e-9)
	assert.InDelta(t, 60.0/290*100, d.From100k, 1e-9)
	assert.InDelta(t, 80.0/290*100, d.Over150k, 1e-9)
	assert.InDelta(t, 100.0, d.Under50k+d.From50k+d.From100k+d.Over150k, 1e-9)
}

func TestDistribution_NoHouseholds(t *testing.T) {
	d := Distribution(snapshotWith(map[string]float64{census.TotalPopulation: 100}))
	assert.Equal(t, IncomeDistribution{}, d)
}

func TestBuildCard(t *testing.T) {
	cur := map[string]float64{
		census.TotalPopulation:       45123.4,
		census.MedianHouseholdIncome: 98765,
	}
	for k, v := range bracketData(1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1) {
		cur[k] = v
	}
	r := &radius.Report{
		RadiusData: map[string]radius.RadiusResult{
			"1_mile": {Label: "1_mile", Current: snapshotWith(cur), Status: radius.OutcomeOK},
			"3_mile": {Label: "3_mile", Status: radius.OutcomeFailed, Error: "boom"},
		},
		Growth: radius.Growth{
			PopulationGrowthPct:       ptr(14.2),
			IncomeGrowthPct:           nil,
			JobGrowthPct:              ptr(-2),
			UnemploymentRateChangePts: ptr(0.5),
		},
	}

	card := BuildCard(r)
	require.Contains(t, card.RadiusPopulations, "1_mile")
	assert.NotContains(t, card.RadiusPopulations, "3_mile")
	assert.Equal(t, Count{Value: 45123, Formatted: "45,123"}, card.RadiusPopulations["1_mile"])
	assert.Equal(t, Count{Value: 98765, Formatted: "$98,765"}, card.RadiusIncomes["1_mile"])
	assert.InDelta(t, 9.0/16*100, card.IncomeDistribution["1_mile"].Under50k, 1e-9)

	assert.Equal(t, "14.2%", card.GrowthTrends.PopulationGrowth.Formatted)
	assert.Equal(t, NotAvailable, card.GrowthTrends.IncomeGrowth.Formatted)
	assert.Nil(t, card.GrowthTrends.IncomeGrowth.Value)
	assert.Equal(t, "-2.0%", card.GrowthTrends.JobGrowth.Formatted)
	assert.Equal(t, "+0.5 pts", card.GrowthTrends.UnemploymentRateChange.Formatted)
}
