package report

import (
	"io"
	"maps"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/demographics-cli/internal/geo"
	"github.com/sells-group/demographics-cli/internal/radius"
)

// Workbook sheet names.
const (
	SheetSummary   = "Summary"
	SheetVariables = "Variables"
	SheetGrowth    = "Growth"
)

// WriteWorkbook writes r as an XLSX workbook with a per-radius summary, every
// aggregated variable for both years, and the growth metrics.
func WriteWorkbook(w io.Writer, r *radius.Report, card Card) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	addStrings(summary, "Radius", "Status", "Population", "Median Income", "Tracts", "Within Radius", "Coverage", "Selection")
	for _, rad := range r.Radii {
		label := geo.RadiusLabel(rad)
		res, ok := r.RadiusData[label]
		if !ok {
			continue
		}
		row := summary.AddRow()
		row.AddCell().SetString(label)
		row.AddCell().SetString(string(res.Status))
		row.AddCell().SetInt64(card.RadiusPopulations[label].Value)
		row.AddCell().SetInt64(card.RadiusIncomes[label].Value)
		row.AddCell().SetInt(res.TractCount)
		row.AddCell().SetInt(res.WithinRadiusCount)
		row.AddCell().SetString(res.Current.Coverage)
		row.AddCell().SetString(string(res.SelectionMethod))
	}

	vars, err := f.AddSheet(SheetVariables)
	if err != nil {
		return eris.Wrap(err, "report: add variables sheet")
	}
	addStrings(vars, "Radius", "Variable", r.CurrentYear, r.HistoricalYear)
	for _, rad := range r.Radii {
		label := geo.RadiusLabel(rad)
		res, ok := r.RadiusData[label]
		if !ok || res.Status == radius.OutcomeFailed {
			continue
		}
		for _, name := range slices.Sorted(maps.Keys(res.Current.Data)) {
			row := vars.AddRow()
			row.AddCell().SetString(label)
			row.AddCell().SetString(name)
			row.AddCell().SetFloat(res.Current.Data[name])
			if hist, ok := res.Historical.Value(name); ok {
				row.AddCell().SetFloat(hist)
			} else {
				row.AddCell().SetString(NotAvailable)
			}
		}
	}

	growth, err := f.AddSheet(SheetGrowth)
	if err != nil {
		return eris.Wrap(err, "report: add growth sheet")
	}
	addStrings(growth, "Metric", "Value", "Radius")
	for _, m := range []struct {
		name  string
		trend Trend
	}{
		{"Population growth", card.GrowthTrends.PopulationGrowth},
		{"Income growth", card.GrowthTrends.IncomeGrowth},
		{"Job growth", card.GrowthTrends.JobGrowth},
		{"Unemployment rate change", card.GrowthTrends.UnemploymentRateChange},
	} {
		addStrings(growth, m.name, m.trend.Formatted, r.GrowthRadius)
	}

	return eris.Wrap(f.Write(w), "report: write workbook")
}

func addStrings(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
