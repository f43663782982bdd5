package insights

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/demographics-cli/internal/radius"
	"github.com/sells-group/demographics-cli/internal/report"
)

// Rule thresholds.
const (
	highIncome          = 100000
	veryHighIncome      = 150000
	highGrowth          = 10.0
	moderateGrowth      = 5.0
	highEducation       = 30.0
	youngPopulation     = 35
	lowUnemployment     = 4.0
	veryLowUnemployment = 3.0
)

var printer = message.NewPrinter(language.English)

// Rules generates insights from fixed thresholds. It never fails.
type Rules struct{}

// Generate implements Generator.
func (Rules) Generate(_ context.Context, r *radius.Report, card report.Card) (*Insights, error) {
	m := extractMetrics(r, card)
	return &Insights{
		Strengths:          strengths(m),
		Opportunities:      opportunities(m),
		TargetDemographics: demographics(m),
		Metadata:           Metadata{Generated: true, Engine: EngineRules},
	}, nil
}

func strengths(m metrics) []string {
	var out []string
	switch {
	case m.popGrowth > highGrowth:
		out = append(out, fmt.Sprintf("Strong population growth (%.1f%% %d-year)", m.popGrowth, m.years))
	case m.popGrowth > moderateGrowth:
		out = append(out, fmt.Sprintf("Steady population growth (%.1f%% %d-year)", m.popGrowth, m.years))
	}
	switch {
	case m.incomeMid > veryHighIncome:
		out = append(out, fmt.Sprintf("Very high median income ($%.0fK)", m.incomeMid/1000))
	case m.incomeMid > highIncome:
		out = append(out, fmt.Sprintf("High median income ($%.0fK)", m.incomeMid/1000))
	}
	switch {
	case m.incomeGrowth > 20:
		out = append(out, fmt.Sprintf("Exceptional income growth (%.1f%% %d-year)", m.incomeGrowth, m.years))
	case m.incomeGrowth > 10:
		out = append(out, fmt.Sprintf("Strong income growth (%.1f%% %d-year)", m.incomeGrowth, m.years))
	}
	switch {
	case m.eduMid > 45:
		out = append(out, fmt.Sprintf("Highly educated population (%.1f%% college+)", m.eduMid))
	case m.eduMid > highEducation:
		out = append(out, fmt.Sprintf("Well-educated workforce (%.1f%% college+)", m.eduMid))
	}
	if m.hasUnemployment && m.unemploymentMid > 0 {
		switch {
		case m.unemploymentMid < veryLowUnemployment:
			out = append(out, fmt.Sprintf("Very low unemployment (%.1f%%)", m.unemploymentMid))
		case m.unemploymentMid < lowUnemployment:
			out = append(out, fmt.Sprintf("Low unemployment rate (%.1f%%)", m.unemploymentMid))
		}
	}
	if m.popInner > 50000 {
		out = append(out, printer.Sprintf("High population density (%d in %s)", int64(m.popInner), m.innerLabel))
	}
	if m.jobGrowth > 15 {
		out = append(out, fmt.Sprintf("Strong job growth (%.1f%% %d-year)", m.jobGrowth, m.years))
	}
	if m.hasAge && m.ageMid > 25 && m.ageMid < youngPopulation {
		out = append(out, "Young professional demographic")
	}
	if len(out) < 3 {
		if m.popMid > 100000 {
			out = append(out, printer.Sprintf("Large market area (%d population)", int64(m.popMid)))
		}
		if m.jobGrowth > 0 {
			out = append(out, "Positive employment trends")
		}
	}
	return limit(out)
}

func opportunities(m metrics) []string {
	var out []string
	if m.hasDist {
		switch {
		case m.dist.Over150k > 30:
			out = append(out, "Large luxury/premium market segment")
		case m.dist.From100k+m.dist.Over150k > 40:
			out = append(out, "Strong upper-middle income market")
		}
	}
	if m.popGrowth > 8 && m.incomeGrowth > 15 {
		out = append(out, "Expanding affluent population base")
	}
	switch {
	case m.jobGrowth > 5:
		out = append(out, "Growing employment base")
	case m.hasUnemployment && m.unemploymentMid > 0 && m.unemploymentMid < lowUnemployment:
		out = append(out, "Strong job market attracting residents")
	}
	if m.hasAge {
		switch {
		case m.ageMid > 25 && m.ageMid < 35:
			out = append(out, "Tech-savvy millennial demographic")
		case m.ageMid >= 35 && m.ageMid <= 45:
			out = append(out, "Prime spending demographic (35-45)")
		}
	}
	if m.eduMid > 40 {
		out = append(out, "Educated consumer base values quality")
	}
	if m.incomeGrowth > 25 {
		out = append(out, "Rising disposable income")
	}
	if m.popInner > 0 && m.popOuter > 0 && m.popInner/m.popOuter*100 > 15 {
		out = append(out, "Dense urban core development")
	}
	if m.popOuter > 500000 {
		out = append(out, "Large addressable market")
	}
	if m.incomeMid > 120000 && m.eduMid > 35 {
		out = append(out, "Tech sector concentration")
	}
	if len(out) < 3 {
		if m.popGrowth > 0 {
			out = append(out, "Growing retail/service demand")
		}
		out = append(out, "Diverse demographic mix")
	}
	return limit(out)
}

func demographics(m metrics) []string {
	var out []string
	if m.hasAge {
		switch {
		case m.ageMid > 25 && m.ageMid < 30:
			out = append(out, "Young professionals (25-34)")
		case m.ageMid > 28 && m.ageMid < 38:
			out = append(out, "Millennials (28-38)")
		case m.ageMid > 35 && m.ageMid < 50:
			out = append(out, "Gen X families (35-50)")
		case m.ageMid >= 45:
			out = append(out, "Established households (45+)")
		}
	}
	switch {
	case m.incomeMid > veryHighIncome:
		out = append(out, "High-net-worth individuals")
	case m.incomeMid > highIncome:
		if m.hasDist && m.dist.From100k > 15 {
			out = append(out, "Upper-middle income families")
		}
		out = append(out, "Affluent professionals")
	case m.incomeMid > 75000:
		out = append(out, "Middle-income households")
	}
	switch {
	case m.eduMid > 50:
		out = append(out, "Advanced degree holders")
	case m.eduMid > 35:
		out = append(out, "College-educated workforce")
	}
	switch {
	case m.jobGrowth > 10:
		out = append(out, "Tech and finance workers")
	case m.hasUnemployment && m.unemploymentMid > 0 && m.unemploymentMid < veryLowUnemployment:
		out = append(out, "Dual-income households")
	}
	if m.hasAge {
		switch {
		case m.ageMid < youngPopulation && m.incomeMid > 80000:
			out = append(out, "DINK couples (Double Income No Kids)")
		case m.ageMid > 35 && m.ageMid < 45 && m.eduMid > 30:
			out = append(out, "Family-oriented professionals")
		}
	}
	switch {
	case m.popInner > 75000:
		out = append(out, "Urban lifestyle enthusiasts")
	case m.popInner > 25000:
		out = append(out, "Suburban commuters")
	}
	return limit(out)
}
