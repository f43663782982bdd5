package census

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Mode is how a variable's per-tract values roll up to a radius.
type Mode string

// Aggregation modes.
const (
	ModeSum    Mode = "sum"
	ModeMedian Mode = "median"
)

// Semantic names the aggregator and report layers read by name.
const (
	TotalPopulation       = "total_population"
	MedianHouseholdIncome = "median_household_income"
	MedianHomeValue       = "median_home_value"
	MedianAge             = "median_age"
	BachelorsDegree       = "bachelors_degree"
	MastersDegree         = "masters_degree"
	ProfessionalDegree    = "professional_degree"
	DoctorateDegree       = "doctorate_degree"
	LaborForce            = "labor_force"
	Employed              = "employed"
	Unemployed            = "unemployed"

	UnemploymentRate      = "unemployment_rate"
	CollegeGradPercentage = "college_grad_percentage"
)

// Variable maps an ACS variable code to a semantic name and a mode.
type Variable struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
	Mode Mode   `yaml:"mode" json:"mode"`
}

// VariableSet is a validated, ordered variable table. Codes and names are
// unique, so a name always carries the same mode.
type VariableSet struct {
	vars   []Variable
	byCode map[string]Variable
}

// NewVariableSet validates vars.
func NewVariableSet(vars []Variable) (VariableSet, error) {
	if len(vars) == 0 {
		return VariableSet{}, eris.New("census: variable set is empty")
	}
	byCode := make(map[string]Variable, len(vars))
	names := make(map[string]struct{}, len(vars))
	for _, v := range vars {
		if v.Code == "" || v.Name == "" {
			return VariableSet{}, eris.Errorf("census: variable %q has empty code or name", v.Code+v.Name)
		}
		if v.Mode != ModeSum && v.Mode != ModeMedian {
			return VariableSet{}, eris.Errorf("census: variable %s has invalid mode %q", v.Code, v.Mode)
		}
		if _, dup := byCode[v.Code]; dup {
			return VariableSet{}, eris.Errorf("census: duplicate variable code %s", v.Code)
		}
		if _, dup := names[v.Name]; dup {
			return VariableSet{}, eris.Errorf("census: duplicate variable name %s", v.Name)
		}
		byCode[v.Code] = v
		names[v.Name] = struct{}{}
	}
	return VariableSet{vars: append([]Variable(nil), vars...), byCode: byCode}, nil
}

// MustVariableSet is NewVariableSet for static tables.
func MustVariableSet(vars []Variable) VariableSet {
	vs, err := NewVariableSet(vars)
	if err != nil {
		panic(err)
	}
	return vs
}

// All returns the variables in declaration order.
func (vs VariableSet) All() []Variable {
	return append([]Variable(nil), vs.vars...)
}

// Codes returns the variable codes in declaration order.
func (vs VariableSet) Codes() []string {
	codes := make([]string, len(vs.vars))
	for i, v := range vs.vars {
		codes[i] = v.Code
	}
	return codes
}

// Lookup returns the variable for an ACS code.
func (vs VariableSet) Lookup(code string) (Variable, bool) {
	v, ok := vs.byCode[code]
	return v, ok
}

// Len returns the number of variables.
func (vs VariableSet) Len() int { return len(vs.vars) }

var defaultVariables = []Variable{
	{Code: "B01003_001E", Name: TotalPopulation, Mode: ModeSum},
	{Code: "B19013_001E", Name: MedianHouseholdIncome, Mode: ModeMedian},
	{Code: "B25077_001E", Name: MedianHomeValue, Mode: ModeMedian},
	{Code: "B15003_022E", Name: BachelorsDegree, Mode: ModeSum},
	{Code: "B15003_023E", Name: MastersDegree, Mode: ModeSum},
	{Code: "B15003_024E", Name: ProfessionalDegree, Mode: ModeSum},
	{Code: "B15003_025E", Name: DoctorateDegree, Mode: ModeSum},
	{Code: "B01002_001E", Name: MedianAge, Mode: ModeMedian},

	{Code: "B01001_003E", Name: "male_under_5", Mode: ModeSum},
	{Code: "B01001_004E", Name: "male_5_to_9", Mode: ModeSum},
	{Code: "B01001_027E", Name: "female_under_5", Mode: ModeSum},
	{Code: "B01001_028E", Name: "female_5_to_9", Mode: ModeSum},

	{Code: "B19001_002E", Name: "income_less_10k", Mode: ModeSum},
	{Code: "B19001_003E", Name: "income_10k_15k", Mode: ModeSum},
	{Code: "B19001_004E", Name: "income_15k_20k", Mode: ModeSum},
	{Code: "B19001_005E", Name: "income_20k_25k", Mode: ModeSum},
	{Code: "B19001_006E", Name: "income_25k_30k", Mode: ModeSum},
	{Code: "B19001_007E", Name: "income_30k_35k", Mode: ModeSum},
	{Code: "B19001_008E", Name: "income_35k_40k", Mode: ModeSum},
	{Code: "B19001_009E", Name: "income_40k_45k", Mode: ModeSum},
	{Code: "B19001_010E", Name: "income_45k_50k", Mode: ModeSum},
	{Code: "B19001_011E", Name: "income_50k_60k", Mode: ModeSum},
	{Code: "B19001_012E", Name: "income_60k_75k", Mode: ModeSum},
	{Code: "B19001_013E", Name: "income_75k_100k", Mode: ModeSum},
	{Code: "B19001_014E", Name: "income_100k_125k", Mode: ModeSum},
	{Code: "B19001_015E", Name: "income_125k_150k", Mode: ModeSum},
	{Code: "B19001_016E", Name: "income_150k_200k", Mode: ModeSum},
	{Code: "B19001_017E", Name: "income_200k_plus", Mode: ModeSum},

	{Code: "B23025_005E", Name: Unemployed, Mode: ModeSum},
	{Code: "B23025_002E", Name: LaborForce, Mode: ModeSum},
	{Code: "B23025_003E", Name: Employed, Mode: ModeSum},
}

// DefaultVariables returns the standard ACS variable table.
func DefaultVariables() VariableSet {
	return MustVariableSet(defaultVariables)
}

// IncomeBrackets lists the household income bracket names from low to high.
func IncomeBrackets() []string {
	return []string{
		"income_less_10k", "income_10k_15k", "income_15k_20k", "income_20k_25k",
		"income_25k_30k", "income_30k_35k", "income_35k_40k", "income_40k_45k",
		"income_45k_50k", "income_50k_60k", "income_60k_75k", "income_75k_100k",
		"income_100k_125k", "income_125k_150k", "income_150k_200k", "income_200k_plus",
	}
}

type variablesFile struct {
	Variables []Variable `yaml:"variables"`
}

// LoadVariables reads a YAML variable table:
//
//	variables:
//	  - {code: B01003_001E, name: total_population, mode: sum}
func LoadVariables(path string) (VariableSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return VariableSet{}, eris.Wrapf(err, "census: read variables file %s", path)
	}
	var f variablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return VariableSet{}, eris.Wrapf(err, "census: parse variables file %s", path)
	}
	vs, err := NewVariableSet(f.Variables)
	if err != nil {
		return VariableSet{}, eris.Wrapf(err, "census: variables file %s", path)
	}
	return vs, nil
}
