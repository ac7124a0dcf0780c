package report

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/ehr/opdreports/internal/classify"
)

// Catalog holds the site-configurable category tables used by the outpatient
// reports. It is read once at startup and compiled into Rules.
type Catalog struct {
	CategoryLabel    string           `yaml:"category_label"`
	AgeBands         []AgeBand        `yaml:"age_bands"`
	GenderCategories []GenderCategory `yaml:"gender_categories"`
	ProgramGroups    []ProgramGroup   `yaml:"program_groups"`
	DiagnosisGroups  []DiagnosisGroup `yaml:"diagnosis_groups"`
}

type AgeBand struct {
	Column    string  `yaml:"column"`
	Lower     float64 `yaml:"lower"`
	LowerUnit string  `yaml:"lower_unit"`
	Upper     float64 `yaml:"upper"`
	UpperUnit string  `yaml:"upper_unit"`
}

type GenderCategory struct {
	Column string   `yaml:"column"`
	Codes  []string `yaml:"codes"`
	// CrossTabColumn is the column title in the consultation cross-tab; empty
	// excludes the category from it.
	CrossTabColumn string `yaml:"cross_tab_column"`
}

// ProgramGroup names a program by the episode of care type codes enrolling
// a patient in it.
type ProgramGroup struct {
	Name  string   `yaml:"name"`
	Codes []string `yaml:"codes"`
}

type DiagnosisGroup struct {
	Name  string   `yaml:"name"`
	Codes []string `yaml:"codes"`
}

// DefaultCatalog returns the built-in age bands, gender categories and
// cross-tab row groups.
func DefaultCatalog() *Catalog {
	return &Catalog{
		CategoryLabel: "X",
		AgeBands: []AgeBand{
			{Column: "0-1 month", Lower: 0, LowerUnit: "months", Upper: 1, UpperUnit: "months"},
			{Column: "1-12 months", Lower: 1, LowerUnit: "months", Upper: 12, UpperUnit: "months"},
			{Column: "1-4 years", Lower: 1, LowerUnit: "years", Upper: 4, UpperUnit: "years"},
			{Column: "5-14 years", Lower: 5, LowerUnit: "years", Upper: 14, UpperUnit: "years"},
			{Column: "15-24 years", Lower: 15, LowerUnit: "years", Upper: 25, UpperUnit: "years"},
			{Column: "25-49 years", Lower: 25, LowerUnit: "years", Upper: 50, UpperUnit: "years"},
			{Column: "50-64 years", Lower: 50, LowerUnit: "years", Upper: 65, UpperUnit: "years"},
			{Column: "65+ years", Lower: 65, LowerUnit: "years", Upper: 999, UpperUnit: "years"},
		},
		GenderCategories: []GenderCategory{
			{Column: "Male", Codes: []string{"M"}, CrossTabColumn: "Males"},
			{Column: "Female", Codes: []string{"F"}, CrossTabColumn: "Females"},
			{Column: "Other", Codes: []string{"O"}},
		},
		ProgramGroups: []ProgramGroup{
			{Name: "HIV PROGRAM", Codes: []string{"HIV"}},
			{Name: "MDR-TB PROGRAM", Codes: []string{"MDR-TB"}},
		},
		DiagnosisGroups: []DiagnosisGroup{
			{Name: "MALARIA", Codes: []string{"B50", "B51", "B52", "B53", "B54"}},
			{Name: "TUBERCULOSIS", Codes: []string{"A15", "A16", "A17", "A18", "A19"}},
			{Name: "HIV", Codes: []string{"B20", "B21", "B22", "B23", "B24"}},
		},
	}
}

// LoadCatalog reads a YAML catalog. Sections missing from the file keep
// their defaults.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	cat := DefaultCatalog()
	if file.CategoryLabel != "" {
		cat.CategoryLabel = file.CategoryLabel
	}
	if file.AgeBands != nil {
		cat.AgeBands = file.AgeBands
	}
	if file.GenderCategories != nil {
		cat.GenderCategories = file.GenderCategories
	}
	if file.ProgramGroups != nil {
		cat.ProgramGroups = file.ProgramGroups
	}
	if file.DiagnosisGroups != nil {
		cat.DiagnosisGroups = file.DiagnosisGroups
	}

	if _, err := cat.Compile(); err != nil {
		return nil, err
	}
	return cat, nil
}

// RuleColumn is a report column backed by a single-rule classifier.
type RuleColumn struct {
	Name       string
	Classifier classify.Classifier
}

// Rules is the compiled, immutable form of a Catalog.
type Rules struct {
	CategoryLabel classify.Label
	AgeColumns    []RuleColumn
	GenderColumns []RuleColumn
	// AgeBands classifies an age into its band column name.
	AgeBands *classify.RangeClassifier
	// CrossTabGenders classifies a gender code into its cross-tab column.
	CrossTabGenders []RuleColumn
	ProgramGroups   []CrossTabRow
	DiagnosisGroups []CrossTabRow
}

// Compile validates the catalog and builds its classifiers. Any invalid band
// or empty category is a configuration error.
func (c *Catalog) Compile() (*Rules, error) {
	if c.CategoryLabel == "" {
		return nil, fmt.Errorf("catalog: category_label is required")
	}
	label := classify.Label(c.CategoryLabel)
	rules := &Rules{CategoryLabel: label}

	bands := make([]classify.Range, 0, len(c.AgeBands))
	for i, b := range c.AgeBands {
		lu, err := classify.ParseUnit(b.LowerUnit)
		if err != nil {
			return nil, fmt.Errorf("catalog: age band %d: %w", i, err)
		}
		uu, err := classify.ParseUnit(b.UpperUnit)
		if err != nil {
			return nil, fmt.Errorf("catalog: age band %d: %w", i, err)
		}
		r := classify.Range{Lower: b.Lower, LowerUnit: lu, Upper: b.Upper, UpperUnit: uu, Label: label}
		rc, err := classify.NewRangeClassifier(r)
		if err != nil {
			return nil, fmt.Errorf("catalog: age band %q: %w", b.Column, err)
		}
		rules.AgeColumns = append(rules.AgeColumns, RuleColumn{Name: b.Column, Classifier: rc})

		r.Label = classify.Label(b.Column)
		bands = append(bands, r)
	}
	if len(bands) > 0 {
		all, err := classify.NewRangeClassifier(bands...)
		if err != nil {
			return nil, fmt.Errorf("catalog: age bands: %w", err)
		}
		rules.AgeBands = all
	}

	for _, g := range c.GenderCategories {
		cc, err := classify.NewCategoricalClassifier(classify.CategorySet{Codes: g.Codes, Label: label})
		if err != nil {
			return nil, fmt.Errorf("catalog: gender category %q: %w", g.Column, err)
		}
		rules.GenderColumns = append(rules.GenderColumns, RuleColumn{Name: g.Column, Classifier: cc})
		if g.CrossTabColumn != "" {
			rules.CrossTabGenders = append(rules.CrossTabGenders, RuleColumn{Name: g.CrossTabColumn, Classifier: cc})
		}
	}

	for _, p := range c.ProgramGroups {
		if p.Name == "" || len(p.Codes) == 0 {
			return nil, fmt.Errorf("catalog: program group %q needs a name and codes", p.Name)
		}
		rules.ProgramGroups = append(rules.ProgramGroups, CrossTabRow{Name: p.Name, Kind: RowProgram, Codes: append([]string(nil), p.Codes...)})
	}
	for _, d := range c.DiagnosisGroups {
		if d.Name == "" || len(d.Codes) == 0 {
			return nil, fmt.Errorf("catalog: diagnosis group %q needs a name and codes", d.Name)
		}
		rules.DiagnosisGroups = append(rules.DiagnosisGroups, CrossTabRow{Name: d.Name, Kind: RowDiagnosis, Codes: append([]string(nil), d.Codes...)})
	}
	return rules, nil
}

// MustCompile compiles a catalog known to be valid, such as DefaultCatalog.
func (c *Catalog) MustCompile() *Rules {
	r, err := c.Compile()
	if err != nil {
		panic(err)
	}
	return r
}
