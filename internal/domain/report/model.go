package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/opdreports/internal/classify"
)

type ParameterType string

const (
	ParamDate    ParameterType = "date"
	ParamConcept ParameterType = "concept"
)

// DateLayout is the layout of date parameter values.
const DateLayout = "2006-01-02"

// Parameter is a named input of a report or dataset.
type Parameter struct {
	Name  string        `json:"name"`
	Label string        `json:"label"`
	Type  ParameterType `json:"type"`
}

// Mapping maps a child parameter name to either a "${parent}" reference or a
// literal value.
type Mapping map[string]string

// MapStraightThrough maps every parameter onto the parent parameter of the
// same name.
func MapStraightThrough(params []Parameter) Mapping {
	m := make(Mapping, len(params))
	for _, p := range params {
		m[p.Name] = "${" + p.Name + "}"
	}
	return m
}

// Resolve substitutes parent values into the mapping. References to parent
// parameters that have no value are omitted.
func (m Mapping) Resolve(values map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for child, expr := range m {
		if ref, ok := reference(expr); ok {
			if v, ok := values[ref]; ok && v != "" {
				out[child] = v
			}
			continue
		}
		out[child] = expr
	}
	return out
}

// String renders the mapping as "k=v,k=v" with sorted keys.
func (m Mapping) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, ",")
}

// ParseMapping is the inverse of Mapping.String.
func ParseMapping(s string) (Mapping, error) {
	m := Mapping{}
	if strings.TrimSpace(s) == "" {
		return m, nil
	}
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid mapping entry %q", part)
		}
		m[k] = strings.TrimSpace(v)
	}
	return m, nil
}

func reference(expr string) (string, bool) {
	if strings.HasPrefix(expr, "${") && strings.HasSuffix(expr, "}") {
		return expr[2 : len(expr)-1], true
	}
	return "", false
}

// DataKind names a per-row attribute a column reads.
type DataKind string

const (
	DataVisitID           DataKind = "visit_id"
	DataPatientID         DataKind = "patient_id"
	DataPatientIdentifier DataKind = "patient_identifier"
	DataAge               DataKind = "age"
	DataGender            DataKind = "gender"
	DataContactInfo       DataKind = "contact_info"
	DataObsForVisit       DataKind = "obs_for_visit"
)

// QuestionParam is the parameter of an obs-for-visit column carrying the
// observation code.
const QuestionParam = "question"

// Column is one output column of a visit dataset. When Classifier is set the
// raw value is replaced by the matched label, or left blank.
type Column struct {
	Name       string              `json:"name"`
	Data       DataKind            `json:"data"`
	Mapping    Mapping             `json:"mapping,omitempty"`
	Classifier classify.Classifier `json:"-"`
}

// VisitFilter restricts visits to those that ended inside a window. Its
// mapping binds endedOnOrAfter/endedOnOrBefore to dataset parameters.
type VisitFilter struct {
	Mapping Mapping `json:"mapping"`
}

const (
	FilterEndedOnOrAfter  = "endedOnOrAfter"
	FilterEndedOnOrBefore = "endedOnOrBefore"
)

// RowKind selects what a cross-tab row's codes are matched against.
type RowKind string

const (
	// RowProgram rows hold patients enrolled in a program (an episode of care
	// whose type is one of Codes) at any time during the report window.
	RowProgram RowKind = "program"
	// RowDiagnosis rows hold patients whose visit recorded a question
	// observation coded with one of Codes.
	RowDiagnosis RowKind = "diagnosis"
)

// CrossTabRow groups visits by program enrollment or diagnosis code.
type CrossTabRow struct {
	Name  string   `json:"name"`
	Kind  RowKind  `json:"kind"`
	Codes []string `json:"codes"`
}

// CrossTabColumn groups patients that Classifier accepts.
type CrossTabColumn struct {
	Name       string              `json:"name"`
	Data       DataKind            `json:"data"`
	Classifier classify.Classifier `json:"-"`
}

// CrossTab produces a single row whose cells are named "<row>.<column>" and
// hold patient cohorts.
type CrossTab struct {
	Question Mapping          `json:"question"`
	Rows     []CrossTabRow    `json:"rows"`
	Columns  []CrossTabColumn `json:"columns"`
}

func (ct *CrossTab) hasRows(kind RowKind) bool {
	for _, r := range ct.Rows {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

// DataSetDefinition describes one visit-based dataset. Exactly one of Columns
// or CrossTab is used.
type DataSetDefinition struct {
	Name       string       `json:"name"`
	Parameters []Parameter  `json:"parameters"`
	RowFilter  *VisitFilter `json:"row_filter,omitempty"`
	Columns    []Column     `json:"columns,omitempty"`
	CrossTab   *CrossTab    `json:"cross_tab,omitempty"`
}

func (d *DataSetDefinition) AddColumn(name string, kind DataKind, m Mapping, c classify.Classifier) {
	d.Columns = append(d.Columns, Column{Name: name, Data: kind, Mapping: m, Classifier: c})
}

// MappedDataSet attaches a dataset to a report under Key.
type MappedDataSet struct {
	Key     string             `json:"key"`
	DataSet *DataSetDefinition `json:"data_set"`
	Mapping Mapping            `json:"mapping"`
}

type DesignType string

const DesignCSV DesignType = "csv"

type Design struct {
	UUID uuid.UUID  `json:"uuid"`
	Name string     `json:"name"`
	Type DesignType `json:"type"`
}

// Definition is a fully constructed report.
type Definition struct {
	UUID        uuid.UUID       `json:"uuid"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Version     string          `json:"version"`
	Parameters  []Parameter     `json:"parameters"`
	DataSets    []MappedDataSet `json:"data_sets"`
	Designs     []Design        `json:"designs"`
}

func (d *Definition) AddDataSet(key string, ds *DataSetDefinition, m Mapping) {
	d.DataSets = append(d.DataSets, MappedDataSet{Key: key, DataSet: ds, Mapping: m})
}

// Manager builds a report definition. Implementations receive their
// collaborators through their constructor.
type Manager interface {
	ID() string
	UUID() uuid.UUID
	Name() string
	Description() string
	Version() string
	Parameters() []Parameter
	Construct() (*Definition, error)
}

// Cohort is a set of patients.
type Cohort struct {
	PatientIDs []uuid.UUID `json:"patient_ids"`
	Size       int         `json:"size"`
}

func newCohort(set map[uuid.UUID]struct{}) *Cohort {
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return &Cohort{PatientIDs: ids, Size: len(ids)}
}

// Row maps column names to cell values: strings for tabular datasets,
// *Cohort for cross-tabs.
type Row map[string]interface{}

type DataSet struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Data is the result of evaluating a Definition.
type Data struct {
	ReportUUID  uuid.UUID           `json:"report_uuid"`
	ReportName  string              `json:"report_name"`
	Parameters  map[string]string   `json:"parameters"`
	EvaluatedAt time.Time           `json:"evaluated_at"`
	DataSets    map[string]*DataSet `json:"data_sets"`
	// Order lists dataset keys in definition order.
	Order []string `json:"order"`
}
