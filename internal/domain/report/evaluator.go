package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/opdreports/internal/classify"
)

var (
	ErrReportNotFound   = errors.New("report not found")
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// obsSeparator joins several answers to the same question within a visit.
const obsSeparator = "; "

// Evaluator runs report definitions against a VisitSource.
type Evaluator struct {
	src VisitSource
	now func() time.Time
}

func NewEvaluator(src VisitSource) *Evaluator {
	return &Evaluator{src: src, now: time.Now}
}

// ValidateParameters checks that every date parameter is present and
// well-formed. Concept parameters are optional; columns bound to a missing
// concept evaluate to blank cells.
func ValidateParameters(params []Parameter, values map[string]string) error {
	for _, p := range params {
		v := strings.TrimSpace(values[p.Name])
		switch p.Type {
		case ParamDate:
			if v == "" {
				return fmt.Errorf("%w: %s", ErrMissingParameter, p.Name)
			}
			if _, err := time.Parse(DateLayout, v); err != nil {
				return fmt.Errorf("%w: %s must be %s", ErrInvalidParameter, p.Name, DateLayout)
			}
		}
	}
	return nil
}

// Evaluate produces the data of every dataset in def. Parameter values are
// trimmed before they are validated or resolved.
func (e *Evaluator) Evaluate(ctx context.Context, def *Definition, values map[string]string) (*Data, error) {
	values = normalizeParameters(values)
	if err := ValidateParameters(def.Parameters, values); err != nil {
		return nil, err
	}

	data := &Data{
		ReportUUID:  def.UUID,
		ReportName:  def.Name,
		Parameters:  values,
		EvaluatedAt: e.now().UTC(),
		DataSets:    make(map[string]*DataSet, len(def.DataSets)),
	}

	for _, m := range def.DataSets {
		dsValues := m.Mapping.Resolve(values)
		var (
			ds  *DataSet
			err error
		)
		if m.DataSet.CrossTab != nil {
			ds, err = e.evaluateCrossTab(ctx, m.DataSet, dsValues)
		} else {
			ds, err = e.evaluateVisits(ctx, m.DataSet, dsValues)
		}
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", m.Key, err)
		}
		data.DataSets[m.Key] = ds
		data.Order = append(data.Order, m.Key)
	}
	return data, nil
}

func normalizeParameters(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = strings.TrimSpace(v)
	}
	return out
}

func (e *Evaluator) visits(ctx context.Context, ds *DataSetDefinition, values map[string]string) ([]*Visit, VisitQuery, error) {
	var q VisitQuery
	if ds.RowFilter != nil {
		f := ds.RowFilter.Mapping.Resolve(values)
		var err error
		if q.EndedOnOrAfter, err = parseDate(f, FilterEndedOnOrAfter); err != nil {
			return nil, q, err
		}
		if q.EndedOnOrBefore, err = parseDate(f, FilterEndedOnOrBefore); err != nil {
			return nil, q, err
		}
	}
	visits, err := e.src.ListVisits(ctx, q)
	if err != nil {
		return nil, q, fmt.Errorf("list visits: %w", err)
	}
	return visits, q, nil
}

func parseDate(values map[string]string, name string) (*time.Time, error) {
	v, ok := values[name]
	if !ok || v == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidParameter, name, v)
	}
	return &t, nil
}

func (e *Evaluator) evaluateVisits(ctx context.Context, def *DataSetDefinition, values map[string]string) (*DataSet, error) {
	visits, _, err := e.visits(ctx, def, values)
	if err != nil {
		return nil, err
	}

	ds := &DataSet{Name: def.Name, Rows: make([]Row, 0, len(visits))}
	for _, c := range def.Columns {
		ds.Columns = append(ds.Columns, c.Name)
	}

	visitIDs := make([]uuid.UUID, len(visits))
	patientIDs := make([]uuid.UUID, 0, len(visits))
	seen := make(map[uuid.UUID]bool)
	for i, v := range visits {
		visitIDs[i] = v.ID
		if !seen[v.PatientID] {
			seen[v.PatientID] = true
			patientIDs = append(patientIDs, v.PatientID)
		}
	}

	// Column inputs fetched once per dataset.
	obs := make(map[int]map[uuid.UUID][]ObsValue)
	idents := make(map[int]map[uuid.UUID]string)
	for i, c := range def.Columns {
		switch c.Data {
		case DataObsForVisit:
			question := c.Mapping.Resolve(values)[QuestionParam]
			if question == "" {
				continue
			}
			res, err := e.src.ObsForVisits(ctx, visitIDs, question)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", c.Name, err)
			}
			obs[i] = res
		case DataPatientIdentifier:
			system := c.Mapping.Resolve(values)[IdentifierSystemParam]
			res, err := e.src.Identifiers(ctx, patientIDs, system)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", c.Name, err)
			}
			idents[i] = res
		}
	}

	for _, v := range visits {
		row := make(Row, len(def.Columns))
		for i, c := range def.Columns {
			row[c.Name] = cell(c, i, v, obs, idents)
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func cell(c Column, i int, v *Visit, obs map[int]map[uuid.UUID][]ObsValue, idents map[int]map[uuid.UUID]string) string {
	switch c.Data {
	case DataVisitID:
		return v.ID.String()
	case DataPatientID:
		return v.PatientID.String()
	case DataPatientIdentifier:
		if id, ok := idents[i][v.PatientID]; ok {
			return id
		}
		return ""
	case DataAge:
		age := classify.AgeAt(v.BirthDate, v.AgeReference())
		if c.Classifier != nil {
			return classifyCell(c.Classifier, age)
		}
		if !age.Present {
			return ""
		}
		return strconv.Itoa(int(classify.Convert(age.Number, age.Unit, classify.Years)))
	case DataGender:
		if c.Classifier != nil {
			val := classify.Value{}
			if v.GenderCode != "" {
				val = classify.Code(v.GenderCode)
			}
			return classifyCell(c.Classifier, val)
		}
		return v.GenderCode
	case DataContactInfo:
		return FormatContact(v.Contact)
	case DataObsForVisit:
		values := obs[i][v.ID]
		parts := make([]string, 0, len(values))
		for _, o := range values {
			if o.Display != "" {
				parts = append(parts, o.Display)
			} else if o.Code != "" {
				parts = append(parts, o.Code)
			}
		}
		return strings.Join(parts, obsSeparator)
	}
	return ""
}

func classifyCell(c classify.Classifier, v classify.Value) string {
	label, ok := c.Classify(v)
	observeClassification(c.Kind(), ok)
	if !ok {
		return ""
	}
	return string(label)
}

func (e *Evaluator) evaluateCrossTab(ctx context.Context, def *DataSetDefinition, values map[string]string) (*DataSet, error) {
	ct := def.CrossTab
	// The question is only needed to place visits in diagnosis rows.
	question := ct.Question.Resolve(values)[QuestionParam]
	if question == "" && ct.hasRows(RowDiagnosis) {
		return nil, fmt.Errorf("%w: %s", ErrMissingParameter, strings.Join(referencedParams(ct.Question), ","))
	}

	visits, q, err := e.visits(ctx, def, values)
	if err != nil {
		return nil, err
	}
	visitIDs := make([]uuid.UUID, len(visits))
	patientIDs := make([]uuid.UUID, 0, len(visits))
	seen := make(map[uuid.UUID]bool)
	for i, v := range visits {
		visitIDs[i] = v.ID
		if !seen[v.PatientID] {
			seen[v.PatientID] = true
			patientIDs = append(patientIDs, v.PatientID)
		}
	}

	var answers map[uuid.UUID][]ObsValue
	if ct.hasRows(RowDiagnosis) {
		if answers, err = e.src.ObsForVisits(ctx, visitIDs, question); err != nil {
			return nil, fmt.Errorf("cross-tab question: %w", err)
		}
	}
	var programs map[uuid.UUID][]string
	if ct.hasRows(RowProgram) {
		if programs, err = e.src.Enrollments(ctx, patientIDs, q); err != nil {
			return nil, fmt.Errorf("cross-tab enrollments: %w", err)
		}
	}

	type cellKey struct{ row, col int }
	cohorts := make(map[cellKey]map[uuid.UUID]struct{})
	for _, v := range visits {
		rowHits := matchingRows(ct.Rows, answers[v.ID], programs[v.PatientID])
		if len(rowHits) == 0 {
			continue
		}
		for ci, col := range ct.Columns {
			if !crossTabMember(col, v) {
				continue
			}
			for _, ri := range rowHits {
				k := cellKey{ri, ci}
				if cohorts[k] == nil {
					cohorts[k] = make(map[uuid.UUID]struct{})
				}
				cohorts[k][v.PatientID] = struct{}{}
			}
		}
	}

	ds := &DataSet{Name: def.Name}
	row := make(Row, len(ct.Rows)*len(ct.Columns))
	for ri, r := range ct.Rows {
		for ci, c := range ct.Columns {
			name := r.Name + "." + c.Name
			ds.Columns = append(ds.Columns, name)
			row[name] = newCohort(cohorts[cellKey{ri, ci}])
		}
	}
	ds.Rows = []Row{row}
	return ds, nil
}

// matchingRows returns the indexes of the rows a visit belongs to, given its
// diagnosis answers and its patient's enrolled program codes.
func matchingRows(rows []CrossTabRow, answers []ObsValue, programs []string) []int {
	var hits []int
	for i, r := range rows {
		var codes []string
		switch r.Kind {
		case RowProgram:
			codes = programs
		case RowDiagnosis:
			codes = make([]string, len(answers))
			for j, a := range answers {
				codes[j] = a.Code
			}
		}
		if containsAny(r.Codes, codes) {
			hits = append(hits, i)
		}
	}
	return hits
}

func containsAny(want, have []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func crossTabMember(col CrossTabColumn, v *Visit) bool {
	var val classify.Value
	switch col.Data {
	case DataAge:
		val = classify.AgeAt(v.BirthDate, v.AgeReference())
	case DataGender:
		if v.GenderCode != "" {
			val = classify.Code(v.GenderCode)
		}
	}
	_, ok := col.Classifier.Classify(val)
	observeClassification(col.Classifier.Kind(), ok)
	return ok
}

func referencedParams(m Mapping) []string {
	var out []string
	for _, expr := range m {
		if ref, ok := reference(expr); ok {
			out = append(out, ref)
		}
	}
	return out
}

// FormatContact renders the address on one line followed by the first
// available phone number.
func FormatContact(c ContactInfo) string {
	var addr []string
	for _, s := range []string{c.AddressLine1, c.AddressLine2, c.City, c.District, c.State, c.PostalCode, c.Country} {
		if s = strings.TrimSpace(s); s != "" {
			addr = append(addr, s)
		}
	}
	phone := ""
	for _, p := range []string{c.PhoneMobile, c.PhoneHome, c.PhoneWork} {
		if p = strings.TrimSpace(p); p != "" {
			phone = p
			break
		}
	}

	line := strings.Join(addr, ", ")
	switch {
	case line == "":
		return phone
	case phone == "":
		return line
	}
	return line + " / " + phone
}
