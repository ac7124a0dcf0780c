package report

import (
	"fmt"

	"github.com/google/uuid"
)

var (
	outpatientConsultationUUID   = uuid.MustParse("58d7a2ba-5b62-4e21-ac21-090e3758cce7")
	outpatientConsultationDesign = uuid.MustParse("d2b9a2a4-3c53-4f0e-9b0c-5a1f3e8f6c21")
)

// ConsultationDataSet is the key of the cross-tab dataset.
const ConsultationDataSet = "Outpatient Consultation"

// OutpatientConsultation counts the patients seen per program and diagnosis
// group, broken down by gender and age band.
type OutpatientConsultation struct {
	rules *Rules
}

func NewOutpatientConsultation(rules *Rules) *OutpatientConsultation {
	return &OutpatientConsultation{rules: rules}
}

func (r *OutpatientConsultation) ID() string      { return "outpatient-consultation" }
func (r *OutpatientConsultation) UUID() uuid.UUID { return outpatientConsultationUUID }
func (r *OutpatientConsultation) Name() string    { return "Outpatient Consultation" }
func (r *OutpatientConsultation) Description() string {
	return "Patients seen per program and diagnosis group, by gender and age band"
}
func (r *OutpatientConsultation) Version() string { return "0.1.0-SNAPSHOT" }

func (r *OutpatientConsultation) Parameters() []Parameter {
	return []Parameter{
		{Name: "startDate", Label: "Start Date", Type: ParamDate},
		{Name: "endDate", Label: "End Date", Type: ParamDate},
		{Name: "diagnosis", Label: "Diagnosis Concept", Type: ParamConcept},
	}
}

func (r *OutpatientConsultation) Construct() (*Definition, error) {
	if len(r.rules.ProgramGroups) == 0 && len(r.rules.DiagnosisGroups) == 0 {
		return nil, fmt.Errorf("%s: no program or diagnosis groups configured", r.Name())
	}

	rd := &Definition{
		UUID:        r.UUID(),
		Name:        r.Name(),
		Description: r.Description(),
		Version:     r.Version(),
		Parameters:  r.Parameters(),
	}

	ct := &CrossTab{
		Question: Mapping{QuestionParam: "${diagnosis}"},
	}
	ct.Rows = append(ct.Rows, r.rules.ProgramGroups...)
	ct.Rows = append(ct.Rows, r.rules.DiagnosisGroups...)
	for _, g := range r.rules.CrossTabGenders {
		ct.Columns = append(ct.Columns, CrossTabColumn{Name: g.Name, Data: DataGender, Classifier: g.Classifier})
	}
	for _, a := range r.rules.AgeColumns {
		ct.Columns = append(ct.Columns, CrossTabColumn{Name: a.Name, Data: DataAge, Classifier: a.Classifier})
	}

	ds := &DataSetDefinition{
		Name:       ConsultationDataSet,
		Parameters: r.Parameters(),
		RowFilter: &VisitFilter{Mapping: Mapping{
			FilterEndedOnOrAfter:  "${startDate}",
			FilterEndedOnOrBefore: "${endDate}",
		}},
		CrossTab: ct,
	}
	rd.AddDataSet(ConsultationDataSet, ds, MapStraightThrough(rd.Parameters))
	rd.Designs = []Design{{UUID: outpatientConsultationDesign, Name: r.Name() + " CSV", Type: DesignCSV}}
	return rd, nil
}
