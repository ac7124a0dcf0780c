package report

import (
	"github.com/google/uuid"
)

// IdentifierSystemParam is the literal mapping key carrying the identifier
// system of a patient identifier column. An empty system selects the MRN.
const IdentifierSystemParam = "system"

var (
	outpatientRecordBookUUID   = uuid.MustParse("6c74e2ab-0e9b-4469-8901-8221f7d4b498")
	outpatientRecordBookDesign = uuid.MustParse("9873e45d-f8a0-4682-be78-243b8c9b848c")
)

// OutpatientRecordBook is the register of outpatient visits: one row per
// visit with age and gender tick columns and the consultation observations.
type OutpatientRecordBook struct {
	rules            *Rules
	identifierSystem string
}

func NewOutpatientRecordBook(rules *Rules, identifierSystem string) *OutpatientRecordBook {
	return &OutpatientRecordBook{rules: rules, identifierSystem: identifierSystem}
}

func (r *OutpatientRecordBook) ID() string          { return "outpatient-record-book" }
func (r *OutpatientRecordBook) UUID() uuid.UUID     { return outpatientRecordBookUUID }
func (r *OutpatientRecordBook) Name() string        { return "HIS Outpatient Record Book" }
func (r *OutpatientRecordBook) Description() string { return "" }
func (r *OutpatientRecordBook) Version() string     { return "0.1.0-SNAPSHOT" }

func (r *OutpatientRecordBook) Parameters() []Parameter {
	return []Parameter{
		{Name: "startDate", Label: "Start Date", Type: ParamDate},
		{Name: "endDate", Label: "End Date", Type: ParamDate},
		{Name: "symptoms", Label: "Symptoms Concept", Type: ParamConcept},
		{Name: "diagnosis", Label: "Diagnosis Concept", Type: ParamConcept},
		{Name: "referredFrom", Label: "Referred From Concept", Type: ParamConcept},
		{Name: "pastMedicalHistory", Label: "Past Medical History Concept", Type: ParamConcept},
	}
}

func (r *OutpatientRecordBook) Construct() (*Definition, error) {
	rd := &Definition{
		UUID:        r.UUID(),
		Name:        r.Name(),
		Description: r.Description(),
		Version:     r.Version(),
		Parameters:  r.Parameters(),
	}

	vdsd := &DataSetDefinition{Name: "visits", Parameters: r.Parameters()}
	rd.AddDataSet("visits", vdsd, MapStraightThrough(rd.Parameters))

	vdsd.RowFilter = &VisitFilter{Mapping: Mapping{
		FilterEndedOnOrAfter:  "${startDate}",
		FilterEndedOnOrBefore: "${endDate}",
	}}

	vdsd.AddColumn("Visit ID", DataVisitID, nil, nil)
	vdsd.AddColumn("Patient ID", DataPatientID, nil, nil)
	vdsd.AddColumn("Identifier", DataPatientIdentifier, Mapping{IdentifierSystemParam: r.identifierSystem}, nil)

	for _, col := range r.rules.AgeColumns {
		vdsd.AddColumn(col.Name, DataAge, nil, col.Classifier)
	}
	for _, col := range r.rules.GenderColumns {
		vdsd.AddColumn(col.Name, DataGender, nil, col.Classifier)
	}

	vdsd.AddColumn("Address and phone", DataContactInfo, nil, nil)

	// Consultation observations, each bound to its concept parameter.
	vdsd.AddColumn("Referred from", DataObsForVisit, Mapping{QuestionParam: "${referredFrom}"}, nil)
	vdsd.AddColumn("Symptoms", DataObsForVisit, Mapping{QuestionParam: "${symptoms}"}, nil)
	vdsd.AddColumn("Diagnosis", DataObsForVisit, Mapping{QuestionParam: "${diagnosis}"}, nil)
	vdsd.AddColumn("Other notes", DataObsForVisit, Mapping{QuestionParam: "${pastMedicalHistory}"}, nil)

	rd.Designs = []Design{{UUID: outpatientRecordBookDesign, Name: r.Name() + " CSV", Type: DesignCSV}}
	return rd, nil
}
