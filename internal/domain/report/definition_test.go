package report

import (
	"testing"
)

func TestOutpatientRecordBook_Construct(t *testing.T) {
	rules := DefaultCatalog().MustCompile()
	def, err := NewOutpatientRecordBook(rules, "").Construct()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.UUID.String() != "6c74e2ab-0e9b-4469-8901-8221f7d4b498" {
		t.Errorf("unexpected report uuid %s", def.UUID)
	}
	if len(def.Parameters) != 6 {
		t.Errorf("expected 6 parameters, got %d", len(def.Parameters))
	}
	if len(def.DataSets) != 1 || def.DataSets[0].Key != "visits" {
		t.Fatalf("unexpected datasets %+v", def.DataSets)
	}
	if len(def.Designs) != 1 || def.Designs[0].Type != DesignCSV {
		t.Errorf("expected one CSV design, got %+v", def.Designs)
	}

	ds := def.DataSets[0].DataSet
	var names []string
	for _, c := range ds.Columns {
		names = append(names, c.Name)
	}
	want := []string{
		"Visit ID", "Patient ID", "Identifier",
		"0-1 month", "1-12 months", "1-4 years", "5-14 years",
		"15-24 years", "25-49 years", "50-64 years", "65+ years",
		"Male", "Female", "Other",
		"Address and phone", "Referred from", "Symptoms", "Diagnosis", "Other notes",
	}
	if len(names) != len(want) {
		t.Fatalf("got %d columns, want %d: %v", len(names), len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, names[i], want[i])
		}
	}

	if ds.RowFilter == nil || ds.RowFilter.Mapping[FilterEndedOnOrAfter] != "${startDate}" {
		t.Error("row filter should bind endedOnOrAfter to startDate")
	}
}

func TestOutpatientConsultation_Construct(t *testing.T) {
	rules := DefaultCatalog().MustCompile()
	def, err := NewOutpatientConsultation(rules).Construct()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(def.DataSets) != 1 || def.DataSets[0].Key != ConsultationDataSet {
		t.Fatalf("unexpected datasets %+v", def.DataSets)
	}
	ct := def.DataSets[0].DataSet.CrossTab
	if ct == nil {
		t.Fatal("expected a cross-tab dataset")
	}
	if len(ct.Rows) != 5 {
		t.Fatalf("expected 2 program and 3 diagnosis rows, got %d", len(ct.Rows))
	}
	if ct.Rows[0].Name != "HIV PROGRAM" || ct.Rows[0].Kind != RowProgram {
		t.Errorf("first row = %+v", ct.Rows[0])
	}
	if ct.Rows[2].Name != "MALARIA" || ct.Rows[2].Kind != RowDiagnosis {
		t.Errorf("diagnosis rows should follow program rows, got %+v", ct.Rows[2])
	}
	if len(ct.Columns) != 10 {
		t.Errorf("expected 10 columns, got %d", len(ct.Columns))
	}
	if ct.Columns[0].Name != "Males" || ct.Columns[0].Data != DataGender {
		t.Errorf("first column = %+v", ct.Columns[0])
	}
	if ct.Columns[2].Data != DataAge {
		t.Errorf("age columns should follow gender columns, got %+v", ct.Columns[2])
	}
}

func TestManagers_UniqueIdentity(t *testing.T) {
	rules := DefaultCatalog().MustCompile()
	a := NewOutpatientRecordBook(rules, "")
	b := NewOutpatientConsultation(rules)
	if a.ID() == b.ID() || a.UUID() == b.UUID() {
		t.Error("reports must have distinct ids and uuids")
	}
}
