package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestWriteCSV(t *testing.T) {
	data := &Data{
		DataSets: map[string]*DataSet{
			"visits": {
				Columns: []string{"Visit ID", "Male", "Address and phone"},
				Rows: []Row{
					{"Visit ID": "v1", "Male": "X", "Address and phone": "1 Rd, Town / 555"},
					{"Visit ID": "v2"},
				},
			},
			"summary": {
				Columns: []string{"MALARIA.Males"},
				Rows: []Row{{"MALARIA.Males": &Cohort{PatientIDs: []uuid.UUID{uuid.New()}, Size: 1}}},
			},
		},
		Order: []string{"visits", "summary"},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := strings.Join([]string{
		"Visit ID,Male,Address and phone",
		`v1,X,"1 Rd, Town / 555"`,
		"v2,,",
		"",
		"summary",
		"MALARIA.Males",
		"1",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("unexpected csv:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestFormatCell(t *testing.T) {
	var nilCohort *Cohort
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"X", "X"},
		{nilCohort, "0"},
		{&Cohort{Size: 4}, "4"},
		{uuid.MustParse("00000000-0000-0000-0000-000000000001"), "00000000-0000-0000-0000-000000000001"},
		{7, "7"},
	}
	for _, tt := range tests {
		if got := formatCell(tt.in); got != tt.want {
			t.Errorf("formatCell(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
