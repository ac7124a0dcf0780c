package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContactInfo is the patient's postal address and phone numbers.
type ContactInfo struct {
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	District     string `json:"district,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Country      string `json:"country,omitempty"`
	PhoneMobile  string `json:"phone_mobile,omitempty"`
	PhoneHome    string `json:"phone_home,omitempty"`
	PhoneWork    string `json:"phone_work,omitempty"`
}

// Visit is one encounter joined with the patient attributes the reports use.
type Visit struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	MRN         string
	PeriodStart time.Time
	PeriodEnd   *time.Time
	BirthDate   *time.Time
	// GenderCode is the single-letter code (M, F, O, U); empty when unknown.
	GenderCode string
	Contact    ContactInfo
}

// AgeReference is the instant a visit's age is computed at: its end, or its
// start while still open.
func (v *Visit) AgeReference() time.Time {
	if v.PeriodEnd != nil {
		return *v.PeriodEnd
	}
	return v.PeriodStart
}

// VisitQuery bounds ListVisits. Nil bounds are open; EndedOnOrBefore is
// inclusive of the whole day.
type VisitQuery struct {
	EndedOnOrAfter  *time.Time
	EndedOnOrBefore *time.Time
}

// ObsValue is the display value and code of an observation answer.
type ObsValue struct {
	Code    string
	Display string
}

// VisitSource reads report inputs from the clinical store.
type VisitSource interface {
	ListVisits(ctx context.Context, q VisitQuery) ([]*Visit, error)
	// ObsForVisits returns the observations coded questionCode recorded
	// during each visit, in effective time order.
	ObsForVisits(ctx context.Context, visitIDs []uuid.UUID, questionCode string) (map[uuid.UUID][]ObsValue, error)
	// Enrollments returns the episode of care type codes of each patient
	// whose episode overlaps the window bounded by q.
	Enrollments(ctx context.Context, patientIDs []uuid.UUID, q VisitQuery) (map[uuid.UUID][]string, error)
	// Identifiers returns one identifier value per patient for system.
	Identifiers(ctx context.Context, patientIDs []uuid.UUID, system string) (map[uuid.UUID]string, error)
}
