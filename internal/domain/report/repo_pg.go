package report

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/opdreports/internal/platform/db"
)

type visitSourcePG struct {
	pool *pgxpool.Pool
}

// NewVisitSource reads visits from the EHR encounter, patient, observation
// and episode_of_care tables of the tenant schema selected on the connection.
func NewVisitSource(pool *pgxpool.Pool) VisitSource {
	return &visitSourcePG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *visitSourcePG) conn(ctx context.Context) querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const visitCols = `e.id, e.patient_id, p.mrn, e.period_start, e.period_end,
	p.birth_date, p.gender,
	p.address_line1, p.address_line2, p.city, p.district, p.state, p.postal_code, p.country,
	p.phone_mobile, p.phone_home, p.phone_work`

func (r *visitSourcePG) ListVisits(ctx context.Context, q VisitQuery) ([]*Visit, error) {
	sql := `SELECT ` + visitCols + `
		FROM encounter e
		JOIN patient p ON p.id = e.patient_id
		WHERE ($1::timestamptz IS NULL OR e.period_end >= $1)
		  AND ($2::timestamptz IS NULL OR e.period_end < $2)
		ORDER BY e.period_end, e.id`

	var before *time.Time
	if q.EndedOnOrBefore != nil {
		t := q.EndedOnOrBefore.AddDate(0, 0, 1)
		before = &t
	}

	rows, err := r.conn(ctx).Query(ctx, sql, q.EndedOnOrAfter, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var (
		v      Visit
		mrn    *string
		gender *string
		line1, line2, city, district, state, postal, country *string
		mobile, home, work                                   *string
	)
	err := row.Scan(&v.ID, &v.PatientID, &mrn, &v.PeriodStart, &v.PeriodEnd,
		&v.BirthDate, &gender,
		&line1, &line2, &city, &district, &state, &postal, &country,
		&mobile, &home, &work)
	if err != nil {
		return nil, err
	}
	v.MRN = deref(mrn)
	v.GenderCode = GenderCode(deref(gender))
	v.Contact = ContactInfo{
		AddressLine1: deref(line1),
		AddressLine2: deref(line2),
		City:         deref(city),
		District:     deref(district),
		State:        deref(state),
		PostalCode:   deref(postal),
		Country:      deref(country),
		PhoneMobile:  deref(mobile),
		PhoneHome:    deref(home),
		PhoneWork:    deref(work),
	}
	return &v, nil
}

func (r *visitSourcePG) ObsForVisits(ctx context.Context, visitIDs []uuid.UUID, questionCode string) (map[uuid.UUID][]ObsValue, error) {
	out := make(map[uuid.UUID][]ObsValue)
	if len(visitIDs) == 0 || questionCode == "" {
		return out, nil
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT encounter_id,
			COALESCE(value_codeable_code, value_code, ''),
			COALESCE(value_codeable_display, value_string,
				CASE WHEN value_quantity IS NOT NULL THEN value_quantity::text || COALESCE(' ' || value_unit, '') END,
				value_integer::text, value_boolean::text, '')
		FROM observation
		WHERE encounter_id = ANY($1) AND code_value = $2 AND status <> 'entered-in-error'
		ORDER BY effective_datetime NULLS LAST, created_at`,
		visitIDs, questionCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var v ObsValue
		if err := rows.Scan(&id, &v.Code, &v.Display); err != nil {
			return nil, err
		}
		out[id] = append(out[id], v)
	}
	return out, rows.Err()
}

func (r *visitSourcePG) Enrollments(ctx context.Context, patientIDs []uuid.UUID, q VisitQuery) (map[uuid.UUID][]string, error) {
	out := make(map[uuid.UUID][]string)
	if len(patientIDs) == 0 {
		return out, nil
	}

	var before *time.Time
	if q.EndedOnOrBefore != nil {
		t := q.EndedOnOrBefore.AddDate(0, 0, 1)
		before = &t
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT patient_id, type_code
		FROM episode_of_care
		WHERE patient_id = ANY($1)
		  AND type_code IS NOT NULL
		  AND status <> 'entered-in-error'
		  AND ($2::timestamptz IS NULL OR period_end IS NULL OR period_end >= $2)
		  AND ($3::timestamptz IS NULL OR period_start IS NULL OR period_start < $3)
		ORDER BY patient_id, type_code`,
		patientIDs, q.EndedOnOrAfter, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var code string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, err
		}
		out[id] = append(out[id], code)
	}
	return out, rows.Err()
}

func (r *visitSourcePG) Identifiers(ctx context.Context, patientIDs []uuid.UUID, system string) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string)
	if len(patientIDs) == 0 {
		return out, nil
	}

	var rows pgx.Rows
	var err error
	if system == "" {
		rows, err = r.conn(ctx).Query(ctx,
			`SELECT id, mrn FROM patient WHERE id = ANY($1) AND mrn IS NOT NULL`, patientIDs)
	} else {
		rows, err = r.conn(ctx).Query(ctx, `
			SELECT DISTINCT ON (patient_id) patient_id, value
			FROM patient_identifier
			WHERE patient_id = ANY($1) AND system_uri = $2
			ORDER BY patient_id, period_start DESC NULLS LAST`,
			patientIDs, system)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		out[id] = value
	}
	return out, rows.Err()
}

// GenderCode maps an administrative gender to the single-letter code the
// gender categories are defined on.
func GenderCode(gender string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "m":
		return "M"
	case "female", "f":
		return "F"
	case "other", "o":
		return "O"
	case "unknown", "u":
		return "U"
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
