package classify

import "time"

// FullMonths counts completed calendar months between birth and asOf.
// It returns 0 when asOf precedes birth.
func FullMonths(birth, asOf time.Time) int {
	by, bm, bd := birth.Date()
	ay, am, ad := asOf.In(birth.Location()).Date()
	months := (ay-by)*12 + int(am-bm)
	if ad < bd && !lastDayOfMonth(ay, am, ad) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// lastDayOfMonth treats e.g. Feb 28 as completing a month that started on the 31st.
func lastDayOfMonth(y int, m time.Month, d int) bool {
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC).Day() == 1
}

// AgeAt returns the age of a person born at birth on asOf, in full months.
// A nil birth date yields a Value that never classifies.
func AgeAt(birth *time.Time, asOf time.Time) Value {
	if birth == nil || birth.IsZero() {
		return Value{}
	}
	return Quantity(float64(FullMonths(*birth, asOf)), Months)
}
