package classify

import "fmt"

// Range is a labeled half-open interval [Lower, Upper).
type Range struct {
	Lower     float64
	LowerUnit TimeUnit
	Upper     float64
	UpperUnit TimeUnit
	Label     Label
}

func (r Range) String() string {
	return fmt.Sprintf("[%g %s, %g %s) %q", r.Lower, r.LowerUnit, r.Upper, r.UpperUnit, r.Label)
}

// bounds of a range in day ticks.
type bounds struct {
	lower, upper float64
	label        Label
}

// RangeClassifier matches magnitudes against an ordered list of ranges.
type RangeClassifier struct {
	ranges []Range
	unit   TimeUnit
	norm   []bounds
}

// NewRangeClassifier validates the ranges and records the finest unit used by
// any bound. Bounds and inputs are compared in day ticks using multiplication
// only. Overlapping ranges are allowed.
func NewRangeClassifier(ranges ...Range) (*RangeClassifier, error) {
	if len(ranges) == 0 {
		return nil, ErrNoRules
	}

	unit := Years
	for i, r := range ranges {
		if !r.LowerUnit.Valid() || !r.UpperUnit.Valid() {
			return nil, fmt.Errorf("range %d %s: %w", i, r, ErrUnknownUnit)
		}
		unit = finer(unit, finer(r.LowerUnit, r.UpperUnit))
	}

	c := &RangeClassifier{
		ranges: append([]Range(nil), ranges...),
		unit:   unit,
		norm:   make([]bounds, len(ranges)),
	}
	for i, r := range ranges {
		lo := ticks(r.Lower, r.LowerUnit)
		hi := ticks(r.Upper, r.UpperUnit)
		if lo > hi {
			return nil, fmt.Errorf("range %d %s: lower bound above upper bound: %w", i, r, ErrInvalidRange)
		}
		c.norm[i] = bounds{lower: lo, upper: hi, label: r.Label}
	}
	return c, nil
}

// MustRangeClassifier is NewRangeClassifier for static tables; it panics on a
// configuration error.
func MustRangeClassifier(ranges ...Range) *RangeClassifier {
	c, err := NewRangeClassifier(ranges...)
	if err != nil {
		panic(err)
	}
	return c
}

// Unit returns the finest unit used by any bound.
func (c *RangeClassifier) Unit() TimeUnit { return c.unit }

// Ranges returns a copy of the configured ranges.
func (c *RangeClassifier) Ranges() []Range { return append([]Range(nil), c.ranges...) }

// Match returns the label of the first range containing value.
func (c *RangeClassifier) Match(value float64, unit TimeUnit) (Label, bool) {
	if !unit.Valid() {
		return "", false
	}
	v := ticks(value, unit)
	for _, b := range c.norm {
		if b.lower <= v && v < b.upper {
			return b.label, true
		}
	}
	return "", false
}

// MatchAll returns the labels of every range containing value.
func (c *RangeClassifier) MatchAll(value float64, unit TimeUnit) []Label {
	if !unit.Valid() {
		return nil
	}
	v := ticks(value, unit)
	var out []Label
	for _, b := range c.norm {
		if b.lower <= v && v < b.upper {
			out = append(out, b.label)
		}
	}
	return out
}

func (c *RangeClassifier) Kind() Kind { return KindRange }

func (c *RangeClassifier) Classify(v Value) (Label, bool) {
	if !v.Present {
		return "", false
	}
	return c.Match(v.Number, v.Unit)
}

func (c *RangeClassifier) ClassifyAll(v Value) []Label {
	if !v.Present {
		return nil
	}
	return c.MatchAll(v.Number, v.Unit)
}

func (c *RangeClassifier) sealed() {}
