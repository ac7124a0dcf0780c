// Package classify buckets patient attributes into labeled groups.
//
// Two rule kinds exist: half-open numeric ranges carrying a time unit (age
// bands) and sets of discrete codes (gender categories). Classifiers are
// immutable once built and may be shared across goroutines.
package classify

import "errors"

var (
	ErrInvalidRange  = errors.New("invalid range")
	ErrEmptyCategory = errors.New("empty category set")
	ErrUnknownUnit   = errors.New("unknown time unit")
	ErrNoRules       = errors.New("classifier has no rules")
)

// Label is the output of a successful classification.
type Label string

// Kind identifies one of the closed set of classifier implementations.
type Kind string

const (
	KindRange       Kind = "range"
	KindCategorical Kind = "categorical"
)

// Value is the input handed over by the report evaluator: either a magnitude
// with a unit or a discrete code.
type Value struct {
	Number float64
	Unit   TimeUnit
	Code   string
	// Present is false when the source attribute was missing (no birth date,
	// no gender recorded).
	Present bool
}

// Quantity builds a numeric Value.
func Quantity(n float64, unit TimeUnit) Value {
	return Value{Number: n, Unit: unit, Present: true}
}

// Code builds a discrete Value.
func Code(code string) Value {
	return Value{Code: code, Present: true}
}

// Classifier is implemented only by *RangeClassifier and
// *CategoricalClassifier.
type Classifier interface {
	Kind() Kind
	// Classify returns the label of the first matching rule.
	Classify(v Value) (Label, bool)
	// ClassifyAll returns every matching label in rule order.
	ClassifyAll(v Value) []Label
	sealed()
}
