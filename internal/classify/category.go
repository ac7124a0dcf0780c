package classify

import "fmt"

// CategorySet labels a set of accepted discrete codes.
type CategorySet struct {
	Codes []string
	Label Label
}

type category struct {
	accepted map[string]struct{}
	label    Label
}

// CategoricalClassifier matches codes by exact, case-sensitive membership.
type CategoricalClassifier struct {
	sets []CategorySet
	cats []category
}

func NewCategoricalClassifier(sets ...CategorySet) (*CategoricalClassifier, error) {
	if len(sets) == 0 {
		return nil, ErrNoRules
	}
	c := &CategoricalClassifier{
		sets: make([]CategorySet, len(sets)),
		cats: make([]category, len(sets)),
	}
	for i, s := range sets {
		if len(s.Codes) == 0 {
			return nil, fmt.Errorf("category %d %q: %w", i, s.Label, ErrEmptyCategory)
		}
		accepted := make(map[string]struct{}, len(s.Codes))
		for _, code := range s.Codes {
			accepted[code] = struct{}{}
		}
		c.sets[i] = CategorySet{Codes: append([]string(nil), s.Codes...), Label: s.Label}
		c.cats[i] = category{accepted: accepted, label: s.Label}
	}
	return c, nil
}

// MustCategoricalClassifier panics on a configuration error.
func MustCategoricalClassifier(sets ...CategorySet) *CategoricalClassifier {
	c, err := NewCategoricalClassifier(sets...)
	if err != nil {
		panic(err)
	}
	return c
}

// Sets returns a copy of the configured category sets.
func (c *CategoricalClassifier) Sets() []CategorySet {
	out := make([]CategorySet, len(c.sets))
	for i, s := range c.sets {
		out[i] = CategorySet{Codes: append([]string(nil), s.Codes...), Label: s.Label}
	}
	return out
}

// Match returns the label of the first set that accepts code.
func (c *CategoricalClassifier) Match(code string) (Label, bool) {
	for _, cat := range c.cats {
		if _, ok := cat.accepted[code]; ok {
			return cat.label, true
		}
	}
	return "", false
}

// MatchAll returns the label of every set that accepts code.
func (c *CategoricalClassifier) MatchAll(code string) []Label {
	var out []Label
	for _, cat := range c.cats {
		if _, ok := cat.accepted[code]; ok {
			out = append(out, cat.label)
		}
	}
	return out
}

func (c *CategoricalClassifier) Kind() Kind { return KindCategorical }

func (c *CategoricalClassifier) Classify(v Value) (Label, bool) {
	if !v.Present {
		return "", false
	}
	return c.Match(v.Code)
}

func (c *CategoricalClassifier) ClassifyAll(v Value) []Label {
	if !v.Present {
		return nil
	}
	return c.MatchAll(v.Code)
}

func (c *CategoricalClassifier) sealed() {}
