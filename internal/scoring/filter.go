package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Filter keeps rows whose named field lies strictly between Min and Max.
type Filter struct {
	Name string  `json:"name" yaml:"name"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

func (f Filter) String() string {
	return fmt.Sprintf("%s:%g:%g", f.Name, f.Min, f.Max)
}

// FilterValidationError reports a filter naming an unknown field.
type FilterValidationError struct {
	Filter Filter
	Reason string
}

func (e *FilterValidationError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s (known fields: %s)", e.Filter.Name, e.Reason, strings.Join(Fields(), ", "))
}

type compiledFilter struct {
	Filter
	get accessor
}

// FilterSet is a validated list of filters ready to apply.
type FilterSet []compiledFilter

// CompileFilters resolves every filter's field up front.
func CompileFilters(filters []Filter) (FilterSet, error) {
	set := make(FilterSet, 0, len(filters))
	for _, f := range filters {
		get, ok := accessors[Field(f.Name)]
		if !ok {
			return nil, &FilterValidationError{Filter: f, Reason: "unknown field"}
		}
		set = append(set, compiledFilter{Filter: f, get: get})
	}
	return set, nil
}

// Pass reports whether e satisfies every filter.
func (s FilterSet) Pass(e ScoreEntry) bool {
	for _, f := range s {
		v := f.get(e)
		if !(f.Min < v && v < f.Max) {
			return false
		}
	}
	return true
}

// Apply returns the rows passing every filter, in input order.
func (s FilterSet) Apply(scores []ScoreEntry) []ScoreEntry {
	out := make([]ScoreEntry, 0, len(scores))
	for _, e := range scores {
		if s.Pass(e) {
			out = append(out, e)
		}
	}
	return out
}

// ApplyFilters compiles filters and applies them to scores.
func ApplyFilters(scores []ScoreEntry, filters []Filter) ([]ScoreEntry, error) {
	set, err := CompileFilters(filters)
	if err != nil {
		return nil, err
	}
	return set.Apply(scores), nil
}

// ParseFilter reads "name:min:max". Bounds accept inf and -inf; an empty
// bound is unbounded on that side.
func ParseFilter(s string) (Filter, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Filter{}, fmt.Errorf("filter %q: expected name:min:max", s)
	}

	f := Filter{Name: strings.TrimSpace(parts[0])}
	if _, err := ParseField(f.Name); err != nil {
		return Filter{}, &FilterValidationError{Filter: f, Reason: "unknown field"}
	}

	var err error
	if f.Min, err = parseBound(parts[1], math.Inf(-1)); err != nil {
		return Filter{}, fmt.Errorf("filter %q: bad min: %w", s, err)
	}
	if f.Max, err = parseBound(parts[2], math.Inf(1)); err != nil {
		return Filter{}, fmt.Errorf("filter %q: bad max: %w", s, err)
	}
	return f, nil
}

func parseBound(s string, unbounded float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return unbounded, nil
	}
	return strconv.ParseFloat(s, 64)
}
