package evaluators

import (
	"math"

	"github.com/spf13/cast"
)

// Rule criteria arrive as decoded JSON: numbers are float64, arrays are
// []any, ranges are map[string]any. These helpers coerce them into the
// shapes the operators need; a failed coercion means the condition simply
// does not match, never an error.

func toNumber(v any) (float64, bool) {
	switch v.(type) {
	case bool, nil:
		return 0, false
	}
	n, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func toNumberSlice(v any) ([]float64, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	numbers := make([]float64, 0, len(items))
	for _, item := range items {
		n, ok := toNumber(item)
		if !ok {
			return nil, false
		}
		numbers = append(numbers, n)
	}
	return numbers, true
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toStringSlice(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	strs := make([]string, 0, len(items))
	for _, item := range items {
		s, err := cast.ToStringE(item)
		if err != nil {
			return nil, false
		}
		strs = append(strs, s)
	}
	return strs, true
}

// numberRange is an inclusive range with open bounds defaulting to ±inf.
type numberRange struct {
	Min float64
	Max float64
}

func (r numberRange) contains(n float64) bool {
	return n >= r.Min && n <= r.Max
}

// toRange coerces a {min?, max?} map. Missing bounds default to ±inf, so a
// half-open range like {min: 2010} is valid.
func toRange(v any) (numberRange, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return numberRange{}, false
	}

	r := numberRange{Min: math.Inf(-1), Max: math.Inf(1)}

	if raw, exists := m["min"]; exists && raw != nil {
		n, ok := toNumber(raw)
		if !ok {
			return numberRange{}, false
		}
		r.Min = n
	}
	if raw, exists := m["max"]; exists && raw != nil {
		n, ok := toNumber(raw)
		if !ok {
			return numberRange{}, false
		}
		r.Max = n
	}

	return r, true
}
