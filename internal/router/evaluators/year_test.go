package evaluators

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

func TestYearEvaluateCondition(t *testing.T) {
	ev := NewYearEvaluator(&fakeStore{}, zerolog.Nop())
	item := &router.ContentItem{Year: 2015}

	tests := []struct {
		name     string
		operator string
		value    any
		negate   bool
		want     bool
	}{
		{"equals", router.OpEquals, float64(2015), false, true},
		{"equals miss", router.OpEquals, float64(2016), false, false},
		{"equals string coerced", router.OpEquals, "2015", false, true},
		{"notEquals", router.OpNotEquals, float64(1999), false, true},
		{"greaterThan", router.OpGreaterThan, float64(2010), false, true},
		{"greaterThan equal is false", router.OpGreaterThan, float64(2015), false, false},
		{"lessThan", router.OpLessThan, float64(2020), false, true},
		{"in", router.OpIn, []any{float64(2014), float64(2015)}, false, true},
		{"in miss", router.OpIn, []any{float64(2014), float64(2016)}, false, false},
		{"notIn", router.OpNotIn, []any{float64(2014), float64(2016)}, false, true},
		{"between inclusive", router.OpBetween, map[string]any{"min": float64(2010), "max": float64(2015)}, false, true},
		{"between outside", router.OpBetween, map[string]any{"min": float64(2016), "max": float64(2020)}, false, false},
		{"between open max", router.OpBetween, map[string]any{"min": float64(2010)}, false, true},
		{"between open min", router.OpBetween, map[string]any{"max": float64(2016)}, false, true},
		{"between empty range matches everything", router.OpBetween, map[string]any{}, false, true},
		{"between bad bound", router.OpBetween, map[string]any{"min": "soon"}, false, false},
		{"negate", router.OpEquals, float64(2015), true, false},
		{"uncoercible value", router.OpEquals, true, false, false},
		{"unknown operator", "around", float64(2015), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := &router.Condition{Field: "year", Operator: tt.operator, Value: tt.value, Negate: tt.negate}
			got := ev.EvaluateCondition(cond, item, nil)
			if got != tt.want {
				t.Errorf("EvaluateCondition(%s %v) = %v, want %v", tt.operator, tt.value, got, tt.want)
			}
		})
	}
}

func TestYearZeroNeverMatches(t *testing.T) {
	ev := NewYearEvaluator(&fakeStore{}, zerolog.Nop())
	item := &router.ContentItem{}

	cond := &router.Condition{Field: "year", Operator: router.OpLessThan, Value: float64(3000)}
	if ev.EvaluateCondition(cond, item, nil) {
		t.Error("item without a year should not match")
	}

	// Negate does not apply either: the item is skipped, not non-matching.
	cond.Negate = true
	if ev.EvaluateCondition(cond, item, nil) {
		t.Error("negate must not turn a missing year into a match")
	}
}
