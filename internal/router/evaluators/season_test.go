package evaluators

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

func showWithSeasons(numbers ...int) *router.ContentItem {
	seasons := make([]router.Season, len(numbers))
	for i, n := range numbers {
		seasons[i] = router.Season{Number: n}
	}
	return &router.ContentItem{Type: router.ContentTypeShow, Seasons: seasons}
}

func TestSeasonEvaluateCondition(t *testing.T) {
	ev := NewSeasonEvaluator(&fakeStore{}, zerolog.Nop())
	item := showWithSeasons(1, 2, 3, 4, 5)

	tests := []struct {
		name     string
		operator string
		value    any
		negate   bool
		want     bool
	}{
		{"equals any season", router.OpEquals, float64(3), false, true},
		{"equals miss", router.OpEquals, float64(9), false, false},
		{"greaterThan any", router.OpGreaterThan, float64(4), false, true},
		{"greaterThan all below", router.OpGreaterThan, float64(5), false, false},
		{"lessThan any", router.OpLessThan, float64(2), false, true},
		{"in", router.OpIn, []any{float64(5), float64(9)}, false, true},
		{"notEquals some season differs", router.OpNotEquals, float64(3), false, true},
		{"negate", router.OpEquals, float64(3), true, false},
		{"unknown operator", "overlaps", float64(3), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := &router.Condition{Field: "season", Operator: tt.operator, Value: tt.value, Negate: tt.negate}
			got := ev.EvaluateCondition(cond, item, nil)
			if got != tt.want {
				t.Errorf("EvaluateCondition(%s %v) = %v, want %v", tt.operator, tt.value, got, tt.want)
			}
		})
	}
}

func TestSeasonBetweenUsesOverlap(t *testing.T) {
	ev := NewSeasonEvaluator(&fakeStore{}, zerolog.Nop())

	tests := []struct {
		name    string
		seasons []int
		value   map[string]any
		want    bool
	}{
		// A show with seasons 1-5 overlaps a 4-6 rule even though 6 is
		// not present yet.
		{"partial overlap high", []int{1, 2, 3, 4, 5}, map[string]any{"min": float64(4), "max": float64(6)}, true},
		{"partial overlap low", []int{4, 5, 6}, map[string]any{"min": float64(1), "max": float64(4)}, true},
		{"contained", []int{2, 3}, map[string]any{"min": float64(1), "max": float64(5)}, true},
		{"disjoint above", []int{1, 2}, map[string]any{"min": float64(4), "max": float64(6)}, false},
		{"disjoint below", []int{7, 8}, map[string]any{"min": float64(1), "max": float64(5)}, false},
		{"open min", []int{3}, map[string]any{"max": float64(4)}, true},
		{"open max", []int{10}, map[string]any{"min": float64(4)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := &router.Condition{Field: "season", Operator: router.OpBetween, Value: tt.value}
			got := ev.EvaluateCondition(cond, showWithSeasons(tt.seasons...), nil)
			if got != tt.want {
				t.Errorf("between %v over %v = %v, want %v", tt.value, tt.seasons, got, tt.want)
			}
		})
	}
}

func TestSeasonShowOnly(t *testing.T) {
	ev := NewSeasonEvaluator(&fakeStore{}, zerolog.Nop())
	ctx := context.Background()

	movie := &router.ContentItem{Type: router.ContentTypeMovie}
	if ev.CanEvaluate(ctx, movie, &router.RoutingContext{ContentType: router.ContentTypeMovie}) {
		t.Error("movies should never reach the season evaluator")
	}

	show := showWithSeasons(1)
	if !ev.CanEvaluate(ctx, show, &router.RoutingContext{ContentType: router.ContentTypeShow}) {
		t.Error("show with seasons should be evaluated")
	}

	empty := &router.ContentItem{Type: router.ContentTypeShow}
	if ev.CanEvaluate(ctx, empty, &router.RoutingContext{ContentType: router.ContentTypeShow}) {
		t.Error("show without season metadata should be skipped")
	}

	cond := &router.Condition{Field: "season", Operator: router.OpEquals, Value: float64(1), Negate: true}
	if ev.EvaluateCondition(cond, empty, nil) {
		t.Error("negate must not turn missing seasons into a match")
	}
}
