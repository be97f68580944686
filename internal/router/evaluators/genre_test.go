package evaluators

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

func TestGenreEvaluateCondition(t *testing.T) {
	ev := NewGenreEvaluator(&fakeStore{}, zerolog.Nop())
	item := &router.ContentItem{Genres: []string{"Animation", "Comedy"}}

	tests := []struct {
		name     string
		operator string
		value    any
		negate   bool
		want     bool
	}{
		{"equals case-insensitive", router.OpEquals, "animation", false, true},
		{"equals miss", router.OpEquals, "horror", false, false},
		{"notEquals", router.OpNotEquals, "horror", false, true},
		{"notEquals present genre", router.OpNotEquals, "Comedy", false, false},
		{"contains substring", router.OpContains, "anim", false, true},
		{"contains miss", router.OpContains, "docu", false, false},
		{"notContains", router.OpNotContains, "docu", false, true},
		{"in list", router.OpIn, []any{"horror", "comedy"}, false, true},
		{"in miss", router.OpIn, []any{"horror", "drama"}, false, false},
		{"notIn", router.OpNotIn, []any{"horror", "drama"}, false, true},
		{"regex", router.OpRegex, "^Anim", false, true},
		{"regex miss", router.OpRegex, "^Docu", false, false},
		{"unsafe regex rejected", router.OpRegex, "(a+)+$", false, false},
		{"invalid regex rejected", router.OpRegex, "(", false, false},
		{"negate flips match", router.OpEquals, "Comedy", true, false},
		{"negate flips miss", router.OpEquals, "horror", true, true},
		{"wrong value type", router.OpEquals, 42, false, false},
		{"unknown operator", "startsWith", "Anim", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := &router.Condition{Field: "genre", Operator: tt.operator, Value: tt.value, Negate: tt.negate}
			got := ev.EvaluateCondition(cond, item, nil)
			if got != tt.want {
				t.Errorf("EvaluateCondition(%s %v) = %v, want %v", tt.operator, tt.value, got, tt.want)
			}
		})
	}
}

func TestGenreMissingDataNeverMatches(t *testing.T) {
	ev := NewGenreEvaluator(&fakeStore{}, zerolog.Nop())
	bare := &router.ContentItem{}

	conds := []*router.Condition{
		{Field: "genre", Operator: router.OpEquals, Value: "horror"},
		{Field: "genre", Operator: router.OpNotEquals, Value: "horror"},
		{Field: "genre", Operator: router.OpNotContains, Value: "horror"},
		// Negate must not turn missing genres into a match.
		{Field: "genre", Operator: router.OpEquals, Value: "horror", Negate: true},
		{Field: "genre", Operator: router.OpIn, Value: []any{"horror"}, Negate: true},
	}
	for _, cond := range conds {
		if ev.EvaluateCondition(cond, bare, nil) {
			t.Errorf("%s %v (negate=%v) matched an item without genres", cond.Operator, cond.Value, cond.Negate)
		}
	}
}

func TestGenreFieldOwnership(t *testing.T) {
	ev := NewGenreEvaluator(&fakeStore{}, zerolog.Nop())

	if !ev.CanEvaluateConditionField("genre") || !ev.CanEvaluateConditionField("genres") {
		t.Error("genre evaluator should own genre and genres")
	}
	if ev.CanEvaluateConditionField("year") {
		t.Error("genre evaluator should not own year")
	}

	cond := &router.Condition{Field: "year", Operator: router.OpEquals, Value: "Animation"}
	if ev.EvaluateCondition(cond, &router.ContentItem{Genres: []string{"Animation"}}, nil) {
		t.Error("unowned field should not match")
	}
}

func TestGenreCanEvaluate(t *testing.T) {
	ev := NewGenreEvaluator(&fakeStore{}, zerolog.Nop())
	ctx := context.Background()

	if ev.CanEvaluate(ctx, &router.ContentItem{}, nil) {
		t.Error("item without genres should not be evaluated")
	}
	if !ev.CanEvaluate(ctx, &router.ContentItem{Genres: []string{"Drama"}}, nil) {
		t.Error("item with genres should be evaluated")
	}
}
