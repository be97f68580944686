package evaluators

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// newConditionalFixture wires the composite evaluator to a dispatcher over
// the real field evaluators, the same shape All() builds for production.
func newConditionalFixture(store *fakeStore) *ConditionalEvaluator {
	field := Field(store, zerolog.Nop())
	dispatcher := router.NewFieldDispatcher(field, zerolog.Nop())
	return NewConditionalEvaluator(store, dispatcher, zerolog.Nop())
}

func conditionalRule(t *testing.T, id, instanceID int64, target router.TargetType, criteria string) router.RouterRule {
	t.Helper()
	return router.RouterRule{
		ID:         id,
		Name:       "cond",
		Type:       "conditional",
		Enabled:    true,
		Target:     target,
		InstanceID: instanceID,
		Criteria:   json.RawMessage(`{"condition":` + criteria + `}`),
	}
}

func TestConditionalCanEvaluate(t *testing.T) {
	criteria := `{"operator":"AND","conditions":[{"field":"year","operator":"equals","value":2020}]}`

	tests := []struct {
		name  string
		store *fakeStore
		want  bool
	}{
		{
			"enabled rule for target",
			&fakeStore{rules: map[string][]router.RouterRule{
				"conditional": {conditionalRule(t, 1, 1, router.TargetRadarr, criteria)},
			}},
			true,
		},
		{
			"rule for other target only",
			&fakeStore{rules: map[string][]router.RouterRule{
				"conditional": {conditionalRule(t, 1, 1, router.TargetSonarr, criteria)},
			}},
			false,
		},
		{
			"no rules",
			&fakeStore{},
			false,
		},
		{
			"store error",
			&fakeStore{err: errors.New("db locked")},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := newConditionalFixture(tt.store)
			rctx := &router.RoutingContext{ContentType: router.ContentTypeMovie}
			if got := ev.CanEvaluate(context.Background(), &router.ContentItem{}, rctx); got != tt.want {
				t.Errorf("CanEvaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConditionalEvaluateNestedTree(t *testing.T) {
	// Anime released 2015 or later, unless sally asked for it.
	criteria := `{
		"operator": "AND",
		"conditions": [
			{"field": "genre", "operator": "equals", "value": "anime"},
			{"field": "year", "operator": "greaterThan", "value": 2014},
			{
				"operator": "NOT",
				"conditions": [{"field": "user", "operator": "equals", "value": "sally"}]
			}
		]
	}`

	store := &fakeStore{rules: map[string][]router.RouterRule{
		"conditional": {conditionalRule(t, 1, 4, router.TargetSonarr, criteria)},
	}}
	ev := newConditionalFixture(store)

	item := &router.ContentItem{
		Title:  "Frieren",
		Year:   2023,
		Genres: []string{"Animation", "anime"},
	}

	tests := []struct {
		name string
		rctx *router.RoutingContext
		want int
	}{
		{"matches for alice", &router.RoutingContext{ContentType: router.ContentTypeShow, UserName: "alice"}, 1},
		{"excluded for sally", &router.RoutingContext{ContentType: router.ContentTypeShow, UserName: "sally"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decisions, err := ev.Evaluate(context.Background(), item, tt.rctx)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if len(decisions) != tt.want {
				t.Fatalf("decision count = %d, want %d", len(decisions), tt.want)
			}
			if tt.want == 1 && decisions[0].InstanceID != 4 {
				t.Errorf("instance = %d, want 4", decisions[0].InstanceID)
			}
		})
	}
}

func TestConditionalEvaluateSkipsMalformedAndFiltered(t *testing.T) {
	good := `{"operator":"OR","conditions":[{"field":"year","operator":"equals","value":2020}]}`
	disabled := conditionalRule(t, 2, 2, router.TargetRadarr, good)
	disabled.Enabled = false

	store := &fakeStore{rules: map[string][]router.RouterRule{
		"conditional": {
			conditionalRule(t, 1, 1, router.TargetRadarr, `{"operator":"XOR","conditions":[]}`),
			disabled,
			conditionalRule(t, 3, 3, router.TargetSonarr, good),
			conditionalRule(t, 4, 4, router.TargetRadarr, good),
		},
	}}

	ev := newConditionalFixture(store)
	item := &router.ContentItem{Title: "Tenet", Year: 2020}
	rctx := &router.RoutingContext{ContentType: router.ContentTypeMovie}

	decisions, err := ev.Evaluate(context.Background(), item, rctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(decisions) != 1 || decisions[0].RuleID != 4 {
		t.Fatalf("decisions = %+v, want rule 4 only", decisions)
	}
}

func TestConditionalStoreErrorSurfaces(t *testing.T) {
	ev := newConditionalFixture(&fakeStore{err: errors.New("db locked")})
	_, err := ev.Evaluate(context.Background(), &router.ContentItem{},
		&router.RoutingContext{ContentType: router.ContentTypeMovie})
	if err == nil {
		t.Error("expected store error to surface")
	}
}

func TestConditionalNeverDispatchesLeaves(t *testing.T) {
	ev := newConditionalFixture(&fakeStore{})
	if ev.CanEvaluateConditionField("genre") {
		t.Error("composite must not claim leaf fields")
	}
	cond := &router.Condition{Field: "genre", Operator: router.OpEquals, Value: "anime"}
	if ev.EvaluateCondition(cond, &router.ContentItem{}, &router.RoutingContext{}) {
		t.Error("composite must not evaluate leaf conditions")
	}
}
