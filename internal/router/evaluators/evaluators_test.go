package evaluators

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// fakeStore serves canned rules keyed by rule type.
type fakeStore struct {
	rules map[string][]router.RouterRule
	err   error
}

func (f *fakeStore) GetRouterRulesByType(_ context.Context, ruleType string) ([]router.RouterRule, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rules[ruleType], nil
}

func leafCriteria(t *testing.T, field, operator string, value any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"field":    field,
		"operator": operator,
		"value":    value,
	})
	if err != nil {
		t.Fatalf("marshal criteria: %v", err)
	}
	return data
}

func leafCondition(t *testing.T, field, operator string, value any) *router.Condition {
	t.Helper()
	cond, err := router.ParseFieldCriteria(leafCriteria(t, field, operator, value))
	if err != nil {
		t.Fatalf("parse criteria: %v", err)
	}
	return cond
}

func TestAllBuildsFullRegistry(t *testing.T) {
	store := &fakeStore{}
	registry := All(store, zerolog.Nop())

	if len(registry) != 6 {
		t.Fatalf("registry size = %d, want 6", len(registry))
	}

	names := make(map[string]bool)
	for _, ev := range registry {
		names[ev.Name()] = true
	}
	for _, want := range []string{
		"conditional-router", "ratings-router", "user-router",
		"year-router", "genre-router", "season-router",
	} {
		if !names[want] {
			t.Errorf("registry missing %s", want)
		}
	}
}

func TestCollectDecisionsFiltersRules(t *testing.T) {
	store := &fakeStore{rules: map[string][]router.RouterRule{
		"genre": {
			{ID: 1, Name: "match", Enabled: true, Target: router.TargetRadarr, InstanceID: 1,
				Criteria: leafCriteria(t, "genre", router.OpEquals, "anime")},
			{ID: 2, Name: "disabled", Enabled: false, Target: router.TargetRadarr, InstanceID: 2,
				Criteria: leafCriteria(t, "genre", router.OpEquals, "anime")},
			{ID: 3, Name: "wrong-target", Enabled: true, Target: router.TargetSonarr, InstanceID: 3,
				Criteria: leafCriteria(t, "genre", router.OpEquals, "anime")},
			{ID: 4, Name: "malformed", Enabled: true, Target: router.TargetRadarr, InstanceID: 4,
				Criteria: json.RawMessage(`{"nope":1}`)},
			{ID: 5, Name: "unowned-field", Enabled: true, Target: router.TargetRadarr, InstanceID: 5,
				Criteria: leafCriteria(t, "year", router.OpEquals, 2020)},
		},
	}}

	ev := NewGenreEvaluator(store, zerolog.Nop())
	item := &router.ContentItem{Genres: []string{"Anime"}}
	rctx := &router.RoutingContext{ContentType: router.ContentTypeMovie}

	decisions, err := ev.Evaluate(context.Background(), item, rctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("decision count = %d, want 1", len(decisions))
	}
	if decisions[0].RuleID != 1 {
		t.Errorf("surviving rule = %d, want 1", decisions[0].RuleID)
	}
}

func TestCollectDecisionsStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("db locked")}
	ev := NewGenreEvaluator(store, zerolog.Nop())

	_, err := ev.Evaluate(context.Background(),
		&router.ContentItem{Genres: []string{"Drama"}},
		&router.RoutingContext{ContentType: router.ContentTypeMovie})
	if err == nil {
		t.Error("expected store error to surface")
	}
}

func TestDecisionCarriesRuleOverrides(t *testing.T) {
	search := true
	store := &fakeStore{rules: map[string][]router.RouterRule{
		"genre": {
			{
				ID: 1, Name: "anime", Enabled: true, Target: router.TargetSonarr,
				InstanceID: 6, QualityProfile: "HD-1080p", RootFolder: "/tv/anime",
				Tags: []string{"anime"}, Order: 80,
				SearchOnAdd: &search, SeasonMonitoring: "all", SeriesType: "anime",
				Criteria: leafCriteria(t, "genre", router.OpEquals, "anime"),
			},
		},
	}}

	ev := NewGenreEvaluator(store, zerolog.Nop())
	decisions, err := ev.Evaluate(context.Background(),
		&router.ContentItem{Genres: []string{"anime"}},
		&router.RoutingContext{ContentType: router.ContentTypeShow})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("decision count = %d, want 1", len(decisions))
	}

	d := decisions[0]
	if d.QualityProfile != "HD-1080p" || d.RootFolder != "/tv/anime" {
		t.Errorf("overrides not carried: %+v", d)
	}
	if d.Priority != 80 {
		t.Errorf("priority = %d, want 80", d.Priority)
	}
	if d.SearchOnAdd == nil || !*d.SearchOnAdd {
		t.Error("searchOnAdd not carried")
	}
	if d.SeriesType != "anime" || d.SeasonMonitoring != "all" {
		t.Errorf("series overrides not carried: %+v", d)
	}
}
