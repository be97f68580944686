package evaluators

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

func userContext(id int64, name string) *router.RoutingContext {
	return &router.RoutingContext{
		ContentType: router.ContentTypeMovie,
		UserID:      id,
		UserName:    name,
	}
}

func TestUserCanEvaluateRequiresIdentity(t *testing.T) {
	ev := NewUserEvaluator(&fakeStore{}, zerolog.Nop())
	item := &router.ContentItem{Title: "Heat"}

	if ev.CanEvaluate(context.Background(), item, userContext(0, "")) {
		t.Error("CanEvaluate = true without a user identity")
	}
	if !ev.CanEvaluate(context.Background(), item, userContext(7, "")) {
		t.Error("CanEvaluate = false with a user ID")
	}
	if !ev.CanEvaluate(context.Background(), item, userContext(0, "alice")) {
		t.Error("CanEvaluate = false with a user name")
	}
}

func TestUserEvaluateCondition(t *testing.T) {
	ev := NewUserEvaluator(&fakeStore{}, zerolog.Nop())
	item := &router.ContentItem{Title: "Heat"}

	tests := []struct {
		name     string
		operator string
		value    any
		negate   bool
		rctx     *router.RoutingContext
		want     bool
	}{
		{"equals name", router.OpEquals, "alice", false, userContext(7, "alice"), true},
		{"equals wrong name", router.OpEquals, "bob", false, userContext(7, "alice"), false},
		{"equals numeric id", router.OpEquals, float64(7), false, userContext(7, "alice"), true},
		{"equals id as string", router.OpEquals, "7", false, userContext(7, ""), true},
		{"notEquals", router.OpNotEquals, "bob", false, userContext(7, "alice"), true},
		{"notEquals matching", router.OpNotEquals, "alice", false, userContext(7, "alice"), false},
		{"in mixed list", router.OpIn, []any{float64(3), "alice"}, false, userContext(7, "alice"), true},
		{"in miss", router.OpIn, []any{float64(3), "bob"}, false, userContext(7, "alice"), false},
		{"in non-list value", router.OpIn, "alice", false, userContext(7, "alice"), false},
		{"notIn", router.OpNotIn, []any{"bob", float64(3)}, false, userContext(7, "alice"), true},
		{"notIn matching id", router.OpNotIn, []any{float64(7)}, false, userContext(7, "alice"), false},
		{"regex on name", router.OpRegex, "^ali", false, userContext(0, "alice"), true},
		{"regex without name", router.OpRegex, "^ali", false, userContext(7, ""), false},
		{"negated equals match", router.OpEquals, "alice", true, userContext(7, "alice"), false},
		{"negated equals miss", router.OpEquals, "bob", true, userContext(7, "alice"), true},
		{"unknown operator", router.OpGreaterThan, "alice", false, userContext(7, "alice"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := &router.Condition{
				Field:    "user",
				Operator: tt.operator,
				Value:    tt.value,
				Negate:   tt.negate,
			}
			if got := ev.EvaluateCondition(cond, item, tt.rctx); got != tt.want {
				t.Errorf("EvaluateCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Catastrophic patterns are rejected up front, so a hostile user rule can
// never stall routing no matter what user name it is matched against.
func TestUserRegexRejectsUnsafePattern(t *testing.T) {
	ev := NewUserEvaluator(&fakeStore{}, zerolog.Nop())
	cond := &router.Condition{
		Field:    "user",
		Operator: router.OpRegex,
		Value:    "(a+)+$",
	}
	rctx := userContext(0, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaab")

	done := make(chan bool, 1)
	go func() {
		done <- ev.EvaluateCondition(cond, &router.ContentItem{}, rctx)
	}()

	select {
	case got := <-done:
		if got {
			t.Error("unsafe pattern evaluated to true, want rejection")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("evaluation did not return promptly")
	}
}

func TestUserEvaluateMatchesRules(t *testing.T) {
	store := &fakeStore{rules: map[string][]router.RouterRule{
		"user": {
			{ID: 1, Name: "alice-4k", Enabled: true, Target: router.TargetRadarr, InstanceID: 2,
				Criteria: leafCriteria(t, "user", router.OpEquals, "alice")},
			{ID: 2, Name: "kids", Enabled: true, Target: router.TargetRadarr, InstanceID: 3,
				Criteria: leafCriteria(t, "userName", router.OpIn, []any{"timmy", "sally"})},
		},
	}}

	ev := NewUserEvaluator(store, zerolog.Nop())
	decisions, err := ev.Evaluate(context.Background(),
		&router.ContentItem{Title: "Heat"}, userContext(7, "alice"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(decisions) != 1 || decisions[0].RuleID != 1 {
		t.Fatalf("decisions = %+v, want rule 1 only", decisions)
	}
}
