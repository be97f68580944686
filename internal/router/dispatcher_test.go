package router

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

// fieldFake is a minimal evaluator that owns one field and answers leaf
// conditions with a fixed verdict per value.
type fieldFake struct {
	field    string
	priority int
	verdicts map[any]bool
}

func (f *fieldFake) Name() string        { return f.field + "-fake" }
func (f *fieldFake) Description() string { return "test evaluator" }
func (f *fieldFake) Priority() int       { return f.priority }

func (f *fieldFake) Metadata() Metadata {
	return Metadata{SupportedFields: []string{f.field}}
}

func (f *fieldFake) CanEvaluate(context.Context, *ContentItem, *RoutingContext) bool { return true }

func (f *fieldFake) Evaluate(context.Context, *ContentItem, *RoutingContext) ([]RoutingDecision, error) {
	return nil, nil
}

func (f *fieldFake) CanEvaluateConditionField(field string) bool { return field == f.field }

func (f *fieldFake) EvaluateCondition(cond *Condition, _ *ContentItem, _ *RoutingContext) bool {
	result := f.verdicts[cond.Value]
	if cond.Negate {
		result = !result
	}
	return result
}

func mustNode(t *testing.T, data string) *ConditionNode {
	t.Helper()
	var node ConditionNode
	if err := json.Unmarshal([]byte(data), &node); err != nil {
		t.Fatalf("bad test condition %s: %v", data, err)
	}
	return &node
}

func testDispatcher() *FieldDispatcher {
	genre := &fieldFake{field: "genre", priority: 65, verdicts: map[any]bool{"anime": true}}
	year := &fieldFake{field: "year", priority: 70, verdicts: map[any]bool{float64(2020): true}}
	return NewFieldDispatcher([]Evaluator{genre, year}, zerolog.Nop())
}

func TestDispatcherLeaf(t *testing.T) {
	d := testDispatcher()
	item := &ContentItem{}
	rctx := &RoutingContext{}

	tests := []struct {
		name string
		node string
		want bool
	}{
		{"matching leaf", `{"field":"genre","operator":"equals","value":"anime"}`, true},
		{"non-matching leaf", `{"field":"genre","operator":"equals","value":"drama"}`, false},
		{"negated match", `{"field":"genre","operator":"equals","value":"anime","negate":true}`, false},
		{"unclaimed field", `{"field":"language","operator":"equals","value":"en"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.EvaluateNode(mustNode(t, tt.node), item, rctx)
			if got != tt.want {
				t.Errorf("EvaluateNode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatcherGroups(t *testing.T) {
	d := testDispatcher()
	item := &ContentItem{}
	rctx := &RoutingContext{}

	genreYes := `{"field":"genre","operator":"equals","value":"anime"}`
	genreNo := `{"field":"genre","operator":"equals","value":"drama"}`
	yearYes := `{"field":"year","operator":"equals","value":2020}`

	tests := []struct {
		name string
		node string
		want bool
	}{
		{"AND all true", `{"operator":"AND","conditions":[` + genreYes + `,` + yearYes + `]}`, true},
		{"AND one false", `{"operator":"AND","conditions":[` + genreYes + `,` + genreNo + `]}`, false},
		{"OR one true", `{"operator":"OR","conditions":[` + genreNo + `,` + yearYes + `]}`, true},
		{"OR all false", `{"operator":"OR","conditions":[` + genreNo + `,` + genreNo + `]}`, false},
		{"NOT inverts conjunction", `{"operator":"NOT","conditions":[` + genreYes + `,` + yearYes + `]}`, false},
		{"NOT of partial match", `{"operator":"NOT","conditions":[` + genreYes + `,` + genreNo + `]}`, true},
		{"negated AND", `{"operator":"AND","negate":true,"conditions":[` + genreYes + `,` + yearYes + `]}`, false},
		{"nested groups", `{"operator":"AND","conditions":[` + genreYes + `,{"operator":"OR","conditions":[` + genreNo + `,` + yearYes + `]}]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.EvaluateNode(mustNode(t, tt.node), item, rctx)
			if got != tt.want {
				t.Errorf("EvaluateNode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatcherEdgeCases(t *testing.T) {
	d := testDispatcher()
	item := &ContentItem{}
	rctx := &RoutingContext{}

	if d.EvaluateNode(nil, item, rctx) {
		t.Error("nil node should not match")
	}
	if d.EvaluateNode(&ConditionNode{}, item, rctx) {
		t.Error("empty node should not match")
	}

	empty := &ConditionNode{Group: &ConditionGroup{Operator: GroupAnd}}
	if d.EvaluateNode(empty, item, rctx) {
		t.Error("empty group should not match")
	}

	unknown := &ConditionNode{Group: &ConditionGroup{
		Operator:   "XOR",
		Conditions: []ConditionNode{*mustNode(t, `{"field":"year","operator":"equals","value":2020}`)},
	}}
	if d.EvaluateNode(unknown, item, rctx) {
		t.Error("unknown group operator should not match")
	}
}

func TestDispatcherFieldOwnershipByPriority(t *testing.T) {
	low := &fieldFake{field: "shared", priority: 10, verdicts: map[any]bool{}}
	high := &fieldFake{field: "shared", priority: 20, verdicts: map[any]bool{"x": true}}
	d := NewFieldDispatcher([]Evaluator{low, high}, zerolog.Nop())

	node := mustNode(t, `{"field":"shared","operator":"equals","value":"x"}`)
	if !d.EvaluateNode(node, &ContentItem{}, &RoutingContext{}) {
		t.Error("higher priority evaluator should own the shared field")
	}
}
