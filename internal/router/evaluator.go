package router

import "context"

// Metadata describes an evaluator for rule authors and diagnostics. The
// field/operator lists are documentation only; evaluation itself treats
// unknown combinations as non-matches.
type Metadata struct {
	SupportedFields    []string            `json:"supportedFields"`
	SupportedOperators map[string][]string `json:"supportedOperators"`

	// ContentType restricts the evaluator to movie-only or show-only rules.
	// Empty means both.
	ContentType ContentType `json:"contentType,omitempty"`
}

// Evaluator is the capability contract every routing evaluator implements.
// Evaluators are pure functions of (item, context, current rule set): they
// must not mutate the item, the context, or any shared state.
//
// Evaluate reads the evaluator's own rule subset from the store and returns
// one decision per matching enabled rule. A store read failure is returned
// as an error; the orchestrator logs it and treats the evaluator as having
// contributed zero decisions, so one failing evaluator never blocks the
// others.
type Evaluator interface {
	Name() string
	Description() string

	// Priority orders merged decisions; higher is more important. It never
	// short-circuits evaluation.
	Priority() int

	Metadata() Metadata

	// CanEvaluate is a cheap precondition check run before Evaluate.
	CanEvaluate(ctx context.Context, item *ContentItem, rctx *RoutingContext) bool

	Evaluate(ctx context.Context, item *ContentItem, rctx *RoutingContext) ([]RoutingDecision, error)

	// EvaluateCondition resolves a single leaf condition against the item
	// and context. It applies the condition's own negate flag exactly once;
	// callers must not re-apply it. Unknown operators, fields, or value
	// shapes evaluate to false.
	EvaluateCondition(cond *Condition, item *ContentItem, rctx *RoutingContext) bool

	// CanEvaluateConditionField declares field ownership for dispatch.
	CanEvaluateConditionField(field string) bool
}

// PluginInfo is the read-only introspection record for one loaded evaluator.
type PluginInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	Priority    int    `json:"priority"`
}
