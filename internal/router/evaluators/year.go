package evaluators

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// YearEvaluator routes items based on their release year.
type YearEvaluator struct {
	store  router.RuleStore
	logger zerolog.Logger
}

// NewYearEvaluator creates the year evaluator.
func NewYearEvaluator(store router.RuleStore, logger zerolog.Logger) *YearEvaluator {
	return &YearEvaluator{
		store:  store,
		logger: logger.With().Str("component", "year-evaluator").Logger(),
	}
}

func (e *YearEvaluator) Name() string        { return "year-router" }
func (e *YearEvaluator) Description() string { return "Routes content based on release year" }
func (e *YearEvaluator) Priority() int       { return PriorityYear }

func (e *YearEvaluator) Metadata() router.Metadata {
	return router.Metadata{
		SupportedFields: []string{"year"},
		SupportedOperators: map[string][]string{
			"year": {
				router.OpEquals, router.OpNotEquals,
				router.OpGreaterThan, router.OpLessThan,
				router.OpIn, router.OpNotIn, router.OpBetween,
			},
		},
	}
}

func (e *YearEvaluator) CanEvaluate(_ context.Context, item *router.ContentItem, _ *router.RoutingContext) bool {
	return item.Year != 0
}

func (e *YearEvaluator) Evaluate(ctx context.Context, item *router.ContentItem, rctx *router.RoutingContext) ([]router.RoutingDecision, error) {
	return collectDecisions(ctx, e.store, e.logger, "year", e, item, rctx)
}

func (e *YearEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "year"
}

func (e *YearEvaluator) EvaluateCondition(cond *router.Condition, item *router.ContentItem, _ *router.RoutingContext) bool {
	if !e.CanEvaluateConditionField(cond.Field) || item.Year == 0 {
		return false
	}

	result := matchNumber(cond.Operator, float64(item.Year), cond.Value)
	if cond.Negate {
		result = !result
	}
	return result
}

// matchNumber applies a numeric operator to a single actual value. Unknown
// operators and uncoercible rule values are non-matches.
func matchNumber(operator string, actual float64, value any) bool {
	switch operator {
	case router.OpEquals:
		want, ok := toNumber(value)
		return ok && actual == want

	case router.OpNotEquals:
		want, ok := toNumber(value)
		return ok && actual != want

	case router.OpGreaterThan:
		want, ok := toNumber(value)
		return ok && actual > want

	case router.OpLessThan:
		want, ok := toNumber(value)
		return ok && actual < want

	case router.OpIn:
		want, ok := toNumberSlice(value)
		return ok && containsNumber(want, actual)

	case router.OpNotIn:
		want, ok := toNumberSlice(value)
		return ok && !containsNumber(want, actual)

	case router.OpBetween:
		r, ok := toRange(value)
		return ok && r.contains(actual)

	default:
		return false
	}
}

func containsNumber(list []float64, value float64) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
