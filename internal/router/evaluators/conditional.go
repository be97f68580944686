package evaluators

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// ConditionalEvaluator handles rules whose criteria are nested AND/OR/NOT
// condition trees spanning every routable field. Leaf conditions are
// delegated to the owning field evaluator through the dispatcher the
// orchestrator exposes; the dispatcher is injected at construction so the
// dependency graph stays acyclic.
type ConditionalEvaluator struct {
	store      router.RuleStore
	dispatcher router.Dispatcher
	logger     zerolog.Logger
}

// NewConditionalEvaluator creates the composite evaluator.
func NewConditionalEvaluator(store router.RuleStore, dispatcher router.Dispatcher, logger zerolog.Logger) *ConditionalEvaluator {
	return &ConditionalEvaluator{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "conditional-evaluator").Logger(),
	}
}

func (e *ConditionalEvaluator) Name() string { return "conditional-router" }
func (e *ConditionalEvaluator) Description() string {
	return "Routes content based on nested boolean combinations of all routable fields"
}
func (e *ConditionalEvaluator) Priority() int { return PriorityConditional }

func (e *ConditionalEvaluator) Metadata() router.Metadata {
	return router.Metadata{
		// The composite owns no leaf fields; leaves dispatch to the field
		// evaluators.
		SupportedFields: nil,
		SupportedOperators: map[string][]string{
			"group": {router.GroupAnd, router.GroupOr, router.GroupNot},
		},
	}
}

// CanEvaluate reports whether at least one enabled conditional rule exists
// for the item's target backend. A store failure means "cannot evaluate",
// never an error.
func (e *ConditionalEvaluator) CanEvaluate(ctx context.Context, _ *router.ContentItem, rctx *router.RoutingContext) bool {
	rules, err := e.store.GetRouterRulesByType(ctx, "conditional")
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load conditional rules")
		return false
	}

	target := router.TargetForContent(rctx.ContentType)
	for i := range rules {
		if rules[i].Enabled && rules[i].Target == target {
			return true
		}
	}
	return false
}

func (e *ConditionalEvaluator) Evaluate(ctx context.Context, item *router.ContentItem, rctx *router.RoutingContext) ([]router.RoutingDecision, error) {
	rules, err := e.store.GetRouterRulesByType(ctx, "conditional")
	if err != nil {
		return nil, err
	}

	target := router.TargetForContent(rctx.ContentType)

	var decisions []router.RoutingDecision
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled || rule.Target != target {
			continue
		}

		node, err := router.ParseConditionalCriteria(rule.Criteria)
		if err != nil {
			e.logger.Warn().Err(err).
				Int64("ruleId", rule.ID).
				Str("rule", rule.Name).
				Msg("Skipping conditional rule with malformed condition")
			continue
		}

		if e.dispatcher.EvaluateNode(node, item, rctx) {
			decisions = append(decisions, rule.Decision())
		}
	}
	return decisions, nil
}

// CanEvaluateConditionField always returns false: the composite owns no
// leaf fields and never participates in dispatch.
func (e *ConditionalEvaluator) CanEvaluateConditionField(string) bool { return false }

// EvaluateCondition always returns false; leaf conditions belong to the
// field evaluators.
func (e *ConditionalEvaluator) EvaluateCondition(*router.Condition, *router.ContentItem, *router.RoutingContext) bool {
	return false
}
