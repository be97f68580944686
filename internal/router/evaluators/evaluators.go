// Package evaluators contains the routing evaluator implementations: one
// per rule type (genre, year, season, user, ratings) plus the composite
// conditional evaluator that walks nested boolean condition trees.
package evaluators

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// Evaluator priorities. Higher sorts earlier in the merged decision list;
// priority never short-circuits evaluation. The conditional evaluator is
// highest so its rules win instance-dedup ties against single-field rules.
const (
	PriorityConditional = 100
	PriorityRatings     = 80
	PriorityUser        = 75
	PriorityYear        = 70
	PriorityGenre       = 65
	PrioritySeason      = 60
)

// Field constructs the field evaluators in registration order.
func Field(store router.RuleStore, logger zerolog.Logger) []router.Evaluator {
	return []router.Evaluator{
		NewRatingsEvaluator(store, logger),
		NewUserEvaluator(store, logger),
		NewYearEvaluator(store, logger),
		NewGenreEvaluator(store, logger),
		NewSeasonEvaluator(store, logger),
	}
}

// All constructs the complete evaluator registry: the field evaluators plus
// the conditional evaluator wired to a dispatcher over those same field
// evaluators.
func All(store router.RuleStore, logger zerolog.Logger) []router.Evaluator {
	field := Field(store, logger)
	dispatcher := router.NewFieldDispatcher(field, logger)
	return append(field, NewConditionalEvaluator(store, dispatcher, logger))
}

// collectDecisions is the shared rule-scan loop for field evaluators: load
// the evaluator's rule subset, filter to enabled rules for the item's target
// backend, and emit one decision per matching rule. Malformed criteria and
// unowned fields skip the rule with a warning; they never fail the pass.
func collectDecisions(ctx context.Context, store router.RuleStore, logger zerolog.Logger,
	ruleType string, ev router.Evaluator,
	item *router.ContentItem, rctx *router.RoutingContext) ([]router.RoutingDecision, error) {

	rules, err := store.GetRouterRulesByType(ctx, ruleType)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s rules: %w", ruleType, err)
	}

	target := router.TargetForContent(rctx.ContentType)

	var decisions []router.RoutingDecision
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled || rule.Target != target {
			continue
		}

		cond, err := router.ParseFieldCriteria(rule.Criteria)
		if err != nil {
			logger.Warn().Err(err).
				Int64("ruleId", rule.ID).
				Str("rule", rule.Name).
				Msg("Skipping rule with malformed criteria")
			continue
		}
		if !ev.CanEvaluateConditionField(cond.Field) {
			logger.Warn().
				Int64("ruleId", rule.ID).
				Str("rule", rule.Name).
				Str("field", cond.Field).
				Msg("Skipping rule with field this evaluator does not own")
			continue
		}

		if ev.EvaluateCondition(cond, item, rctx) {
			decisions = append(decisions, rule.Decision())
		}
	}
	return decisions, nil
}

// containsString reports whether the list contains the value.
func containsString(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
