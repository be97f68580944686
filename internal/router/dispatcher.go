package router

import (
	"sort"

	"github.com/rs/zerolog"
)

// Dispatcher evaluates a condition tree against an item and its routing
// context. The conditional evaluator receives a Dispatcher at construction
// instead of calling back into the registry that owns it, which keeps the
// dependency graph acyclic.
type Dispatcher interface {
	EvaluateNode(node *ConditionNode, item *ContentItem, rctx *RoutingContext) bool
}

// FieldDispatcher routes leaf conditions to the one evaluator that owns the
// condition's field and walks AND/OR/NOT groups recursively. Field lookups
// honor evaluator priority: when two evaluators claim the same field, the
// higher-priority one wins.
type FieldDispatcher struct {
	evaluators []Evaluator
	logger     zerolog.Logger
}

// NewFieldDispatcher builds a dispatcher over the given field evaluators.
func NewFieldDispatcher(evaluators []Evaluator, logger zerolog.Logger) *FieldDispatcher {
	sorted := make([]Evaluator, len(evaluators))
	copy(sorted, evaluators)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &FieldDispatcher{
		evaluators: sorted,
		logger:     logger.With().Str("component", "condition-dispatcher").Logger(),
	}
}

// EvaluateNode evaluates a condition tree. Malformed nodes and unclaimed
// fields evaluate to false with a logged warning; evaluation never panics
// and never raises across the dispatch boundary.
func (d *FieldDispatcher) EvaluateNode(node *ConditionNode, item *ContentItem, rctx *RoutingContext) bool {
	switch {
	case node == nil:
		return false
	case node.IsGroup():
		return d.evaluateGroup(node.Group, item, rctx)
	case node.IsLeaf():
		return d.evaluateLeaf(node.Leaf, item, rctx)
	default:
		d.logger.Warn().Msg("Condition node is neither leaf nor group, treating as non-match")
		return false
	}
}

// evaluateGroup applies the group operator across child results, then the
// group's own negate flag exactly once. A NOT group inverts the conjunction
// of its children; it is never pushed down onto each child.
func (d *FieldDispatcher) evaluateGroup(group *ConditionGroup, item *ContentItem, rctx *RoutingContext) bool {
	if len(group.Conditions) == 0 {
		d.logger.Warn().Str("operator", group.Operator).Msg("Empty condition group, treating as non-match")
		return false
	}

	var result bool
	switch group.Operator {
	case GroupAnd:
		result = true
		for i := range group.Conditions {
			if !d.EvaluateNode(&group.Conditions[i], item, rctx) {
				result = false
				break
			}
		}
	case GroupOr:
		result = false
		for i := range group.Conditions {
			if d.EvaluateNode(&group.Conditions[i], item, rctx) {
				result = true
				break
			}
		}
	case GroupNot:
		all := true
		for i := range group.Conditions {
			if !d.EvaluateNode(&group.Conditions[i], item, rctx) {
				all = false
				break
			}
		}
		result = !all
	default:
		d.logger.Warn().Str("operator", group.Operator).Msg("Unknown group operator, treating as non-match")
		return false
	}

	if group.Negate {
		result = !result
	}
	return result
}

// evaluateLeaf finds the evaluator owning the condition's field and
// delegates. The owning evaluator applies the leaf's negate flag itself, so
// the dispatcher never re-applies it.
func (d *FieldDispatcher) evaluateLeaf(cond *Condition, item *ContentItem, rctx *RoutingContext) bool {
	for _, ev := range d.evaluators {
		if ev.CanEvaluateConditionField(cond.Field) {
			return ev.EvaluateCondition(cond, item, rctx)
		}
	}
	d.logger.Warn().Str("field", cond.Field).Msg("No evaluator claims condition field, treating as non-match")
	return false
}
