package evaluators

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// SeasonEvaluator routes shows based on the seasons present in their
// metadata. It is show-only: movies carry no season metadata.
type SeasonEvaluator struct {
	store  router.RuleStore
	logger zerolog.Logger
}

// NewSeasonEvaluator creates the season evaluator.
func NewSeasonEvaluator(store router.RuleStore, logger zerolog.Logger) *SeasonEvaluator {
	return &SeasonEvaluator{
		store:  store,
		logger: logger.With().Str("component", "season-evaluator").Logger(),
	}
}

func (e *SeasonEvaluator) Name() string        { return "season-router" }
func (e *SeasonEvaluator) Description() string { return "Routes shows based on their season numbers" }
func (e *SeasonEvaluator) Priority() int       { return PrioritySeason }

func (e *SeasonEvaluator) Metadata() router.Metadata {
	return router.Metadata{
		SupportedFields: []string{"season", "seasons"},
		SupportedOperators: map[string][]string{
			"season": {
				router.OpEquals, router.OpNotEquals,
				router.OpGreaterThan, router.OpLessThan,
				router.OpIn, router.OpNotIn, router.OpBetween,
			},
		},
		ContentType: router.ContentTypeShow,
	}
}

func (e *SeasonEvaluator) CanEvaluate(_ context.Context, item *router.ContentItem, rctx *router.RoutingContext) bool {
	return rctx.ContentType == router.ContentTypeShow && len(item.Seasons) > 0
}

func (e *SeasonEvaluator) Evaluate(ctx context.Context, item *router.ContentItem, rctx *router.RoutingContext) ([]router.RoutingDecision, error) {
	return collectDecisions(ctx, e.store, e.logger, "season", e, item, rctx)
}

func (e *SeasonEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "season" || field == "seasons"
}

func (e *SeasonEvaluator) EvaluateCondition(cond *router.Condition, item *router.ContentItem, _ *router.RoutingContext) bool {
	seasons := item.SeasonNumbers()
	if !e.CanEvaluateConditionField(cond.Field) || len(seasons) == 0 {
		return false
	}

	result := e.matchSeasons(cond, seasons)
	if cond.Negate {
		result = !result
	}
	return result
}

// matchSeasons computes the raw match. Comparisons are satisfied if ANY
// season satisfies them; between uses range overlap, not containment, so a
// rule for seasons 4-6 matches a show that currently has seasons 1-5.
func (e *SeasonEvaluator) matchSeasons(cond *router.Condition, seasons []int) bool {
	switch cond.Operator {
	case router.OpEquals, router.OpNotEquals, router.OpGreaterThan, router.OpLessThan,
		router.OpIn, router.OpNotIn:
		for _, season := range seasons {
			if matchNumber(cond.Operator, float64(season), cond.Value) {
				return true
			}
		}
		return false

	case router.OpBetween:
		r, ok := toRange(cond.Value)
		if !ok {
			return false
		}
		minSeen, maxSeen := seasonBounds(seasons)
		return float64(minSeen) <= r.Max && float64(maxSeen) >= r.Min

	default:
		return false
	}
}

func seasonBounds(seasons []int) (minSeen, maxSeen int) {
	minSeen, maxSeen = seasons[0], seasons[0]
	for _, s := range seasons[1:] {
		if s < minSeen {
			minSeen = s
		}
		if s > maxSeen {
			maxSeen = s
		}
	}
	return minSeen, maxSeen
}
