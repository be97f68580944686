package evaluators

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// GenreEvaluator routes items based on their genre tags. String comparisons
// are case-insensitive since genre labels vary between metadata sources.
type GenreEvaluator struct {
	store  router.RuleStore
	logger zerolog.Logger
}

// NewGenreEvaluator creates the genre evaluator.
func NewGenreEvaluator(store router.RuleStore, logger zerolog.Logger) *GenreEvaluator {
	return &GenreEvaluator{
		store:  store,
		logger: logger.With().Str("component", "genre-evaluator").Logger(),
	}
}

func (e *GenreEvaluator) Name() string        { return "genre-router" }
func (e *GenreEvaluator) Description() string { return "Routes content based on genre tags" }
func (e *GenreEvaluator) Priority() int       { return PriorityGenre }

func (e *GenreEvaluator) Metadata() router.Metadata {
	return router.Metadata{
		SupportedFields: []string{"genre", "genres"},
		SupportedOperators: map[string][]string{
			"genre": {
				router.OpEquals, router.OpNotEquals,
				router.OpContains, router.OpNotContains,
				router.OpIn, router.OpNotIn, router.OpRegex,
			},
		},
	}
}

func (e *GenreEvaluator) CanEvaluate(_ context.Context, item *router.ContentItem, _ *router.RoutingContext) bool {
	return len(item.Genres) > 0
}

func (e *GenreEvaluator) Evaluate(ctx context.Context, item *router.ContentItem, rctx *router.RoutingContext) ([]router.RoutingDecision, error) {
	return collectDecisions(ctx, e.store, e.logger, "genre", e, item, rctx)
}

func (e *GenreEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "genre" || field == "genres"
}

func (e *GenreEvaluator) EvaluateCondition(cond *router.Condition, item *router.ContentItem, _ *router.RoutingContext) bool {
	if !e.CanEvaluateConditionField(cond.Field) {
		return false
	}
	// Items without genre data match nothing, negated or not.
	if len(item.Genres) == 0 {
		return false
	}

	result := e.matchGenres(cond, item.Genres)
	if cond.Negate {
		result = !result
	}
	return result
}

// matchGenres computes the raw, un-negated match: true if any genre
// satisfies the operator.
func (e *GenreEvaluator) matchGenres(cond *router.Condition, genres []string) bool {
	switch cond.Operator {
	case router.OpEquals:
		want, ok := toString(cond.Value)
		return ok && anyGenre(genres, func(g string) bool { return strings.EqualFold(g, want) })

	case router.OpNotEquals:
		want, ok := toString(cond.Value)
		return ok && !anyGenre(genres, func(g string) bool { return strings.EqualFold(g, want) })

	case router.OpContains:
		want, ok := toString(cond.Value)
		return ok && anyGenre(genres, func(g string) bool {
			return strings.Contains(strings.ToLower(g), strings.ToLower(want))
		})

	case router.OpNotContains:
		want, ok := toString(cond.Value)
		return ok && !anyGenre(genres, func(g string) bool {
			return strings.Contains(strings.ToLower(g), strings.ToLower(want))
		})

	case router.OpIn:
		want, ok := toStringSlice(cond.Value)
		return ok && anyGenre(genres, func(g string) bool { return containsFold(want, g) })

	case router.OpNotIn:
		want, ok := toStringSlice(cond.Value)
		return ok && !anyGenre(genres, func(g string) bool { return containsFold(want, g) })

	case router.OpRegex:
		pattern, ok := toString(cond.Value)
		if !ok {
			return false
		}
		re, err := router.CompileSafe(pattern)
		if err != nil {
			e.logger.Warn().Err(err).Str("pattern", pattern).Msg("Rejected unsafe genre pattern")
			return false
		}
		return anyGenre(genres, re.MatchString)

	default:
		return false
	}
}

func anyGenre(genres []string, match func(string) bool) bool {
	for _, g := range genres {
		if match(g) {
			return true
		}
	}
	return false
}

func containsFold(list []string, value string) bool {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}
