package evaluators

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// Rating fields and the scale their rule values are authored in. Storage is
// normalized to 0-10, but Rotten Tomatoes scores are written 0-100 by
// convention, so rule values for those fields are converted before
// comparison: internal = value * 10 / userScale.
var ratingScales = map[string]float64{
	"imdbRating":       10,
	"tmdbRating":       10,
	"rtCriticRating":   100,
	"rtAudienceRating": 100,
	"imdbVotes":        0, // vote counts, never scaled
}

// RatingsEvaluator routes items based on their critic and audience ratings.
type RatingsEvaluator struct {
	store  router.RuleStore
	logger zerolog.Logger
}

// NewRatingsEvaluator creates the ratings evaluator.
func NewRatingsEvaluator(store router.RuleStore, logger zerolog.Logger) *RatingsEvaluator {
	return &RatingsEvaluator{
		store:  store,
		logger: logger.With().Str("component", "ratings-evaluator").Logger(),
	}
}

func (e *RatingsEvaluator) Name() string { return "ratings-router" }
func (e *RatingsEvaluator) Description() string {
	return "Routes content based on IMDb, Rotten Tomatoes and TMDB ratings"
}
func (e *RatingsEvaluator) Priority() int { return PriorityRatings }

func (e *RatingsEvaluator) Metadata() router.Metadata {
	operators := []string{
		router.OpEquals, router.OpNotEquals,
		router.OpGreaterThan, router.OpLessThan,
		router.OpIn, router.OpNotIn, router.OpBetween,
	}
	return router.Metadata{
		SupportedFields: []string{"imdbRating", "rtCriticRating", "rtAudienceRating", "tmdbRating", "imdbVotes"},
		SupportedOperators: map[string][]string{
			"imdbRating":       operators,
			"rtCriticRating":   operators,
			"rtAudienceRating": operators,
			"tmdbRating":       operators,
			"imdbVotes":        operators,
		},
	}
}

func (e *RatingsEvaluator) CanEvaluate(_ context.Context, item *router.ContentItem, _ *router.RoutingContext) bool {
	r := item.Ratings
	return r != nil && (r.IMDB != nil || r.RTCritic != nil || r.RTAudience != nil || r.TMDB != nil)
}

func (e *RatingsEvaluator) Evaluate(ctx context.Context, item *router.ContentItem, rctx *router.RoutingContext) ([]router.RoutingDecision, error) {
	return collectDecisions(ctx, e.store, e.logger, "ratings", e, item, rctx)
}

func (e *RatingsEvaluator) CanEvaluateConditionField(field string) bool {
	_, ok := ratingScales[field]
	return ok
}

func (e *RatingsEvaluator) EvaluateCondition(cond *router.Condition, item *router.ContentItem, _ *router.RoutingContext) bool {
	if !e.CanEvaluateConditionField(cond.Field) || item.Ratings == nil {
		return false
	}
	// A missing rating source skips the condition entirely; negate never
	// turns absent data into a match.
	if !hasRatingSource(cond.Field, item.Ratings) {
		return false
	}

	result := e.matchRating(cond, item.Ratings)
	if cond.Negate {
		result = !result
	}
	return result
}

func hasRatingSource(field string, ratings *router.Ratings) bool {
	switch field {
	case "imdbRating", "imdbVotes":
		return ratings.IMDB != nil
	case "tmdbRating":
		return ratings.TMDB != nil
	case "rtCriticRating":
		return ratings.RTCritic != nil
	case "rtAudienceRating":
		return ratings.RTAudience != nil
	default:
		return false
	}
}

// matchRating computes the raw match for one rating field. A missing rating
// source is a non-match, never an error.
func (e *RatingsEvaluator) matchRating(cond *router.Condition, ratings *router.Ratings) bool {
	switch cond.Field {
	case "imdbRating":
		if ratings.IMDB == nil {
			return false
		}
		// IMDb supports a compound {rating?, votes?} value: the AND of
		// both sub-clauses under the condition's operator.
		if compound, ok := compoundValue(cond.Value); ok {
			return e.matchCompound(cond.Operator, compound, ratings.IMDB)
		}
		return matchNumber(cond.Operator, ratings.IMDB.Value, scaleValue(cond.Value, ratingScales[cond.Field]))

	case "imdbVotes":
		if ratings.IMDB == nil {
			return false
		}
		return matchNumber(cond.Operator, float64(ratings.IMDB.Votes), cond.Value)

	case "tmdbRating":
		if ratings.TMDB == nil {
			return false
		}
		return matchNumber(cond.Operator, ratings.TMDB.Value, scaleValue(cond.Value, ratingScales[cond.Field]))

	case "rtCriticRating":
		if ratings.RTCritic == nil {
			return false
		}
		return matchNumber(cond.Operator, ratings.RTCritic.Value, scaleValue(cond.Value, ratingScales[cond.Field]))

	case "rtAudienceRating":
		if ratings.RTAudience == nil {
			return false
		}
		return matchNumber(cond.Operator, ratings.RTAudience.Value, scaleValue(cond.Value, ratingScales[cond.Field]))

	default:
		return false
	}
}

// compoundValue detects the IMDb {rating?, votes?} compound shape. A
// {min, max} map is a between range, not a compound.
func compoundValue(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	_, hasRating := m["rating"]
	_, hasVotes := m["votes"]
	if !hasRating && !hasVotes {
		return nil, false
	}
	return m, true
}

// matchCompound evaluates the logical AND of the rating and votes
// sub-clauses. The rating clause is scale-converted; votes never are (a
// vote count is not a rating).
func (e *RatingsEvaluator) matchCompound(operator string, compound map[string]any, rating *router.Rating) bool {
	if ratingValue, ok := compound["rating"]; ok && ratingValue != nil {
		if !matchNumber(operator, rating.Value, scaleValue(ratingValue, ratingScales["imdbRating"])) {
			return false
		}
	}
	if votesValue, ok := compound["votes"]; ok && votesValue != nil {
		if !matchNumber(operator, float64(rating.Votes), votesValue) {
			return false
		}
	}
	return true
}

// scaleValue converts a rule value from the field's authoring scale to the
// internal 0-10 scale. Numbers, number arrays and {min, max} ranges are
// converted; anything else passes through and fails coercion downstream.
func scaleValue(value any, userScale float64) any {
	if userScale == 0 || userScale == 10 {
		return value
	}
	factor := 10 / userScale

	switch v := value.(type) {
	case float64:
		return v * factor
	case int:
		return float64(v) * factor
	case []any:
		scaled := make([]any, len(v))
		for i, item := range v {
			if n, ok := toNumber(item); ok {
				scaled[i] = n * factor
			} else {
				scaled[i] = item
			}
		}
		return scaled
	case map[string]any:
		scaled := make(map[string]any, len(v))
		for key, item := range v {
			if (key == "min" || key == "max") && item != nil {
				if n, ok := toNumber(item); ok {
					scaled[key] = n * factor
					continue
				}
			}
			scaled[key] = item
		}
		return scaled
	default:
		return value
	}
}
