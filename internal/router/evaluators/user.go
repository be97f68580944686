package evaluators

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// UserEvaluator routes items based on the requesting user's identity: the
// watchlist owner who triggered the routing call.
type UserEvaluator struct {
	store  router.RuleStore
	logger zerolog.Logger
}

// NewUserEvaluator creates the user evaluator.
func NewUserEvaluator(store router.RuleStore, logger zerolog.Logger) *UserEvaluator {
	return &UserEvaluator{
		store:  store,
		logger: logger.With().Str("component", "user-evaluator").Logger(),
	}
}

func (e *UserEvaluator) Name() string        { return "user-router" }
func (e *UserEvaluator) Description() string { return "Routes content based on the requesting user" }
func (e *UserEvaluator) Priority() int       { return PriorityUser }

func (e *UserEvaluator) Metadata() router.Metadata {
	return router.Metadata{
		SupportedFields: []string{"user", "userId", "userName"},
		SupportedOperators: map[string][]string{
			"user": {
				router.OpEquals, router.OpNotEquals,
				router.OpIn, router.OpNotIn, router.OpRegex,
			},
		},
	}
}

func (e *UserEvaluator) CanEvaluate(_ context.Context, _ *router.ContentItem, rctx *router.RoutingContext) bool {
	return rctx.HasUser()
}

func (e *UserEvaluator) Evaluate(ctx context.Context, item *router.ContentItem, rctx *router.RoutingContext) ([]router.RoutingDecision, error) {
	return collectDecisions(ctx, e.store, e.logger, "user", e, item, rctx)
}

func (e *UserEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "user" || field == "userId" || field == "userName"
}

func (e *UserEvaluator) EvaluateCondition(cond *router.Condition, _ *router.ContentItem, rctx *router.RoutingContext) bool {
	if !e.CanEvaluateConditionField(cond.Field) || !rctx.HasUser() {
		return false
	}

	result := e.matchUser(cond, rctx)
	if cond.Negate {
		result = !result
	}
	return result
}

// matchUser computes the raw match against the context's user identity.
// Numeric values match the user ID; strings match the user name, or the ID
// in its string form so rule authors can mix the two freely.
func (e *UserEvaluator) matchUser(cond *router.Condition, rctx *router.RoutingContext) bool {
	switch cond.Operator {
	case router.OpEquals:
		return e.matchOne(cond.Value, rctx)

	case router.OpNotEquals:
		return !e.matchOne(cond.Value, rctx)

	case router.OpIn:
		values, ok := cond.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range values {
			if e.matchOne(v, rctx) {
				return true
			}
		}
		return false

	case router.OpNotIn:
		values, ok := cond.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range values {
			if e.matchOne(v, rctx) {
				return false
			}
		}
		return true

	case router.OpRegex:
		if rctx.UserName == "" {
			return false
		}
		pattern, ok := toString(cond.Value)
		if !ok {
			return false
		}
		re, err := router.CompileSafe(pattern)
		if err != nil {
			e.logger.Warn().Err(err).Str("pattern", pattern).Msg("Rejected unsafe user pattern")
			return false
		}
		return re.MatchString(rctx.UserName)

	default:
		return false
	}
}

// matchOne matches a single rule value against the user identity.
func (e *UserEvaluator) matchOne(value any, rctx *router.RoutingContext) bool {
	switch v := value.(type) {
	case float64:
		return rctx.UserID != 0 && int64(v) == rctx.UserID
	case string:
		if rctx.UserName != "" && v == rctx.UserName {
			return true
		}
		return rctx.UserID != 0 && v == strconv.FormatInt(rctx.UserID, 10)
	default:
		return false
	}
}
