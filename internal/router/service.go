package router

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster pushes routing events to connected admin UI clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// ServiceConfig wires the orchestrator's collaborators. Evaluators form the
// compile-time registry: they are constructed by the caller and sorted once
// by priority here, never discovered at runtime.
type ServiceConfig struct {
	Evaluators []Evaluator
	Movies     MovieTarget
	Series     SeriesTarget
	Instances  InstanceResolver
	Disabled   []string // evaluator names disabled via configuration
	Hub        Broadcaster
	Logger     zerolog.Logger
}

// Service is the routing orchestrator. For each (item, context) pair it runs
// every enabled evaluator, merges and deduplicates their decisions, and
// applies the surviving decisions to the routing targets.
type Service struct {
	evaluators []Evaluator
	dispatcher *FieldDispatcher
	movies     MovieTarget
	series     SeriesTarget
	instances  InstanceResolver
	disabled   map[string]bool
	hub        Broadcaster
	logger     zerolog.Logger
}

// NewService creates the orchestrator. The evaluator registry is sorted by
// descending priority; the sort is stable so registration order breaks ties.
func NewService(cfg ServiceConfig) *Service {
	evaluators := make([]Evaluator, len(cfg.Evaluators))
	copy(evaluators, cfg.Evaluators)
	sort.SliceStable(evaluators, func(i, j int) bool {
		return evaluators[i].Priority() > evaluators[j].Priority()
	})

	disabled := make(map[string]bool, len(cfg.Disabled))
	for _, name := range cfg.Disabled {
		disabled[name] = true
	}

	return &Service{
		evaluators: evaluators,
		dispatcher: NewFieldDispatcher(fieldEvaluators(evaluators), cfg.Logger),
		movies:     cfg.Movies,
		series:     cfg.Series,
		instances:  cfg.Instances,
		disabled:   disabled,
		hub:        cfg.Hub,
		logger:     cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// fieldEvaluators filters out evaluators that own no condition fields (the
// conditional evaluator) so the dispatcher only ever consults field owners.
func fieldEvaluators(evaluators []Evaluator) []Evaluator {
	fields := make([]Evaluator, 0, len(evaluators))
	for _, ev := range evaluators {
		if len(ev.Metadata().SupportedFields) > 0 {
			fields = append(fields, ev)
		}
	}
	return fields
}

// Dispatcher returns the shared condition dispatch surface. The conditional
// evaluator consumes this at construction time.
func (s *Service) Dispatcher() Dispatcher {
	return s.dispatcher
}

// EvaluateCondition resolves a condition tree against an item and context,
// delegating leaves to the evaluator that owns each field.
func (s *Service) EvaluateCondition(node *ConditionNode, item *ContentItem, rctx *RoutingContext) bool {
	return s.dispatcher.EvaluateNode(node, item, rctx)
}

// Plugins returns introspection records for the loaded evaluator registry.
func (s *Service) Plugins() []PluginInfo {
	plugins := make([]PluginInfo, 0, len(s.evaluators))
	for _, ev := range s.evaluators {
		plugins = append(plugins, PluginInfo{
			Name:        ev.Name(),
			Description: ev.Description(),
			Enabled:     !s.disabled[ev.Name()],
			Priority:    ev.Priority(),
		})
	}
	return plugins
}

// Plan runs every enabled evaluator against the item, merges their decisions
// in descending priority order, and deduplicates by instance ID keeping the
// first (highest-priority) decision per instance. It never applies anything.
//
// Evaluators run concurrently: they are mutually independent, side-effect
// free and read-only against the rule store. Results are collected per
// registration slot so the stable sort still sees registration order.
func (s *Service) Plan(ctx context.Context, item *ContentItem, rctx *RoutingContext) []RoutingDecision {
	results := make([][]RoutingDecision, len(s.evaluators))

	var wg sync.WaitGroup
	for i, ev := range s.evaluators {
		if s.disabled[ev.Name()] {
			continue
		}
		if !ev.CanEvaluate(ctx, item, rctx) {
			continue
		}

		wg.Add(1)
		go func(slot int, ev Evaluator) {
			defer wg.Done()
			decisions, err := ev.Evaluate(ctx, item, rctx)
			if err != nil {
				// One evaluator's store failure never blocks the others.
				s.logger.Error().Err(err).
					Str("evaluator", ev.Name()).
					Str("item", item.Title).
					Msg("Evaluator failed, contributing no decisions")
				return
			}
			results[slot] = decisions
		}(i, ev)
	}
	wg.Wait()

	var merged []RoutingDecision
	for _, decisions := range results {
		merged = append(merged, decisions...)
	}

	// Stable: evaluator registration order, then emission order, break ties.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Priority > merged[j].Priority
	})

	return dedupeByInstance(merged)
}

// dedupeByInstance keeps the first decision per instance ID, preserving
// order.
func dedupeByInstance(decisions []RoutingDecision) []RoutingDecision {
	if len(decisions) < 2 {
		return decisions
	}
	seen := make(map[int64]bool, len(decisions))
	deduped := decisions[:0]
	for _, d := range decisions {
		if seen[d.InstanceID] {
			continue
		}
		seen[d.InstanceID] = true
		deduped = append(deduped, d)
	}
	return deduped
}

// Route plans and applies routing for one item. A failure applying one
// decision is logged and does not abort the remaining decisions. When no
// evaluator produced a decision, a single default routing call with no
// overrides is made against the target backend's default instance.
//
// The applied decisions are returned for history recording and diagnostics.
func (s *Service) Route(ctx context.Context, item *ContentItem, rctx *RoutingContext) ([]RoutingDecision, error) {
	target := TargetForContent(rctx.ContentType)
	decisions := s.Plan(ctx, item, rctx)

	if len(decisions) == 0 {
		fallback, err := s.routeFallback(ctx, item, rctx, target)
		if err != nil {
			return nil, err
		}
		return []RoutingDecision{fallback}, nil
	}

	applied := make([]RoutingDecision, 0, len(decisions))
	for _, decision := range decisions {
		if err := s.apply(ctx, item, rctx, decision); err != nil {
			s.logger.Error().Err(err).
				Str("item", item.Title).
				Int64("instanceId", decision.InstanceID).
				Msg("Failed to apply routing decision")
			continue
		}
		decision.Target = target
		applied = append(applied, decision)
		s.broadcastDecision(item, rctx, decision)
	}

	s.logger.Info().
		Str("item", item.Title).
		Str("contentType", string(rctx.ContentType)).
		Int("decisions", len(decisions)).
		Int("applied", len(applied)).
		Msg("Routed item")

	return applied, nil
}

// apply sends one decision to the backend selected by the content type.
func (s *Service) apply(ctx context.Context, item *ContentItem, rctx *RoutingContext, decision RoutingDecision) error {
	opts := RouteOptions{
		Syncing:          rctx.Syncing,
		RootFolder:       decision.RootFolder,
		QualityProfile:   decision.QualityProfile,
		Tags:             decision.Tags,
		SearchOnAdd:      decision.SearchOnAdd,
		SeasonMonitoring: decision.SeasonMonitoring,
		SeriesType:       decision.SeriesType,
	}

	switch rctx.ContentType {
	case ContentTypeShow:
		return s.series.RouteSeries(ctx, item, rctx.ItemKey, decision.InstanceID, opts)
	case ContentTypeMovie:
		return s.movies.RouteMovie(ctx, item, rctx.ItemKey, decision.InstanceID, opts)
	default:
		return fmt.Errorf("unknown content type %q", rctx.ContentType)
	}
}

// routeFallback performs the single default routing call used when every
// evaluator returned nothing.
func (s *Service) routeFallback(ctx context.Context, item *ContentItem, rctx *RoutingContext, target TargetType) (RoutingDecision, error) {
	instanceID, err := s.instances.DefaultInstance(ctx, target)
	if err != nil {
		return RoutingDecision{}, fmt.Errorf("no routing rules matched and no default %s instance is configured: %w", target, err)
	}

	decision := RoutingDecision{
		InstanceID: instanceID,
		Fallback:   true,
		Target:     target,
	}

	if err := s.apply(ctx, item, rctx, decision); err != nil {
		return RoutingDecision{}, fmt.Errorf("failed to apply default routing: %w", err)
	}

	s.logger.Info().
		Str("item", item.Title).
		Int64("instanceId", instanceID).
		Msg("No rules matched, routed to default instance")

	s.broadcastDecision(item, rctx, decision)
	return decision, nil
}

func (s *Service) broadcastDecision(item *ContentItem, rctx *RoutingContext, decision RoutingDecision) {
	if s.hub == nil {
		return
	}
	_ = s.hub.Broadcast("router:routed", map[string]interface{}{
		"title":    item.Title,
		"itemKey":  rctx.ItemKey,
		"decision": decision,
	})
}
