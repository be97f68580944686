// Package defaults seeds the rule table with a starter set of routing
// rules on first run.
package defaults

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/jamcalli/Pulsarr-sub011/internal/instances"
	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

//go:embed rules.yaml
var rulesYAML []byte

type seedFile struct {
	Rules []seedRule `yaml:"rules"`
}

type seedRule struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Target     string `yaml:"target"`
	Instance   string `yaml:"instance"`
	Order      int    `yaml:"order"`
	Criteria   any    `yaml:"criteria"`
	SeriesType string `yaml:"seriesType"`
}

// Service seeds default routing rules.
type Service struct {
	rules     *router.Store
	instances *instances.Store
	logger    zerolog.Logger
}

// NewService creates a new defaults service.
func NewService(rules *router.Store, instanceStore *instances.Store, logger zerolog.Logger) *Service {
	return &Service{
		rules:     rules,
		instances: instanceStore,
		logger:    logger.With().Str("component", "defaults").Logger(),
	}
}

// Seed inserts the embedded default rules when no rules exist yet. A rule
// referencing "default" binds to the target type's default instance; any
// other instance value is matched by name. Rules without a resolvable
// instance are skipped.
func (s *Service) Seed(ctx context.Context) error {
	count, err := s.rules.CountRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to count rules: %w", err)
	}
	if count > 0 {
		return nil
	}

	var file seedFile
	if err := yaml.Unmarshal(rulesYAML, &file); err != nil {
		return fmt.Errorf("failed to parse default rules: %w", err)
	}

	seeded := 0
	for _, seed := range file.Rules {
		rule, err := s.buildRule(ctx, seed)
		if err != nil {
			s.logger.Debug().Err(err).Str("rule", seed.Name).Msg("Skipping default rule")
			continue
		}
		if _, err := s.rules.CreateRule(ctx, rule); err != nil {
			return fmt.Errorf("failed to seed rule %q: %w", seed.Name, err)
		}
		seeded++
	}

	if seeded > 0 {
		s.logger.Info().Int("rules", seeded).Msg("Seeded default routing rules")
	}
	return nil
}

func (s *Service) buildRule(ctx context.Context, seed seedRule) (*router.RouterRule, error) {
	instanceID, err := s.resolveInstance(ctx, seed)
	if err != nil {
		return nil, err
	}

	// Criteria comes from YAML as nested maps; round-trip through JSON and
	// check the shape the rule type expects. Conditional rules wrap their
	// tree in a condition key, field rules are a bare leaf.
	criteriaJSON, err := json.Marshal(normalizeYAML(seed.Criteria))
	if err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}
	switch seed.Type {
	case "conditional":
		if _, err := router.ParseConditionalCriteria(criteriaJSON); err != nil {
			return nil, fmt.Errorf("invalid criteria for rule %q: %w", seed.Name, err)
		}
	case "genre", "year", "season", "user", "ratings":
		if _, err := router.ParseFieldCriteria(criteriaJSON); err != nil {
			return nil, fmt.Errorf("invalid criteria for rule %q: %w", seed.Name, err)
		}
	default:
		return nil, fmt.Errorf("unknown rule type %q", seed.Type)
	}

	order := seed.Order
	if order == 0 {
		order = router.DefaultRuleOrder
	}

	return &router.RouterRule{
		Name:       seed.Name,
		Type:       seed.Type,
		Target:     router.TargetType(seed.Target),
		InstanceID: instanceID,
		Order:      order,
		Enabled:    true,
		Criteria:   criteriaJSON,
		SeriesType: seed.SeriesType,
	}, nil
}

func (s *Service) resolveInstance(ctx context.Context, seed seedRule) (int64, error) {
	target := router.TargetType(seed.Target)

	if seed.Instance == "" || seed.Instance == "default" {
		inst, err := s.instances.GetDefault(ctx, target)
		if err != nil {
			return 0, fmt.Errorf("no default %s instance: %w", target, err)
		}
		return inst.ID, nil
	}

	list, err := s.instances.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, inst := range list {
		if inst.Name == seed.Instance && inst.Type == target {
			return inst.ID, nil
		}
	}
	return 0, fmt.Errorf("no %s instance named %q", target, seed.Instance)
}

// normalizeYAML converts map[any]any nodes produced by YAML decoding into
// map[string]any so the value marshals to JSON.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
