package health

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/jamcalli/Pulsarr-sub011/internal/instances"
	"github.com/jamcalli/Pulsarr-sub011/internal/plex"
	"github.com/jamcalli/Pulsarr-sub011/internal/router"
)

// InstancePinger checks connectivity to one routing target instance.
type InstancePinger interface {
	PingInstance(ctx context.Context, inst *instances.Instance) error
}

// AccountChecker verifies the Plex account token.
type AccountChecker interface {
	Account(ctx context.Context) (*plex.Account, error)
}

// Checker probes configured instances and updates the health service.
type Checker struct {
	health    *Service
	instances *instances.Store
	radarr    InstancePinger
	sonarr    InstancePinger
	plex      AccountChecker
	logger    zerolog.Logger
}

// NewChecker creates a new health checker.
func NewChecker(health *Service, store *instances.Store, radarrPinger, sonarrPinger InstancePinger, logger zerolog.Logger) *Checker {
	return &Checker{
		health:    health,
		instances: store,
		radarr:    radarrPinger,
		sonarr:    sonarrPinger,
		logger:    logger.With().Str("component", "health-checker").Logger(),
	}
}

// SetPlexChecker enables Plex account probing.
func (c *Checker) SetPlexChecker(checker AccountChecker) {
	c.plex = checker
	c.health.RegisterItem(CategoryPlex, "account", "Plex Account")
}

// Run probes every enabled instance once. Disabled instances are dropped
// from tracking.
func (c *Checker) Run(ctx context.Context) error {
	list, err := c.instances.List(ctx)
	if err != nil {
		return err
	}

	for i := range list {
		inst := &list[i]
		id := strconv.FormatInt(inst.ID, 10)

		if !inst.Enabled {
			c.health.UnregisterItem(CategoryInstances, id)
			continue
		}

		c.health.RegisterItem(CategoryInstances, id, inst.Name)

		var pinger InstancePinger
		switch inst.Type {
		case router.TargetRadarr:
			pinger = c.radarr
		case router.TargetSonarr:
			pinger = c.sonarr
		default:
			continue
		}

		if err := pinger.PingInstance(ctx, inst); err != nil {
			c.health.SetError(CategoryInstances, id, err.Error())
			continue
		}
		c.health.ClearStatus(CategoryInstances, id)
	}

	if c.plex != nil {
		if _, err := c.plex.Account(ctx); err != nil {
			c.health.SetError(CategoryPlex, "account", err.Error())
		} else {
			c.health.ClearStatus(CategoryPlex, "account")
		}
	}

	return nil
}
