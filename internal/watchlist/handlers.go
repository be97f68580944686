package watchlist

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Handlers provides HTTP handlers for watchlist sync operations.
type Handlers struct {
	service *Service
	logger  zerolog.Logger
}

// NewHandlers creates new watchlist handlers.
func NewHandlers(service *Service, logger zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger.With().Str("component", "watchlist-handlers").Logger(),
	}
}

// RegisterRoutes registers watchlist routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/sync", h.Sync)
	g.GET("/status", h.Status)
}

// Sync triggers a watchlist sync in the background.
// POST /api/v1/watchlist/sync
func (h *Handlers) Sync(c echo.Context) error {
	if h.service.Status().Running {
		return echo.NewHTTPError(http.StatusConflict, "sync already in progress")
	}

	go func() {
		if _, err := h.service.Sync(context.Background()); err != nil {
			h.logger.Error().Err(err).Msg("Watchlist sync failed")
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

// Status returns the current sync status.
// GET /api/v1/watchlist/status
func (h *Handlers) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Status())
}
