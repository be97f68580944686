package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for health endpoints.
type Handlers struct {
	service *Service
	checker *Checker
}

// NewHandlers creates new health handlers.
func NewHandlers(service *Service, checker *Checker) *Handlers {
	return &Handlers{service: service, checker: checker}
}

// RegisterRoutes registers health routes on the given group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Get)
	g.POST("/check", h.Check)
}

// Get returns the current health state of all tracked items.
func (h *Handlers) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items":     h.service.Response(),
		"hasIssues": h.service.HasIssues(),
	})
}

// Check runs all health probes immediately and returns the result.
func (h *Handlers) Check(c echo.Context) error {
	if h.checker == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "health checker not configured")
	}
	if err := h.checker.Run(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "health check failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items":     h.service.Response(),
		"hasIssues": h.service.HasIssues(),
	})
}
