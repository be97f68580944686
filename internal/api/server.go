//nolint:revive // Package name 'api' is intentionally generic for the HTTP API layer
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/jamcalli/Pulsarr-sub011/internal/api/middleware"
	"github.com/jamcalli/Pulsarr-sub011/internal/api/ratelimit"
	"github.com/jamcalli/Pulsarr-sub011/internal/auth"
	"github.com/jamcalli/Pulsarr-sub011/internal/config"
	"github.com/jamcalli/Pulsarr-sub011/internal/health"
	"github.com/jamcalli/Pulsarr-sub011/internal/history"
	"github.com/jamcalli/Pulsarr-sub011/internal/instances"
	"github.com/jamcalli/Pulsarr-sub011/internal/router"
	"github.com/jamcalli/Pulsarr-sub011/internal/scheduler"
	"github.com/jamcalli/Pulsarr-sub011/internal/watchlist"
	"github.com/jamcalli/Pulsarr-sub011/internal/websocket"
)

// Services holds the application services the API exposes.
type Services struct {
	Auth          *auth.Service
	RouterService *router.Service
	RuleStore     *router.Store
	Instances     *instances.Store
	History       *history.Service
	Watchlist     *watchlist.Service
	Scheduler     *scheduler.Scheduler
	Health        *health.Service
	HealthChecker *health.Checker
	Logs          LogsProvider
}

// Server handles HTTP requests for the Pulsarr API.
type Server struct {
	echo     *echo.Echo
	hub      *websocket.Hub
	logger   zerolog.Logger
	cfg      *config.Config
	services Services
	started  time.Time
}

// NewServer creates a new API server instance.
func NewServer(hub *websocket.Hub, cfg *config.Config, services Services, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		hub:      hub,
		logger:   logger,
		cfg:      cfg,
		services: services,
		started:  time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Security headers
	s.echo.Use(apimw.SecurityHeaders())

	// CORS
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", s.healthCheck)

	// WebSocket endpoint
	s.echo.GET("/ws", s.hub.HandleWebSocket)

	// API v1 group
	api := s.echo.Group("/api/v1")

	// System routes
	api.GET("/status", s.getStatus)

	// Auth routes with login rate limiting
	authLimiter := ratelimit.NewAuthLimiter()
	authLimiter.StartCleanup(5 * time.Minute)

	authHandlers := auth.NewHandlers(s.services.Auth)
	authHandlers.SetLockoutChecker(authLimiter)
	authGroup := api.Group("/auth")
	authGroup.Use(authLimiter.Middleware())
	authHandlers.RegisterRoutes(authGroup)

	// Everything below requires a valid session token
	protected := api.Group("")
	protected.Use(JWTAuth(s.services.Auth))

	routerHandlers := router.NewHandlers(s.services.RouterService, s.services.RuleStore, s.logger)
	routerHandlers.RegisterRoutes(protected.Group("/router"))

	instanceHandlers := instances.NewHandlers(s.services.Instances)
	instanceHandlers.RegisterRoutes(protected.Group("/instances"))

	historyHandlers := history.NewHandlers(s.services.History)
	historyHandlers.RegisterRoutes(protected.Group("/history"))

	watchlistHandlers := watchlist.NewHandlers(s.services.Watchlist, s.logger)
	watchlistHandlers.RegisterRoutes(protected.Group("/watchlist"))

	if s.services.Health != nil {
		healthHandlers := health.NewHandlers(s.services.Health, s.services.HealthChecker)
		healthHandlers.RegisterRoutes(protected.Group("/health"))
	}

	// Scheduler routes
	protected.GET("/tasks", s.listTasks)
	protected.GET("/tasks/:id", s.getTask)
	protected.POST("/tasks/:id/run", s.runTask)

	// Log routes
	if s.services.Logs != nil {
		logsHandlers := NewLogsHandlers(s.services.Logs)
		logsHandlers.RegisterRoutes(protected.Group("/logs"))
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// --- Handler implementations ---

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":   "0.1.0",
		"startTime": s.started.Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
		"syncing":   s.services.Watchlist.Status().Running,
	})
}

func (s *Server) listTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.services.Scheduler.ListTasks())
}

func (s *Server) getTask(c echo.Context) error {
	info, err := s.services.Scheduler.GetTask(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) runTask(c echo.Context) error {
	if err := s.services.Scheduler.RunNow(c.Param("id")); err != nil {
		if errors.Is(err, scheduler.ErrTaskRunning) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}
