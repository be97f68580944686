package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// AccountLockoutChecker provides account lockout functionality.
type AccountLockoutChecker interface {
	IsAccountLocked(username string) bool
	GetLockoutRemaining(username string) time.Duration
	RecordFailedAttempt(username string)
	RecordSuccessfulLogin(username string)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type SetupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Handlers provides HTTP handlers for authentication.
type Handlers struct {
	service        *Service
	lockoutChecker AccountLockoutChecker
}

// NewHandlers creates new auth handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// SetLockoutChecker enables account lockout on repeated failed logins.
func (h *Handlers) SetLockoutChecker(checker AccountLockoutChecker) {
	h.lockoutChecker = checker
}

// RegisterRoutes registers unauthenticated auth routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/login", h.Login)
	g.POST("/setup", h.Setup)
	g.GET("/status", h.Status)
}

// Status reports whether initial setup has been completed.
// GET /api/v1/auth/status
func (h *Handlers) Status(c echo.Context) error {
	hasUsers, err := h.service.HasUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to check setup status")
	}
	return c.JSON(http.StatusOK, map[string]bool{"setupComplete": hasUsers})
}

// Setup creates the first account. Once any account exists the endpoint
// is closed.
// POST /api/v1/auth/setup
func (h *Handlers) Setup(c echo.Context) error {
	var req SetupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	hasUsers, err := h.service.HasUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to check setup status")
	}
	if hasUsers {
		return echo.NewHTTPError(http.StatusForbidden, "setup has already been completed")
	}

	user, err := h.service.CreateUser(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create user")
	}

	token, err := h.service.GenerateToken(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(http.StatusCreated, LoginResponse{Token: token, User: user})
}

// Login validates credentials and returns a session token.
// POST /api/v1/auth/login
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	if h.lockoutChecker != nil && h.lockoutChecker.IsAccountLocked(req.Username) {
		remaining := h.lockoutChecker.GetLockoutRemaining(req.Username)
		minutes := int(remaining.Minutes()) + 1
		return echo.NewHTTPError(http.StatusTooManyRequests,
			fmt.Sprintf("account temporarily locked due to too many failed attempts, try again in %d minute(s)", minutes))
	}

	user, err := h.service.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			if h.lockoutChecker != nil {
				h.lockoutChecker.RecordFailedAttempt(req.Username)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "authentication failed")
	}

	if h.lockoutChecker != nil {
		h.lockoutChecker.RecordSuccessfulLogin(req.Username)
	}

	token, err := h.service.GenerateToken(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(http.StatusOK, LoginResponse{Token: token, User: user})
}
