package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jamcalli/Pulsarr-sub011/internal/auth"
)

const claimsContextKey = "auth:claims"

// JWTAuth returns middleware that requires a valid bearer token on every
// request. While no account exists yet, requests pass through so the
// initial setup flow can reach the API.
func JWTAuth(service *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				hasUsers, err := service.HasUsers(c.Request().Context())
				if err == nil && !hasUsers {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization token")
			}

			claims, err := service.ValidateToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// GetClaims returns the authenticated user's claims, or nil.
func GetClaims(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsContextKey).(*auth.Claims)
	return claims
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Browsers cannot set headers on websocket upgrades, so the token may
	// arrive as a query parameter instead.
	return c.QueryParam("token")
}
