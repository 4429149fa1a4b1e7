package auth

import (
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hs2504785/greenspace-push/pkg/config"
)

// UserContext represents the authenticated user context
type UserContext struct {
	UserID      string
	Role        string
	Permissions []string
	APIKey      string
	AuthType    string // currently always "api_key"
}

// Middleware creates authentication middleware backed by the configured
// API key list. Keys are accepted from the configured header or as a
// bearer token.
func Middleware(cfg *config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Store config in context for permission checks
			c.Set("config", cfg)

			// Skip auth if disabled
			if !cfg.Auth.Enabled {
				return next(c)
			}

			// Skip auth for OPTIONS requests (CORS preflight)
			if c.Request().Method == http.MethodOptions {
				return next(c)
			}

			// Skip auth for health endpoint
			if c.Request().URL.Path == "/health" {
				return next(c)
			}

			key := extractAPIKey(c, cfg.Auth.HeaderName)
			if key == "" {
				log.Printf("Authentication failed: no credentials provided from %s", c.RealIP())
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}

			apiKey, ok := cfg.ValidateAPIKey(key)
			if !ok {
				log.Printf("Authentication failed: invalid API key from %s", c.RealIP())
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API key")
			}

			c.Set("user", &UserContext{
				UserID:      apiKey.UserID,
				Role:        apiKey.Role,
				Permissions: apiKey.Permissions,
				APIKey:      apiKey.Key,
				AuthType:    "api_key",
			})
			return next(c)
		}
	}
}

// extractAPIKey pulls the API key from the configured header or the
// Authorization bearer token
func extractAPIKey(c echo.Context, headerName string) string {
	if key := c.Request().Header.Get(headerName); key != "" {
		return key
	}

	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

// RequirePermission creates permission-checking middleware
func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Check if auth is disabled by looking for config in context
			if cfg := GetConfigFromContext(c); cfg != nil && !cfg.Auth.Enabled {
				return next(c)
			}

			// Skip permission check for OPTIONS requests (CORS preflight)
			if c.Request().Method == http.MethodOptions {
				return next(c)
			}

			user := GetUserFromContext(c)
			if user == nil {
				log.Printf("Authorization failed: authentication required for permission %s from %s", permission, c.RealIP())
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}

			if !hasPermission(user.Permissions, permission) {
				log.Printf("Authorization failed: user %s (role: %s) lacks permission %s",
					user.UserID, user.Role, permission)
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}

			return next(c)
		}
	}
}

// GetUserFromContext retrieves user context from Echo context
func GetUserFromContext(c echo.Context) *UserContext {
	if user := c.Get("user"); user != nil {
		if userCtx, ok := user.(*UserContext); ok {
			return userCtx
		}
	}
	return nil
}

// GetConfigFromContext retrieves config from Echo context
func GetConfigFromContext(c echo.Context) *config.Config {
	if cfg := c.Get("config"); cfg != nil {
		if config, ok := cfg.(*config.Config); ok {
			return config
		}
	}
	return nil
}

// hasPermission checks whether the permission list grants the requested
// permission, honoring the "*" wildcard
func hasPermission(permissions []string, required string) bool {
	for _, p := range permissions {
		if p == "*" || p == required {
			return true
		}
	}
	return false
}
