package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hs2504785/greenspace-push/pkg/config"
)

func testConfig(enabled bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Auth.Enabled = enabled
	cfg.Auth.APIKeys = []config.APIKey{
		{Key: "farmer-key", UserID: "farmer1", Role: "seller", Permissions: []string{"send"}},
		{Key: "admin-key", UserID: "admin1", Role: "admin", Permissions: []string{"*"}},
	}
	return cfg
}

func invoke(t *testing.T, cfg *config.Config, setup func(*http.Request)) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/notifications/subscribe", nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(cfg)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return rec, handler(c)
}

func TestMiddlewareDisabled(t *testing.T) {
	rec, err := invoke(t, testConfig(false), nil)
	if err != nil {
		t.Fatalf("Expected no error when auth disabled, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestMiddlewareMissingKey(t *testing.T) {
	_, err := invoke(t, testConfig(true), nil)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 error, got %v", err)
	}
}

func TestMiddlewareHeaderKey(t *testing.T) {
	cfg := testConfig(true)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/notifications/subscribe", nil)
	req.Header.Set("X-API-Key", "farmer-key")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var captured *UserContext
	handler := Middleware(cfg)(func(c echo.Context) error {
		captured = GetUserFromContext(c)
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if captured == nil || captured.UserID != "farmer1" {
		t.Errorf("Expected user farmer1 in context, got %+v", captured)
	}
	if captured.AuthType != "api_key" {
		t.Errorf("Expected auth type api_key, got %s", captured.AuthType)
	}
}

func TestMiddlewareBearerKey(t *testing.T) {
	rec, err := invoke(t, testConfig(true), func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer admin-key")
	})
	if err != nil {
		t.Fatalf("Expected success with bearer token, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestMiddlewareInvalidKey(t *testing.T) {
	_, err := invoke(t, testConfig(true), func(req *http.Request) {
		req.Header.Set("X-API-Key", "wrong")
	})
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 error, got %v", err)
	}
}

func TestHasPermission(t *testing.T) {
	if !hasPermission([]string{"*"}, "send") {
		t.Error("Expected wildcard to grant send")
	}
	if !hasPermission([]string{"send", "subscribe"}, "send") {
		t.Error("Expected explicit permission to grant send")
	}
	if hasPermission([]string{"subscribe"}, "send") {
		t.Error("Expected missing permission to deny send")
	}
}
