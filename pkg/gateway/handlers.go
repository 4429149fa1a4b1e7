package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hs2504785/greenspace-push/pkg/auth"
	"github.com/hs2504785/greenspace-push/pkg/notification"
)

// resolveUserID prefers the authenticated identity and falls back to an
// explicit user_id when authentication is disabled
func (g *Gateway) resolveUserID(c echo.Context, explicit string) (string, error) {
	if user := auth.GetUserFromContext(c); user != nil {
		return user.UserID, nil
	}
	if explicit != "" {
		return explicit, nil
	}
	if v := c.QueryParam("user_id"); v != "" {
		return v, nil
	}
	return "", echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
}

func (g *Gateway) getVAPIDPublicKey(c echo.Context) error {
	key := g.service.VAPIDPublicKey()
	if key == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Web push is not configured")
	}
	return c.JSON(http.StatusOK, map[string]string{"public_key": key})
}

type subscribeRequest struct {
	UserID   string            `json:"user_id,omitempty"`
	Endpoint string            `json:"endpoint"`
	Keys     map[string]string `json:"keys"`
}

func (g *Gateway) subscribe(c echo.Context) error {
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	userID, err := g.resolveUserID(c, req.UserID)
	if err != nil {
		return err
	}

	device := notification.ExtractDeviceInfo(c.Request())
	sub, err := g.service.Subscribe(userID, req.Endpoint, req.Keys, device)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, notification.SubscribeResponse{
		Success:        true,
		SubscriptionID: sub.ID,
	})
}

func (g *Gateway) getSubscriptions(c echo.Context) error {
	userID, err := g.resolveUserID(c, "")
	if err != nil {
		return err
	}

	subs, err := g.service.GetSubscriptions(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load subscriptions")
	}
	if subs == nil {
		subs = []notification.Subscription{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"subscriptions": subs,
		"total":         len(subs),
	})
}

type unsubscribeRequest struct {
	UserID   string `json:"user_id,omitempty"`
	Endpoint string `json:"endpoint"`
}

func (g *Gateway) unsubscribe(c echo.Context) error {
	var req unsubscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Endpoint == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "endpoint is required")
	}

	userID, err := g.resolveUserID(c, req.UserID)
	if err != nil {
		return err
	}

	// Unsubscribe is idempotent: removing an absent subscription succeeds
	if err := g.service.Unsubscribe(userID, req.Endpoint); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to remove subscription")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

type rotateRequest struct {
	UserID      string            `json:"user_id,omitempty"`
	OldEndpoint string            `json:"old_endpoint"`
	NewEndpoint string            `json:"new_endpoint"`
	NewKeys     map[string]string `json:"new_keys"`
}

// rotateSubscription handles a push service re-issuing a subscription
// with a new endpoint
func (g *Gateway) rotateSubscription(c echo.Context) error {
	var req rotateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	userID, err := g.resolveUserID(c, req.UserID)
	if err != nil {
		return err
	}

	sub, err := g.service.RotateSubscription(userID, req.OldEndpoint, req.NewEndpoint, req.NewKeys)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, notification.SubscribeResponse{
		Success:        true,
		SubscriptionID: sub.ID,
	})
}

func (g *Gateway) getPreferences(c echo.Context) error {
	userID, err := g.resolveUserID(c, "")
	if err != nil {
		return err
	}

	prefs, err := g.service.GetPreferences(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load preferences")
	}
	return c.JSON(http.StatusOK, prefs)
}

func (g *Gateway) updatePreferences(c echo.Context) error {
	var prefs notification.Preferences
	if err := c.Bind(&prefs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	userID, err := g.resolveUserID(c, prefs.UserID)
	if err != nil {
		return err
	}
	prefs.UserID = userID

	if err := g.service.UpdatePreferences(userID, prefs); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save preferences")
	}
	return c.JSON(http.StatusOK, prefs)
}

func (g *Gateway) sendNotification(c echo.Context) error {
	var req notification.SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if !req.Broadcast && req.UserID == "" {
		userID, err := g.resolveUserID(c, "")
		if err != nil {
			return err
		}
		req.UserID = userID
	}

	resp, err := g.service.Send(req)
	if err != nil {
		if errors.Is(err, notification.ErrWebPushNotConfigured) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Web push is not configured")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (g *Gateway) getHistory(c echo.Context) error {
	userID, err := g.resolveUserID(c, "")
	if err != nil {
		return err
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	filters := make(map[string]string)
	if tag := c.QueryParam("tag"); tag != "" {
		filters["tag"] = tag
	}
	if typ := c.QueryParam("type"); typ != "" {
		filters["type"] = typ
	}

	resp, err := g.service.GetHistory(userID, limit, offset, filters)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load history")
	}
	return c.JSON(http.StatusOK, resp)
}
