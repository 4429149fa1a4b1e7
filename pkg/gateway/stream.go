package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hs2504785/greenspace-push/pkg/fanout"
	"github.com/hs2504785/greenspace-push/pkg/worker"
)

// sseClient is a foreground tab connected over server-sent events
type sseClient struct {
	id  string
	url string
	ch  chan fanout.Message
}

func newSSEClient(url string) *sseClient {
	return &sseClient{
		id:  uuid.New().String(),
		url: url,
		ch:  make(chan fanout.Message, 16),
	}
}

func (c *sseClient) ID() string  { return c.id }
func (c *sseClient) URL() string { return c.url }

func (c *sseClient) Send(msg fanout.Message) error {
	select {
	case c.ch <- msg:
		return nil
	default:
		return errors.New("client buffer full")
	}
}

// stream attaches a foreground client over SSE. The client stays
// registered for direct fan-out until the connection drops.
func (g *Gateway) stream(c echo.Context) error {
	userID, err := g.resolveUserID(c, "")
	if err != nil {
		return err
	}

	page := c.QueryParam("page")
	if page == "" {
		page = "/"
	}

	client := newSSEClient(page)
	g.registry.Register(userID, client, false)
	defer g.registry.Unregister(client.id)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "Streaming not supported")
	}

	// Announce the connection so the client knows its ID
	if _, err := fmt.Fprintf(resp, "event: connected\ndata: {\"client_id\":%q}\n\n", client.id); err != nil {
		return nil
	}
	flusher.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-client.ch:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(resp, "data: %s\n\n", data); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

type pushEventRequest struct {
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// pushEvent runs one raw push event through the delivery pipeline:
// decode with defaults, display with tag replacement, fan out to
// attached clients
func (g *Gateway) pushEvent(c echo.Context) error {
	var req pushEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	userID, err := g.resolveUserID(c, req.UserID)
	if err != nil {
		return err
	}

	shown := g.worker.HandlePush(c.Request().Context(), userID, req.Payload)
	if shown == nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Notification display refused")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":      true,
		"notification": shown,
	})
}

type clickRequest struct {
	UserID string `json:"user_id,omitempty"`
	Tag    string `json:"tag"`
	Action string `json:"action,omitempty"`
}

func (g *Gateway) click(c echo.Context) error {
	var req clickRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Tag == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tag is required")
	}

	userID, err := g.resolveUserID(c, req.UserID)
	if err != nil {
		return err
	}

	result := g.clicks.HandleClick(userID, req.Tag, req.Action)
	return c.JSON(http.StatusOK, result)
}

func (g *Gateway) workerMessage(c echo.Context) error {
	var msg worker.ControlMessage
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	reply := g.controller.HandleMessage(c.Request().Context(), msg)
	if reply == nil {
		return c.NoContent(http.StatusAccepted)
	}
	return c.JSON(http.StatusOK, reply)
}
