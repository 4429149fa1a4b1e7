package worker

import (
	"context"
	"log"

	"github.com/hs2504785/greenspace-push/pkg/config"
	"github.com/hs2504785/greenspace-push/pkg/fanout"
)

// Handler coordinates one accepted push event: decode, display with
// tag-replace semantics, then fan out to attached clients. HandlePush is
// synchronous; callers keep the event alive until it returns, which is
// the lifetime-extension contract for the whole delivery.
type Handler struct {
	store    NotificationStore
	notifier *fanout.Notifier
	defaults config.NotifyDefaults
}

// NewHandler creates a push event handler
func NewHandler(store NotificationStore, notifier *fanout.Notifier, defaults config.NotifyDefaults) *Handler {
	return &Handler{
		store:    store,
		notifier: notifier,
		defaults: defaults,
	}
}

// Store exposes the notification store for click routing and listing
func (h *Handler) Store() NotificationStore {
	return h.store
}

// HandlePush processes a raw push event for a user. It never fails the
// event: parse errors fall back to default content, and a refused
// display gets one minimal fallback attempt before the event is logged
// and dropped. The returned notification is what was displayed, or nil
// when even the fallback display was refused.
func (h *Handler) HandlePush(ctx context.Context, userID string, raw []byte) *Notification {
	payload, err := DecodePayload(raw, h.defaults)
	if err != nil {
		// Recovered locally; default content is used
		log.Printf("[WORKER] %v, using default notification content", err)
	}

	n := Notification{
		Tag:   payload.Tag,
		Title: payload.Title,
		Body:  payload.Body,
		Icon:  h.defaults.Icon,
		Badge: h.defaults.Badge,
		URL:   payload.URL,
		Data:  payload.Data,
		Actions: []Action{
			{Action: ActionView, Title: "View"},
			{Action: ActionClose, Title: "Close"},
		},
	}

	if err := h.store.Show(userID, n); err != nil {
		log.Printf("[WORKER] %v", &DisplayError{Tag: n.Tag, Err: err})

		// One fallback attempt with minimal generic content
		n = Notification{
			Tag:   h.defaults.Tag,
			Title: h.defaults.AppName,
			Body:  h.defaults.Body,
			URL:   h.defaults.URL,
		}
		if err := h.store.Show(userID, n); err != nil {
			log.Printf("[WORKER] Fallback display refused, dropping event: %v", &DisplayError{Tag: n.Tag, Err: err})
			return nil
		}
	}

	h.notifier.Deliver(ctx, userID, fanout.Message{
		Type:   fanout.TypeNewNotification,
		UserID: userID,
		Notification: &fanout.NotificationSummary{
			Title: n.Title,
			Body:  n.Body,
			Tag:   n.Tag,
		},
	})

	return &n
}
