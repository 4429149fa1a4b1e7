package worker

import (
	"log"

	"github.com/hs2504785/greenspace-push/pkg/fanout"
)

// ClickResult reports how a notification interaction was routed
type ClickResult struct {
	Closed    bool   `json:"closed"`
	FocusedID string `json:"focused_client_id,omitempty"`
	OpenedURL string `json:"opened_url,omitempty"`
}

// WindowOpener opens a new tab at a URL when no existing tab matches
type WindowOpener interface {
	Open(userID, url string) error
}

// ClickRouter decides what happens when a user interacts with a
// displayed notification
type ClickRouter struct {
	store    NotificationStore
	registry *fanout.Registry
	opener   WindowOpener
}

// NewClickRouter creates a click router
func NewClickRouter(store NotificationStore, registry *fanout.Registry, opener WindowOpener) *ClickRouter {
	return &ClickRouter{
		store:    store,
		registry: registry,
		opener:   opener,
	}
}

// HandleClick routes one notification interaction. The notification is
// closed first in every case. The close action stops there; any other
// interaction focuses a tab already showing the target URL or opens a
// new one.
func (r *ClickRouter) HandleClick(userID, tag, action string) ClickResult {
	var target string
	if entries := r.store.Get(userID, tag); len(entries) > 0 {
		target = entries[0].URL
	}

	r.store.Close(userID, tag)
	result := ClickResult{Closed: true}

	if action == ActionClose {
		return result
	}

	if target == "" {
		target = "/"
	}

	if client := r.registry.MatchURL(userID, target); client != nil {
		if err := client.Send(fanout.Message{Type: fanout.TypeFocus, UserID: userID}); err != nil {
			log.Printf("[WORKER] Focus of client %s failed: %v", client.ID(), err)
		} else {
			result.FocusedID = client.ID()
			return result
		}
	}

	if r.opener != nil {
		if err := r.opener.Open(userID, target); err != nil {
			log.Printf("[WORKER] Failed to open window at %s: %v", target, err)
			return result
		}
	}
	result.OpenedURL = target
	return result
}
