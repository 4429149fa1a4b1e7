// Package fanout delivers in-app update signals to connected foreground
// clients. Delivery is best-effort and duplicate-tolerant: a client may
// receive the same logical event on both the direct path and the
// broadcast channel, and consumers must treat messages as "increment or
// refetch" signals rather than authoritative unique events.
package fanout

import (
	"sort"
	"sync"
)

// Message types exchanged with clients
const (
	TypeNewNotification = "NEW_NOTIFICATION"
	TypeFocus           = "FOCUS"
)

// NotificationSummary is the lightweight notification view sent to clients
type NotificationSummary struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}

// Message is the envelope delivered to clients and published on the
// broadcast channel
type Message struct {
	Type         string               `json:"type"`
	UserID       string               `json:"user_id,omitempty"`
	Notification *NotificationSummary `json:"notification,omitempty"`
}

// Client is a connected foreground tab
type Client interface {
	// ID uniquely identifies the connection
	ID() string
	// URL is the page the tab currently shows
	URL() string
	// Send pushes a message to the tab; it must not block indefinitely
	Send(msg Message) error
}

type entry struct {
	client     Client
	userID     string
	controlled bool
}

// Registry tracks connected clients per user. A client attaches as
// uncontrolled and becomes controlled once claimed (the analog of a
// worker claiming open tabs on activation).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty client registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register attaches a client for a user
func (r *Registry) Register(userID string, client Client, controlled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[client.ID()] = &entry{
		client:     client,
		userID:     userID,
		controlled: controlled,
	}
}

// Unregister detaches a client
func (r *Registry) Unregister(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, clientID)
}

// Match returns the user's clients. With includeUncontrolled false only
// claimed clients are returned, mirroring a client-matching query that
// excludes tabs not yet attached to the current worker version.
func (r *Registry) Match(userID string, includeUncontrolled bool) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var clients []Client
	for _, e := range r.entries {
		if e.userID != userID {
			continue
		}
		if !includeUncontrolled && !e.controlled {
			continue
		}
		clients = append(clients, e.client)
	}

	// Stable order keeps delivery deterministic in tests
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].ID() < clients[j].ID()
	})
	return clients
}

// MatchURL returns the user's first client currently showing the URL
func (r *Registry) MatchURL(userID, url string) Client {
	for _, client := range r.Match(userID, true) {
		if client.URL() == url {
			return client
		}
	}
	return nil
}

// ClaimAll marks every registered client as controlled
func (r *Registry) ClaimAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.controlled = true
	}
}

// Len returns the number of registered clients
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
