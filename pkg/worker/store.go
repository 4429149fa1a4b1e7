package worker

import (
	"sort"
	"sync"
	"time"
)

// Notification actions offered on a displayed notification
const (
	ActionView  = "view"
	ActionClose = "close"
)

// Action is a button offered on a displayed notification
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Notification is one entry in a user's notification center
type Notification struct {
	Tag       string         `json:"tag"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Icon      string         `json:"icon"`
	Badge     string         `json:"badge"`
	URL       string         `json:"url"`
	Actions   []Action       `json:"actions"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NotificationStore is the per-user, tag-keyed store of displayed
// notifications. A new notification with an existing tag replaces the
// prior entry, so Get returns at most one entry per tag. Entries are
// ephemeral; the store is not expected to survive a restart.
type NotificationStore interface {
	Show(userID string, n Notification) error
	Get(userID, tag string) []Notification
	List(userID string) []Notification
	Close(userID, tag string)
}

// MemoryNotificationStore implements NotificationStore in process memory
type MemoryNotificationStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]Notification
}

// NewMemoryNotificationStore creates an empty notification store
func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{
		entries: make(map[string]map[string]Notification),
	}
}

// Show displays a notification, replacing any prior entry with the same tag
func (s *MemoryNotificationStore) Show(userID string, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[userID] == nil {
		s.entries[userID] = make(map[string]Notification)
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	s.entries[userID][n.Tag] = n
	return nil
}

// Get returns the notifications matching the tag; at most one entry
func (s *MemoryNotificationStore) Get(userID, tag string) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n, ok := s.entries[userID][tag]; ok {
		return []Notification{n}
	}
	return nil
}

// List returns all visible notifications for a user, newest first
func (s *MemoryNotificationStore) List(userID string) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var notifications []Notification
	for _, n := range s.entries[userID] {
		notifications = append(notifications, n)
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].Timestamp.After(notifications[j].Timestamp)
	})
	return notifications
}

// Close removes a notification; closing a missing tag is a no-op
func (s *MemoryNotificationStore) Close(userID, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[userID], tag)
}
