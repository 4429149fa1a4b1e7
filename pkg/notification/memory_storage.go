package notification

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage in memory, for tests and ephemeral runs
type MemoryStorage struct {
	mu            sync.RWMutex
	subscriptions map[string][]Subscription
	preferences   map[string]Preferences
	history       map[string][]History
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		subscriptions: make(map[string][]Subscription),
		preferences:   make(map[string]Preferences),
		history:       make(map[string][]History),
	}
}

// AddSubscription stores a subscription with replace semantics
func (s *MemoryStorage) AddSubscription(userID string, sub Subscription) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sub.UserID = userID
	sub.Active = true
	sub.UpdatedAt = now

	subs := s.subscriptions[userID]
	for i, existing := range subs {
		if existing.Endpoint == sub.Endpoint {
			sub.ID = existing.ID
			sub.CreatedAt = existing.CreatedAt
			subs[i] = sub
			return sub, nil
		}
	}

	if sub.ID == "" {
		sub.ID = fmt.Sprintf("sub_%s", uuid.New().String())
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}

	s.subscriptions[userID] = append(subs, sub)
	return sub, nil
}

// GetSubscriptions returns all active subscriptions for a user
func (s *MemoryStorage) GetSubscriptions(userID string) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []Subscription
	for _, sub := range s.subscriptions[userID] {
		if sub.Active {
			active = append(active, sub)
		}
	}
	return active, nil
}

// GetAllSubscriptions returns active subscriptions from all users
func (s *MemoryStorage) GetAllSubscriptions() ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Subscription
	for _, subs := range s.subscriptions {
		for _, sub := range subs {
			if sub.Active {
				all = append(all, sub)
			}
		}
	}
	return all, nil
}

// DeactivateSubscription marks a subscription as inactive
func (s *MemoryStorage) DeactivateSubscription(userID string, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subscriptions[userID]
	for i, sub := range subs {
		if sub.Endpoint == endpoint && sub.Active {
			subs[i].Active = false
			subs[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

// GetPreferences returns the user's preferences, creating defaults on first read
func (s *MemoryStorage) GetPreferences(userID string) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prefs, ok := s.preferences[userID]; ok {
		return prefs, nil
	}
	prefs := DefaultPreferences(userID)
	s.preferences[userID] = prefs
	return prefs, nil
}

// UpdatePreferences replaces the user's preferences
func (s *MemoryStorage) UpdatePreferences(userID string, prefs Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs.UserID = userID
	prefs.UpdatedAt = time.Now()
	s.preferences[userID] = prefs
	return nil
}

// AddHistory appends a sent-notification record
func (s *MemoryStorage) AddHistory(userID string, entry History) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = fmt.Sprintf("notif_%d_%s", time.Now().Unix(), uuid.New().String()[:8])
	}
	s.history[userID] = append(s.history[userID], entry)
	return nil
}

// GetHistory retrieves notification history with pagination and filtering
func (s *MemoryStorage) GetHistory(userID string, limit, offset int, filters map[string]string) ([]History, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []History
	for _, entry := range s.history[userID] {
		if tag := filters["tag"]; tag != "" && entry.Tag != tag {
			continue
		}
		if notificationType := filters["type"]; notificationType != "" && entry.Type != notificationType {
			continue
		}
		filtered = append(filtered, entry)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].SentAt.After(filtered[j].SentAt)
	})

	total := len(filtered)
	if offset >= total {
		return []History{}, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}
	return filtered[offset:end], total, nil
}

// RotateHistory keeps only the most recent N entries
func (s *MemoryStorage) RotateHistory(userID string, maxEntries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.history[userID]
	sort.Slice(all, func(i, j int) bool {
		return all[i].SentAt.After(all[j].SentAt)
	})
	if len(all) > maxEntries {
		s.history[userID] = all[:maxEntries]
	}
	return nil
}

// UserIDs lists every user with stored notification data
func (s *MemoryStorage) UserIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for userID := range s.subscriptions {
		seen[userID] = true
	}
	for userID := range s.preferences {
		seen[userID] = true
	}

	var userIDs []string
	for userID := range seen {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)
	return userIDs, nil
}
