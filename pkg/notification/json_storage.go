package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JSONStorage implements Storage using per-user JSON files
type JSONStorage struct {
	baseDir string
	mu      sync.RWMutex
}

// NewJSONStorage creates a new JSON-based storage
func NewJSONStorage(baseDir string) *JSONStorage {
	return &JSONStorage{
		baseDir: baseDir,
	}
}

// userDir returns the data directory for a user
func (s *JSONStorage) userDir(userID string) string {
	return filepath.Join(s.baseDir, "users", userID)
}

// ensureUserDir ensures the user data directory exists
func (s *JSONStorage) ensureUserDir(userID string) error {
	return os.MkdirAll(s.userDir(userID), 0755)
}

// readJSON decodes a JSON file into out; a missing or corrupt file leaves
// out untouched and reports found=false
func readJSON(path string, out any) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Warning: failed to close %s: %v", path, err)
		}
	}()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(out); err != nil {
		// A corrupt file is treated as absent rather than fatal
		return false, nil
	}
	return true, nil
}

// writeJSON writes out to path atomically via a temp file rename
func writeJSON(path string, in any) error {
	tempFile := path + ".tmp"

	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Warning: failed to close %s: %v", tempFile, err)
		}
	}()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(in); err != nil {
		_ = os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, path)
}

// loadSubscriptions loads all subscriptions for a user
func (s *JSONStorage) loadSubscriptions(userID string) ([]Subscription, error) {
	var subscriptions []Subscription
	if _, err := readJSON(filepath.Join(s.userDir(userID), "subscriptions.json"), &subscriptions); err != nil {
		return nil, err
	}
	if subscriptions == nil {
		subscriptions = []Subscription{}
	}
	return subscriptions, nil
}

// saveSubscriptions saves all subscriptions for a user
func (s *JSONStorage) saveSubscriptions(userID string, subscriptions []Subscription) error {
	return writeJSON(filepath.Join(s.userDir(userID), "subscriptions.json"), subscriptions)
}

// AddSubscription stores a subscription with replace semantics: an existing
// active row for the same endpoint is updated in place, never duplicated.
func (s *JSONStorage) AddSubscription(userID string, sub Subscription) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUserDir(userID); err != nil {
		return Subscription{}, err
	}

	subscriptions, err := s.loadSubscriptions(userID)
	if err != nil {
		return Subscription{}, err
	}

	now := time.Now()
	sub.UserID = userID
	sub.Active = true
	sub.UpdatedAt = now

	for i, existing := range subscriptions {
		if existing.Endpoint == sub.Endpoint {
			sub.ID = existing.ID
			sub.CreatedAt = existing.CreatedAt
			subscriptions[i] = sub
			return sub, s.saveSubscriptions(userID, subscriptions)
		}
	}

	if sub.ID == "" {
		sub.ID = fmt.Sprintf("sub_%s", uuid.New().String())
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}

	subscriptions = append(subscriptions, sub)
	return sub, s.saveSubscriptions(userID, subscriptions)
}

// GetSubscriptions returns all active subscriptions for a user,
// deduplicated by endpoint
func (s *JSONStorage) GetSubscriptions(userID string) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subscriptions, err := s.loadSubscriptions(userID)
	if err != nil {
		return nil, err
	}

	var active []Subscription
	seenEndpoints := make(map[string]bool)

	for _, sub := range subscriptions {
		if sub.Active && !seenEndpoints[sub.Endpoint] {
			active = append(active, sub)
			seenEndpoints[sub.Endpoint] = true
		}
	}

	return active, nil
}

// GetAllSubscriptions returns active subscriptions from all users
func (s *JSONStorage) GetAllSubscriptions() ([]Subscription, error) {
	userIDs, err := s.UserIDs()
	if err != nil {
		return nil, err
	}

	var all []Subscription
	for _, userID := range userIDs {
		subscriptions, err := s.GetSubscriptions(userID)
		if err != nil {
			continue // Skip users with errors
		}
		all = append(all, subscriptions...)
	}

	return all, nil
}

// DeactivateSubscription marks a subscription as inactive
func (s *JSONStorage) DeactivateSubscription(userID string, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subscriptions, err := s.loadSubscriptions(userID)
	if err != nil {
		return err
	}

	found := false
	for i, sub := range subscriptions {
		if sub.Endpoint == endpoint && sub.Active {
			found = true
			subscriptions[i].Active = false
			subscriptions[i].UpdatedAt = time.Now()
			break
		}
	}

	if !found {
		return ErrSubscriptionNotFound
	}

	return s.saveSubscriptions(userID, subscriptions)
}

// GetPreferences returns the user's notification preferences, creating
// defaults on first read
func (s *JSONStorage) GetPreferences(userID string) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.userDir(userID), "preferences.json")

	var prefs Preferences
	found, err := readJSON(path, &prefs)
	if err != nil {
		return Preferences{}, err
	}
	if found {
		return prefs, nil
	}

	prefs = DefaultPreferences(userID)
	if err := s.ensureUserDir(userID); err != nil {
		return Preferences{}, err
	}
	if err := writeJSON(path, prefs); err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}

// UpdatePreferences replaces the user's notification preferences
func (s *JSONStorage) UpdatePreferences(userID string, prefs Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUserDir(userID); err != nil {
		return err
	}

	prefs.UserID = userID
	prefs.UpdatedAt = time.Now()
	return writeJSON(filepath.Join(s.userDir(userID), "preferences.json"), prefs)
}

// loadHistory loads all history entries for a user
func (s *JSONStorage) loadHistory(userID string) ([]History, error) {
	var history []History
	if _, err := readJSON(filepath.Join(s.userDir(userID), "history.json"), &history); err != nil {
		return nil, err
	}
	if history == nil {
		history = []History{}
	}
	return history, nil
}

// saveHistory saves all history entries for a user
func (s *JSONStorage) saveHistory(userID string, history []History) error {
	return writeJSON(filepath.Join(s.userDir(userID), "history.json"), history)
}

// AddHistory appends a sent-notification record
func (s *JSONStorage) AddHistory(userID string, entry History) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUserDir(userID); err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = fmt.Sprintf("notif_%d_%s", time.Now().Unix(), uuid.New().String()[:8])
	}

	history, err := s.loadHistory(userID)
	if err != nil {
		return err
	}

	history = append(history, entry)
	return s.saveHistory(userID, history)
}

// GetHistory retrieves notification history with pagination and filtering
func (s *JSONStorage) GetHistory(userID string, limit, offset int, filters map[string]string) ([]History, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.loadHistory(userID)
	if err != nil {
		return nil, 0, err
	}

	var filtered []History
	for _, entry := range all {
		if tag := filters["tag"]; tag != "" && entry.Tag != tag {
			continue
		}
		if notificationType := filters["type"]; notificationType != "" && entry.Type != notificationType {
			continue
		}
		filtered = append(filtered, entry)
	}

	// Newest first
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
func (s *JSONStorage) RotateHistory(userID string, maxEntries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadHistory(userID)
	if err != nil {
		return err
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].SentAt.After(all[j].SentAt)
	})

	if len(all) <= maxEntries {
		return nil
	}

	return s.saveHistory(userID, all[:maxEntries])
}

// UserIDs lists every user with stored notification data
func (s *JSONStorage) UserIDs() ([]string, error) {
	usersDir := filepath.Join(s.baseDir, "users")
	entries, err := os.ReadDir(usersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var userIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			userIDs = append(userIDs, entry.Name())
		}
	}
	return userIDs, nil
}
