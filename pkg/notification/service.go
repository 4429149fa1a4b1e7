package notification

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hs2504785/greenspace-push/pkg/config"
)

// TopicClassifier maps free-form notification text to an event type when
// the sender did not specify one
type TopicClassifier interface {
	Categorize(text string) string
}

// Service provides subscription lifecycle and dispatch functionality
type Service struct {
	storage    Storage
	sender     Sender
	webpush    *WebPushService
	classifier TopicClassifier
	defaults   config.NotifyDefaults
	urgency    string
}

// NewService creates a notification service with JSON file storage.
// Web push dispatch is optional: subscriptions can be managed without a
// VAPID key pair, sends then fail with ErrWebPushNotConfigured.
func NewService(cfg *config.Config, classifier TopicClassifier) *Service {
	s := &Service{
		storage:    NewJSONStorage(cfg.Storage.BaseDir),
		classifier: classifier,
		defaults:   cfg.Defaults,
	}

	webpush, err := NewWebPushService(cfg.VAPID)
	if err != nil {
		log.Printf("[NOTIFY] Web push disabled: %v", err)
	} else {
		s.webpush = webpush
		s.sender = webpush
	}

	return s
}

// NewServiceWith creates a service with explicit collaborators, used by tests
func NewServiceWith(storage Storage, sender Sender, classifier TopicClassifier, defaults config.NotifyDefaults) *Service {
	return &Service{
		storage:    storage,
		sender:     sender,
		classifier: classifier,
		defaults:   defaults,
	}
}

// VAPIDPublicKey returns the public key clients need to create a push
// subscription, or "" when web push is not configured
func (s *Service) VAPIDPublicKey() string {
	if s.webpush == nil {
		return ""
	}
	return s.webpush.PublicKey()
}

// Subscribe persists a device subscription for a user. Re-subscribing an
// endpoint replaces the stored record rather than duplicating it.
func (s *Service) Subscribe(userID, endpoint string, keys map[string]string, device *DeviceInfo) (*Subscription, error) {
	if endpoint == "" {
		return nil, &SubscriptionError{Op: "subscribe", Err: errors.New("endpoint is required")}
	}
	if keys["p256dh"] == "" || keys["auth"] == "" {
		return nil, &SubscriptionError{Op: "subscribe", Err: errors.New("p256dh and auth keys are required")}
	}

	sub, err := s.storage.AddSubscription(userID, Subscription{
		Endpoint:   endpoint,
		Keys:       keys,
		DeviceInfo: device,
	})
	if err != nil {
		return nil, &SubscriptionError{Op: "subscribe", Err: err}
	}

	return &sub, nil
}

// Unsubscribe deactivates a stored subscription. It is idempotent: removing
// a subscription that does not exist succeeds.
func (s *Service) Unsubscribe(userID, endpoint string) error {
	err := s.storage.DeactivateSubscription(userID, endpoint)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil
	}
	if err != nil {
		return &SubscriptionError{Op: "unsubscribe", Err: err}
	}
	return nil
}

// RotateSubscription replaces an expired endpoint with a fresh one, keeping
// the (user, endpoint) uniqueness invariant. Covers push-service initiated
// subscription rotation.
func (s *Service) RotateSubscription(userID, oldEndpoint, newEndpoint string, newKeys map[string]string) (*Subscription, error) {
	if oldEndpoint != "" {
		if err := s.Unsubscribe(userID, oldEndpoint); err != nil {
			return nil, err
		}
	}
	return s.Subscribe(userID, newEndpoint, newKeys, nil)
}

// GetSubscriptions returns all active subscriptions for a user
func (s *Service) GetSubscriptions(userID string) ([]Subscription, error) {
	return s.storage.GetSubscriptions(userID)
}

// GetPreferences returns the user's notification preferences, creating
// defaults on first access
func (s *Service) GetPreferences(userID string) (Preferences, error) {
	return s.storage.GetPreferences(userID)
}

// UpdatePreferences replaces the user's notification preferences
func (s *Service) UpdatePreferences(userID string, prefs Preferences) error {
	return s.storage.UpdatePreferences(userID, prefs)
}

// Send dispatches a notification to one user or to every subscribed user,
// honoring per-user preference flags. A push-service 404/410 deactivates
// the stored subscription. Per-subscription failures never abort delivery
// to the remaining subscriptions.
func (s *Service) Send(req SendRequest) (*SendResponse, error) {
	if s.sender == nil {
		return nil, ErrWebPushNotConfigured
	}

	notificationType := s.resolveType(req)

	var userIDs []string
	if req.Broadcast {
		ids, err := s.storage.UserIDs()
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		userIDs = ids
	} else {
		if req.UserID == "" {
			return nil, errors.New("user_id or broadcast target is required")
		}
		userIDs = []string{req.UserID}
	}

	resp := &SendResponse{}
	var lastError error

	for _, userID := range userIDs {
		prefs, err := s.storage.GetPreferences(userID)
		if err != nil {
			log.Printf("[NOTIFY] Failed to load preferences for %s: %v", userID, err)
		} else if !prefs.Allows(notificationType) {
			resp.Skipped++
			continue
		}

		subscriptions, err := s.storage.GetSubscriptions(userID)
		if err != nil {
			log.Printf("[NOTIFY] Failed to load subscriptions for %s: %v", userID, err)
			continue
		}

		for _, sub := range subscriptions {
			if err := s.sendToSubscription(sub, req, notificationType); err != nil {
				resp.Failed++
				lastError = err
			} else {
				resp.Delivered++
			}
		}
	}

	if resp.Delivered == 0 && lastError != nil {
		return resp, fmt.Errorf("failed to send any notifications: %w", lastError)
	}

	resp.Success = true
	return resp, nil
}

// sendToSubscription dispatches to a single endpoint and records history
func (s *Service) sendToSubscription(sub Subscription, req SendRequest, notificationType string) error {
	title := req.Title
	if title == "" {
		title = s.defaults.AppName
	}
	body := req.Message
	if body == "" {
		body = s.defaults.Body
	}
	tag := req.Tag
	if tag == "" {
		tag = s.defaults.Tag
	}
	url := req.URL
	if url == "" {
		url = s.defaults.URL
	}

	payload, err := EncodePayload(title, body, s.defaults.Icon, s.defaults.Badge, tag, url, req.Data)
	if err != nil {
		return err
	}

	urgency := "normal"
	if notificationType == TypeOrderUpdate {
		urgency = "high"
	}

	sendErr := s.sender.Send(sub, payload, urgency)

	if errors.Is(sendErr, ErrSubscriptionGone) {
		log.Printf("[NOTIFY] Endpoint gone, deactivating subscription %s for user %s", sub.ID, sub.UserID)
		if err := s.storage.DeactivateSubscription(sub.UserID, sub.Endpoint); err != nil {
			log.Printf("[NOTIFY] Failed to deactivate gone subscription: %v", err)
		}
	}

	entry := History{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		Title:          title,
		Body:           body,
		Type:           notificationType,
		Tag:            tag,
		Data:           req.Data,
		SentAt:         time.Now(),
		Delivered:      sendErr == nil,
	}
	if sendErr != nil {
		errMsg := sendErr.Error()
		entry.ErrorMessage = &errMsg
	}

	if histErr := s.storage.AddHistory(sub.UserID, entry); histErr != nil {
		// Log but don't fail the notification send
		log.Printf("[NOTIFY] Failed to save notification history: %v", histErr)
	}

	return sendErr
}

// resolveType picks the event type for preference filtering, falling back
// to the keyword classifier when the sender did not specify one
func (s *Service) resolveType(req SendRequest) string {
	if req.Type != "" {
		return req.Type
	}
	if s.classifier != nil {
		return s.classifier.Categorize(strings.TrimSpace(req.Title + " " + req.Message))
	}
	return TypeNewProduct
}

// GetHistory retrieves notification history for a user
func (s *Service) GetHistory(userID string, limit, offset int, filters map[string]string) (*HistoryResponse, error) {
	if filters == nil {
		filters = map[string]string{}
	}
	notifications, total, err := s.storage.GetHistory(userID, limit, offset, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification history: %w", err)
	}

	return &HistoryResponse{
		Notifications: notifications,
		Total:         total,
		HasMore:       (offset + len(notifications)) < total,
	}, nil
}

// RotateAllHistory trims every user's history to maxEntries, keeping the
// newest records. Run on a schedule by the gateway.
func (s *Service) RotateAllHistory(maxEntries int) {
	userIDs, err := s.storage.UserIDs()
	if err != nil {
		log.Printf("[NOTIFY] History rotation: failed to list users: %v", err)
		return
	}

	for _, userID := range userIDs {
		if err := s.storage.RotateHistory(userID, maxEntries); err != nil {
			log.Printf("[NOTIFY] History rotation failed for %s: %v", userID, err)
		}
	}
}
