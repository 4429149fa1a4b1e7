package notification

import (
	"time"
)

// Notification event types recognized by the send-time preference filter
const (
	TypeNewProduct    = "new_product"
	TypeOrderUpdate   = "order_update"
	TypeSellerMessage = "seller_message"
	TypePriceDrop     = "price_drop"
	TypeMarketing     = "marketing"
)

// SubscribeRequest represents the request body for subscribing to push notifications
type SubscribeRequest struct {
	Endpoint string            `json:"endpoint" validate:"required"`
	Keys     map[string]string `json:"keys" validate:"required"`
}

// SubscribeResponse represents the response for a successful subscription
type SubscribeResponse struct {
	Success        bool   `json:"success"`
	SubscriptionID string `json:"subscription_id"`
}

// DeleteSubscriptionRequest represents the request body for deleting a subscription
type DeleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// Subscription represents a device push subscription in the system.
// A given (user, endpoint) pair maps to at most one active subscription;
// re-subscribing replaces the stored record instead of duplicating it.
type Subscription struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Endpoint   string            `json:"endpoint"`
	Keys       map[string]string `json:"keys"`
	DeviceInfo *DeviceInfo       `json:"device_info,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Active     bool              `json:"active"`
}

// DeviceInfo describes the browser/device that created a subscription
type DeviceInfo struct {
	UserAgent  string `json:"user_agent"`
	DeviceType string `json:"device_type"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceHash string `json:"device_hash"`
}

// Preferences are per-user notification opt-in flags. They are created
// with defaults on first read and only mutated by the owning user.
type Preferences struct {
	UserID         string    `json:"user_id"`
	NewProducts    bool      `json:"new_products"`
	OrderUpdates   bool      `json:"order_updates"`
	SellerMessages bool      `json:"seller_messages"`
	PriceDrops     bool      `json:"price_drops"`
	Marketing      bool      `json:"marketing"`
	EmailEnabled   bool      `json:"email_enabled"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultPreferences returns the flags assigned to a user on first load
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:         userID,
		NewProducts:    true,
		OrderUpdates:   true,
		SellerMessages: true,
		PriceDrops:     true,
		Marketing:      false,
		EmailEnabled:   true,
		UpdatedAt:      time.Now(),
	}
}

// Allows reports whether the preference flags permit a notification of
// the given type
func (p Preferences) Allows(notificationType string) bool {
	switch notificationType {
	case TypeNewProduct:
		return p.NewProducts
	case TypeOrderUpdate:
		return p.OrderUpdates
	case TypeSellerMessage:
		return p.SellerMessages
	case TypePriceDrop:
		return p.PriceDrops
	case TypeMarketing:
		return p.Marketing
	default:
		// Unknown types are delivered; the filter only suppresses
		// categories the user explicitly controls
		return true
	}
}

// SendRequest represents a request to dispatch a notification to a user
// or to every subscribed user
type SendRequest struct {
	UserID    string         `json:"user_id,omitempty"`
	Broadcast bool           `json:"broadcast,omitempty"`
	Type      string         `json:"type,omitempty"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	URL       string         `json:"url,omitempty"`
	Tag       string         `json:"tag,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// SendResponse summarizes a dispatch attempt
type SendResponse struct {
	Success   bool `json:"success"`
	Delivered int  `json:"delivered"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
}

// History represents a notification that was sent
type History struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	SubscriptionID string         `json:"subscription_id"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Type           string         `json:"type"`
	Tag            string         `json:"tag"`
	Data           map[string]any `json:"data"`
	SentAt         time.Time      `json:"sent_at"`
	Delivered      bool           `json:"delivered"`
	ErrorMessage   *string        `json:"error_message"`
}

// HistoryResponse represents the response for the notification history endpoint
type HistoryResponse struct {
	Notifications []History `json:"notifications"`
	Total         int       `json:"total"`
	HasMore       bool      `json:"has_more"`
}
