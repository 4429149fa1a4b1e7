package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/hs2504785/greenspace-push/pkg/config"
)

// Sender dispatches an encoded payload to one subscription endpoint
type Sender interface {
	Send(sub Subscription, payload []byte, urgency string) error
}

// WebPushService sends web push notifications authenticated with VAPID
type WebPushService struct {
	vapidPublicKey    string
	vapidPrivateKey   string
	vapidContactEmail string
	ttl               int
}

// NewWebPushService creates a new web push service from the VAPID config
func NewWebPushService(cfg config.VAPIDConfig) (*WebPushService, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("VAPID configuration required: set vapid.public_key, vapid.private_key, and vapid.contact_email (or the matching environment variables)")
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 86400
	}

	return &WebPushService{
		vapidPublicKey:    cfg.PublicKey,
		vapidPrivateKey:   cfg.PrivateKey,
		vapidContactEmail: cfg.ContactEmail,
		ttl:               ttl,
	}, nil
}

// PublicKey returns the VAPID public key clients use to subscribe
func (s *WebPushService) PublicKey() string {
	return s.vapidPublicKey
}

// Send dispatches a payload to a subscription. A 404/410 response maps to
// ErrSubscriptionGone so the caller can invalidate the stored record.
func (s *WebPushService) Send(sub Subscription, payload []byte, urgency string) error {
	webpushSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys["p256dh"],
			Auth:   sub.Keys["auth"],
		},
	}

	options := &webpush.Options{
		Subscriber:      s.vapidContactEmail,
		VAPIDPublicKey:  s.vapidPublicKey,
		VAPIDPrivateKey: s.vapidPrivateKey,
		TTL:             s.ttl,
	}

	switch urgency {
	case "low":
		options.Urgency = webpush.UrgencyLow
	case "high":
		options.Urgency = webpush.UrgencyHigh
	default:
		options.Urgency = webpush.UrgencyNormal
	}

	resp, err := webpush.SendNotification(payload, webpushSub, options)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Warning: failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return fmt.Errorf("endpoint rejected with status %d: %w", resp.StatusCode, ErrSubscriptionGone)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}

	return nil
}

// EncodePayload builds the JSON wire payload delivered to the device.
// Shape: {title, body, icon, badge, tag, data:{url, ...}}.
func EncodePayload(title, body, icon, badge, tag, url string, data map[string]any) ([]byte, error) {
	if data == nil {
		data = make(map[string]any)
	}
	if url != "" {
		data["url"] = url
	}

	payload := map[string]any{
		"title": title,
		"body":  body,
		"icon":  icon,
		"badge": badge,
		"tag":   tag,
		"data":  data,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return payloadBytes, nil
}
