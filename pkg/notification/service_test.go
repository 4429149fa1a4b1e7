package notification

import (
	"os"
	"testing"
	"time"

	"github.com/hs2504785/greenspace-push/pkg/config"
)

type fakeSender struct {
	sent []Subscription
	fail error
}

func (f *fakeSender) Send(sub Subscription, payload []byte, urgency string) error {
	f.sent = append(f.sent, sub)
	return f.fail
}

func newTestService(t *testing.T, sender Sender) *Service {
	t.Helper()
	return NewServiceWith(NewMemoryStorage(), sender, nil, config.DefaultConfig().Defaults)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	service := newTestService(t, nil)

	sub, err := service.Subscribe("farmer1", "https://fcm.googleapis.com/test", map[string]string{
		"p256dh": "test_p256dh",
		"auth":   "test_auth",
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if sub.UserID != "farmer1" {
		t.Errorf("Expected UserID farmer1, got %s", sub.UserID)
	}
	if !sub.Active {
		t.Error("Expected subscription to be active")
	}

	subscriptions, err := service.GetSubscriptions("farmer1")
	if err != nil {
		t.Fatalf("GetSubscriptions failed: %v", err)
	}
	if len(subscriptions) != 1 {
		t.Errorf("Expected 1 subscription, got %d", len(subscriptions))
	}

	if err := service.Unsubscribe("farmer1", "https://fcm.googleapis.com/test"); err != nil {
		t.Errorf("Unsubscribe failed: %v", err)
	}

	subscriptions, err = service.GetSubscriptions("farmer1")
	if err != nil {
		t.Fatalf("GetSubscriptions failed: %v", err)
	}
	if len(subscriptions) != 0 {
		t.Errorf("Expected 0 subscriptions after unsubscribe, got %d", len(subscriptions))
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	service := newTestService(t, nil)

	if err := service.Unsubscribe("farmer1", "https://fcm.googleapis.com/missing"); err != nil {
		t.Errorf("Expected unsubscribe of missing endpoint to succeed, got %v", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	service := newTestService(t, nil)

	if _, err := service.Subscribe("farmer1", "", map[string]string{"p256dh": "a", "auth": "b"}, nil); err == nil {
		t.Error("Expected error for missing endpoint")
	}
	if _, err := service.Subscribe("farmer1", "https://push.example/ep", map[string]string{"p256dh": "a"}, nil); err == nil {
		t.Error("Expected error for missing auth key")
	}
}

func TestResubscribeReplacesRecord(t *testing.T) {
	service := newTestService(t, nil)

	first, err := service.Subscribe("farmer1", "https://push.example/ep1", map[string]string{
		"p256dh": "key1", "auth": "auth1",
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Unsubscribe then subscribe a new endpoint: only the new endpoint
	// must remain.
	if err := service.Unsubscribe("farmer1", "https://push.example/ep1"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	second, err := service.Subscribe("farmer1", "https://push.example/ep2", map[string]string{
		"p256dh": "key2", "auth": "auth2",
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	subscriptions, err := service.GetSubscriptions("farmer1")
	if err != nil {
		t.Fatalf("GetSubscriptions failed: %v", err)
	}
	if len(subscriptions) != 1 {
		t.Fatalf("Expected exactly 1 active subscription, got %d", len(subscriptions))
	}
	if subscriptions[0].Endpoint != "https://push.example/ep2" {
		t.Errorf("Expected new endpoint to be active, got %s", subscriptions[0].Endpoint)
	}
	if first.ID == second.ID {
		t.Error("Expected a new subscription record for the new endpoint")
	}

	// Subscribing the same endpoint again updates in place, no duplicate
	third, err := service.Subscribe("farmer1", "https://push.example/ep2", map[string]string{
		"p256dh": "key3", "auth": "auth3",
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if third.ID != second.ID {
		t.Errorf("Expected re-subscription to keep id %s, got %s", second.ID, third.ID)
	}

	subscriptions, _ = service.GetSubscriptions("farmer1")
	if len(subscriptions) != 1 {
		t.Errorf("Expected 1 subscription after re-subscribe, got %d", len(subscriptions))
	}
}

func TestRotateSubscription(t *testing.T) {
	service := newTestService(t, nil)

	if _, err := service.Subscribe("farmer1", "https://push.example/old", map[string]string{
		"p256dh": "key1", "auth": "auth1",
	}, nil); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	sub, err := service.RotateSubscription("farmer1", "https://push.example/old", "https://push.example/new", map[string]string{
		"p256dh": "key2", "auth": "auth2",
	})
	if err != nil {
		t.Fatalf("RotateSubscription failed: %v", err)
	}
	if sub.Endpoint != "https://push.example/new" {
		t.Errorf("Expected rotated endpoint, got %s", sub.Endpoint)
	}

	subscriptions, _ := service.GetSubscriptions("farmer1")
	if len(subscriptions) != 1 {
		t.Errorf("Expected 1 active subscription after rotation, got %d", len(subscriptions))
	}
}

func TestSendWithoutWebPush(t *testing.T) {
	service := newTestService(t, nil)

	if _, err := service.Send(SendRequest{UserID: "farmer1", Title: "hi"}); err != ErrWebPushNotConfigured {
		t.Errorf("Expected ErrWebPushNotConfigured, got %v", err)
	}
}

func TestSendHonorsPreferences(t *testing.T) {
	sender := &fakeSender{}
	service := newTestService(t, sender)

	if _, err := service.Subscribe("farmer1", "https://push.example/ep", map[string]string{
		"p256dh": "key", "auth": "auth",
	}, nil); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Marketing is off by default
	resp, err := service.Send(SendRequest{UserID: "farmer1", Type: TypeMarketing, Title: "Sale!"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.Skipped != 1 || resp.Delivered != 0 {
		t.Errorf("Expected marketing send to be skipped, got %+v", resp)
	}
	if len(sender.sent) != 0 {
		t.Errorf("Expected no dispatch, got %d", len(sender.sent))
	}

	// New products is on by default
	resp, err = service.Send(SendRequest{UserID: "farmer1", Type: TypeNewProduct, Title: "New Tomatoes!"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.Delivered != 1 {
		t.Errorf("Expected 1 delivery, got %+v", resp)
	}
}

func TestSendDeactivatesGoneEndpoint(t *testing.T) {
	sender := &fakeSender{fail: ErrSubscriptionGone}
	service := newTestService(t, sender)

	if _, err := service.Subscribe("farmer1", "https://push.example/stale", map[string]string{
		"p256dh": "key", "auth": "auth",
	}, nil); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if _, err := service.Send(SendRequest{UserID: "farmer1", Type: TypeNewProduct, Title: "x"}); err == nil {
		t.Error("Expected send to report failure")
	}

	subscriptions, _ := service.GetSubscriptions("farmer1")
	if len(subscriptions) != 0 {
		t.Errorf("Expected gone subscription to be deactivated, got %d active", len(subscriptions))
	}
}

func TestGetHistory(t *testing.T) {
	storage := NewMemoryStorage()
	service := NewServiceWith(storage, nil, nil, config.DefaultConfig().Defaults)
	userID := "farmer1"

	entries := []History{
		{UserID: userID, Title: "First", Type: TypeNewProduct, Tag: "tag1", SentAt: time.Now().Add(-2 * time.Hour), Delivered: true},
		{UserID: userID, Title: "Second", Type: TypeOrderUpdate, Tag: "tag2", SentAt: time.Now().Add(-1 * time.Hour), Delivered: false},
	}
	for _, entry := range entries {
		if err := storage.AddHistory(userID, entry); err != nil {
			t.Fatalf("AddHistory failed: %v", err)
		}
	}

	response, err := service.GetHistory(userID, 10, 0, nil)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if response.Total != 2 {
		t.Errorf("Expected total 2, got %d", response.Total)
	}
	if response.Notifications[0].Title != "Second" {
		t.Errorf("Expected newest first, got %s", response.Notifications[0].Title)
	}

	response, err = service.GetHistory(userID, 10, 0, map[string]string{"type": TypeNewProduct})
	if err != nil {
		t.Fatalf("GetHistory with filter failed: %v", err)
	}
	if response.Total != 1 {
		t.Errorf("Expected total 1 with type filter, got %d", response.Total)
	}

	response, err = service.GetHistory(userID, 1, 0, nil)
	if err != nil {
		t.Fatalf("GetHistory with limit failed: %v", err)
	}
	if len(response.Notifications) != 1 || !response.HasMore {
		t.Errorf("Expected 1 notification and HasMore, got %d, %v", len(response.Notifications), response.HasMore)
	}
}

func TestRotateAllHistory(t *testing.T) {
	storage := NewMemoryStorage()
	service := NewServiceWith(storage, nil, nil, config.DefaultConfig().Defaults)

	for i := 0; i < 5; i++ {
		if err := storage.AddHistory("farmer1", History{
			UserID: "farmer1",
			Title:  "entry",
			SentAt: time.Now().Add(time.Duration(-i) * time.Minute),
		}); err != nil {
			t.Fatalf("AddHistory failed: %v", err)
		}
	}

	service.RotateAllHistory(3)

	response, err := service.GetHistory("farmer1", 10, 0, nil)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if response.Total != 3 {
		t.Errorf("Expected 3 entries after rotation, got %d", response.Total)
	}
}

func TestJSONStorageRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "push_storage_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	storage := NewJSONStorage(tmpDir)

	sub, err := storage.AddSubscription("farmer1", Subscription{
		Endpoint: "https://push.example/ep",
		Keys:     map[string]string{"p256dh": "k", "auth": "a"},
	})
	if err != nil {
		t.Fatalf("AddSubscription failed: %v", err)
	}
	if sub.ID == "" {
		t.Error("Expected generated subscription ID")
	}

	// Reload from disk through a fresh storage instance
	reloaded := NewJSONStorage(tmpDir)
	subscriptions, err := reloaded.GetSubscriptions("farmer1")
	if err != nil {
		t.Fatalf("GetSubscriptions failed: %v", err)
	}
	if len(subscriptions) != 1 || subscriptions[0].Endpoint != "https://push.example/ep" {
		t.Errorf("Expected persisted subscription, got %+v", subscriptions)
	}

	prefs, err := reloaded.GetPreferences("farmer1")
	if err != nil {
		t.Fatalf("GetPreferences failed: %v", err)
	}
	if !prefs.NewProducts || prefs.Marketing {
		t.Errorf("Expected default preferences, got %+v", prefs)
	}

	prefs.Marketing = true
	if err := reloaded.UpdatePreferences("farmer1", prefs); err != nil {
		t.Fatalf("UpdatePreferences failed: %v", err)
	}
	prefs, _ = reloaded.GetPreferences("farmer1")
	if !prefs.Marketing {
		t.Error("Expected marketing preference to persist")
	}

	userIDs, err := reloaded.UserIDs()
	if err != nil {
		t.Fatalf("UserIDs failed: %v", err)
	}
	if len(userIDs) != 1 || userIDs[0] != "farmer1" {
		t.Errorf("Expected [farmer1], got %v", userIDs)
	}
}
