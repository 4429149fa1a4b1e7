package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	id       string
	url      string
	received []Message
	fail     error
}

func (c *stubClient) ID() string  { return c.id }
func (c *stubClient) URL() string { return c.url }
func (c *stubClient) Send(msg Message) error {
	if c.fail != nil {
		return c.fail
	}
	c.received = append(c.received, msg)
	return nil
}

func newNotification(tag string) Message {
	return Message{
		Type:         TypeNewNotification,
		UserID:       "farmer1",
		Notification: &NotificationSummary{Title: "New Tomatoes!", Body: "Fresh stock", Tag: tag},
	}
}

func TestDeliverToAllClients(t *testing.T) {
	registry := NewRegistry()
	broadcaster := NewChannelBroadcaster("notification-updates")
	notifier := NewNotifier(registry, broadcaster)

	a := &stubClient{id: "tab-a", url: "/"}
	b := &stubClient{id: "tab-b", url: "/orders"}
	registry.Register("farmer1", a, true)
	registry.Register("farmer1", b, false) // uncontrolled tabs still receive
	registry.Register("other", &stubClient{id: "tab-c"}, true)

	delivered := notifier.Deliver(context.Background(), "farmer1", newNotification("t1"))

	assert.Equal(t, 2, delivered)
	require.Len(t, a.received, 1)
	require.Len(t, b.received, 1)
	assert.Equal(t, TypeNewNotification, a.received[0].Type)
	assert.Equal(t, "t1", a.received[0].Notification.Tag)
}

func TestDeliverSkipsFailedClient(t *testing.T) {
	registry := NewRegistry()
	notifier := NewNotifier(registry, NewChannelBroadcaster("notification-updates"))

	failing := &stubClient{id: "tab-a", fail: errors.New("tab navigated away")}
	healthy := &stubClient{id: "tab-b"}
	registry.Register("farmer1", failing, true)
	registry.Register("farmer1", healthy, true)

	delivered := notifier.Deliver(context.Background(), "farmer1", newNotification("t1"))

	assert.Equal(t, 1, delivered)
	assert.Len(t, healthy.received, 1)
}

func TestDeliverFallsBackToBroadcast(t *testing.T) {
	registry := NewRegistry()
	broadcaster := NewChannelBroadcaster("notification-updates")
	notifier := NewNotifier(registry, broadcaster)

	updates, cancel := broadcaster.Subscribe(context.Background())
	defer cancel()

	delivered := notifier.Deliver(context.Background(), "farmer1", newNotification("t1"))
	assert.Zero(t, delivered)

	// Exactly one broadcast message per event
	msg := <-updates
	assert.Equal(t, TypeNewNotification, msg.Type)
	assert.Equal(t, "t1", msg.Notification.Tag)
	select {
	case extra := <-updates:
		t.Fatalf("Expected a single broadcast message, got extra %+v", extra)
	default:
	}
}

func TestBroadcastNotUsedWhenClientsAttached(t *testing.T) {
	registry := NewRegistry()
	broadcaster := NewChannelBroadcaster("notification-updates")
	notifier := NewNotifier(registry, broadcaster)

	updates, cancel := broadcaster.Subscribe(context.Background())
	defer cancel()

	registry.Register("farmer1", &stubClient{id: "tab-a"}, true)
	notifier.Deliver(context.Background(), "farmer1", newNotification("t1"))

	select {
	case msg := <-updates:
		t.Fatalf("Expected no broadcast when clients are attached, got %+v", msg)
	default:
	}
}

func TestRegistryMatchControlled(t *testing.T) {
	registry := NewRegistry()
	registry.Register("farmer1", &stubClient{id: "tab-a"}, true)
	registry.Register("farmer1", &stubClient{id: "tab-b"}, false)

	assert.Len(t, registry.Match("farmer1", true), 2)
	assert.Len(t, registry.Match("farmer1", false), 1)

	registry.ClaimAll()
	assert.Len(t, registry.Match("farmer1", false), 2)
}

func TestRegistryMatchURL(t *testing.T) {
	registry := NewRegistry()
	orders := &stubClient{id: "tab-a", url: "/orders"}
	registry.Register("farmer1", orders, true)
	registry.Register("farmer1", &stubClient{id: "tab-b", url: "/"}, true)

	found := registry.MatchURL("farmer1", "/orders")
	require.NotNil(t, found)
	assert.Equal(t, "tab-a", found.ID())

	assert.Nil(t, registry.MatchURL("farmer1", "/vegetables/42"))
	assert.Nil(t, registry.MatchURL("other", "/orders"))
}

func TestRegistryUnregister(t *testing.T) {
	registry := NewRegistry()
	registry.Register("farmer1", &stubClient{id: "tab-a"}, true)
	assert.Equal(t, 1, registry.Len())

	registry.Unregister("tab-a")
	assert.Zero(t, registry.Len())
	assert.Empty(t, registry.Match("farmer1", true))
}

func TestChannelBroadcasterMultipleSubscribers(t *testing.T) {
	broadcaster := NewChannelBroadcaster("notification-updates")

	first, cancelFirst := broadcaster.Subscribe(context.Background())
	second, cancelSecond := broadcaster.Subscribe(context.Background())
	defer cancelSecond()

	require.NoError(t, broadcaster.Publish(context.Background(), newNotification("t1")))
	assert.Equal(t, "t1", (<-first).Notification.Tag)
	assert.Equal(t, "t1", (<-second).Notification.Tag)

	// Cancel is idempotent and detaches the subscriber
	cancelFirst()
	cancelFirst()
	require.NoError(t, broadcaster.Publish(context.Background(), newNotification("t2")))
	assert.Equal(t, "t2", (<-second).Notification.Tag)
}
