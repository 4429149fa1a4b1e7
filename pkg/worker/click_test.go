package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hs2504785/greenspace-push/pkg/fanout"
)

type recordingOpener struct {
	opened []string
}

func (o *recordingOpener) Open(userID, url string) error {
	o.opened = append(o.opened, url)
	return nil
}

func newClickFixture(t *testing.T) (*ClickRouter, NotificationStore, *fanout.Registry, *recordingOpener) {
	t.Helper()
	store := NewMemoryNotificationStore()
	registry := fanout.NewRegistry()
	opener := &recordingOpener{}
	return NewClickRouter(store, registry, opener), store, registry, opener
}

func TestClickFocusesExistingTab(t *testing.T) {
	router, store, registry, opener := newClickFixture(t)

	require.NoError(t, store.Show("farmer1", Notification{Tag: "t1", Title: "Order shipped", URL: "/orders"}))
	orders := &tabClient{id: "tab-a", url: "/orders"}
	registry.Register("farmer1", orders, true)

	result := router.HandleClick("farmer1", "t1", "")

	assert.True(t, result.Closed)
	assert.Equal(t, "tab-a", result.FocusedID)
	assert.Empty(t, result.OpenedURL, "must not open an additional tab")
	assert.Empty(t, opener.opened)
	require.Len(t, orders.received, 1)
	assert.Equal(t, fanout.TypeFocus, orders.received[0].Type)
	assert.Empty(t, store.Get("farmer1", "t1"), "notification must be closed")
}

func TestClickOpensNewTab(t *testing.T) {
	router, store, registry, opener := newClickFixture(t)

	require.NoError(t, store.Show("farmer1", Notification{Tag: "t1", URL: "/vegetables/42"}))
	registry.Register("farmer1", &tabClient{id: "tab-a", url: "/"}, true)

	result := router.HandleClick("farmer1", "t1", "")

	assert.True(t, result.Closed)
	assert.Empty(t, result.FocusedID)
	assert.Equal(t, "/vegetables/42", result.OpenedURL)
	assert.Equal(t, []string{"/vegetables/42"}, opener.opened)
}

func TestViewActionRoutesLikeDefaultClick(t *testing.T) {
	router, store, registry, _ := newClickFixture(t)

	require.NoError(t, store.Show("farmer1", Notification{Tag: "t1", URL: "/orders"}))
	orders := &tabClient{id: "tab-a", url: "/orders"}
	registry.Register("farmer1", orders, true)

	result := router.HandleClick("farmer1", "t1", ActionView)
	assert.Equal(t, "tab-a", result.FocusedID)
}

func TestCloseActionOnlyCloses(t *testing.T) {
	router, store, registry, opener := newClickFixture(t)

	require.NoError(t, store.Show("farmer1", Notification{Tag: "t1", URL: "/orders"}))
	orders := &tabClient{id: "tab-a", url: "/orders"}
	registry.Register("farmer1", orders, true)

	result := router.HandleClick("farmer1", "t1", ActionClose)

	assert.True(t, result.Closed)
	assert.Empty(t, result.FocusedID)
	assert.Empty(t, result.OpenedURL)
	assert.Empty(t, opener.opened, "close must not navigate")
	assert.Empty(t, orders.received, "close must not focus")
	assert.Empty(t, store.Get("farmer1", "t1"))
}

func TestClickUnknownTagOpensDefaultURL(t *testing.T) {
	router, _, _, opener := newClickFixture(t)

	result := router.HandleClick("farmer1", "missing", "")

	assert.True(t, result.Closed)
	assert.Equal(t, "/", result.OpenedURL)
	assert.Equal(t, []string{"/"}, opener.opened)
}
