package fanout

import (
	"context"
	"fmt"
	"log"
)

// FanOutError records a failed direct delivery to one client. It is
// logged per client and never aborts delivery to the remaining clients.
type FanOutError struct {
	ClientID string
	Err      error
}

func (e *FanOutError) Error() string {
	return fmt.Sprintf("fan-out to client %s failed: %v", e.ClientID, e.Err)
}

func (e *FanOutError) Unwrap() error {
	return e.Err
}

// Notifier fans one event out over two independent channels: direct
// messages to each registered client, and the named broadcast channel
// when no client is reachable
type Notifier struct {
	registry    *Registry
	broadcaster Broadcaster
}

// NewNotifier creates a fan-out notifier
func NewNotifier(registry *Registry, broadcaster Broadcaster) *Notifier {
	return &Notifier{
		registry:    registry,
		broadcaster: broadcaster,
	}
}

// Registry exposes the client registry for attach/detach and claiming
func (n *Notifier) Registry() *Registry {
	return n.registry
}

// Deliver sends the message to every client of the user, uncontrolled
// ones included. When zero clients are attached it publishes exactly one
// message on the broadcast channel instead. Per-client failures are
// logged and skipped.
func (n *Notifier) Deliver(ctx context.Context, userID string, msg Message) int {
	clients := n.registry.Match(userID, true)

	if len(clients) == 0 {
		if err := n.broadcaster.Publish(ctx, msg); err != nil {
			log.Printf("[FANOUT] Broadcast fallback failed for user %s: %v", userID, err)
			return 0
		}
		log.Printf("[FANOUT] No clients attached for user %s, published on broadcast channel", userID)
		return 0
	}

	delivered := 0
	for _, client := range clients {
		if err := client.Send(msg); err != nil {
			fanErr := &FanOutError{ClientID: client.ID(), Err: err}
			log.Printf("[FANOUT] %v", fanErr)
			continue
		}
		delivered++
	}
	return delivered
}
