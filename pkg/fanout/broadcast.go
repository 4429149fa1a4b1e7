package fanout

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Broadcaster is a named, same-origin publish/subscribe channel that
// reaches tabs independently of the direct client registry. It is the
// fallback path when no client is attached.
type Broadcaster interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context) (<-chan Message, func())
}

// ChannelBroadcaster is an in-process Broadcaster for single-instance
// deployments and tests
type ChannelBroadcaster struct {
	name string
	mu   sync.Mutex
	subs map[int]chan Message
	next int
}

// NewChannelBroadcaster creates an in-process broadcast channel
func NewChannelBroadcaster(name string) *ChannelBroadcaster {
	return &ChannelBroadcaster{
		name: name,
		subs: make(map[int]chan Message),
	}
}

// Publish delivers the message to every subscriber without blocking; a
// subscriber with a full buffer misses the message, which is acceptable
// for a best-effort UX signal
func (b *ChannelBroadcaster) Publish(ctx context.Context, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			log.Printf("[BROADCAST] Subscriber buffer full on channel %s, dropping message", b.name)
		}
	}
	return nil
}

// Subscribe attaches a listener; the returned func detaches it
func (b *ChannelBroadcaster) Subscribe(ctx context.Context) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Message, 16)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// RedisBroadcaster is a Broadcaster backed by Redis pub/sub, reaching
// clients attached to other gateway instances
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster creates a Redis-backed broadcast channel
func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{
		client:  client,
		channel: channel,
	}
}

// Publish sends the message to the Redis channel
func (b *RedisBroadcaster) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Subscribe listens on the Redis channel until ctx is done or the
// returned cancel func is called
func (b *RedisBroadcaster) Subscribe(ctx context.Context) (<-chan Message, func()) {
	sub := b.client.Subscribe(ctx, b.channel)
	out := make(chan Message, 16)

	go func() {
		defer close(out)
		for redisMsg := range sub.Channel() {
			var msg Message
			if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
				log.Printf("[BROADCAST] Dropping malformed message on %s: %v", b.channel, err)
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		if err := sub.Close(); err != nil {
			log.Printf("[BROADCAST] Failed to close subscription on %s: %v", b.channel, err)
		}
	}
	return out, cancel
}
