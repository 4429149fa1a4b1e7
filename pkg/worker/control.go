package worker

import (
	"context"
	"log"
	"time"
)

// Control message types exchanged with clients
const (
	MsgSkipWaiting  = "SKIP_WAITING"
	MsgTestMessage  = "TEST_MESSAGE"
	MsgTestResponse = "TEST_RESPONSE"
)

// ControlMessage is a client-to-coordinator control request
type ControlMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// ControlReply is the coordinator's response, when the message type
// warrants one
type ControlReply struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ActivateFunc runs activation work: stale cache cleanup and claiming
// attached clients
type ActivateFunc func(ctx context.Context) error

// Controller handles control messages from clients
type Controller struct {
	activate ActivateFunc
}

// NewController creates a control message handler
func NewController(activate ActivateFunc) *Controller {
	return &Controller{activate: activate}
}

// HandleMessage processes one control message. SKIP_WAITING triggers
// activation; TEST_MESSAGE is a health check answered with a
// TEST_RESPONSE. Unknown types are ignored with a nil reply.
func (c *Controller) HandleMessage(ctx context.Context, msg ControlMessage) *ControlReply {
	switch msg.Type {
	case MsgSkipWaiting:
		if c.activate != nil {
			if err := c.activate(ctx); err != nil {
				log.Printf("[WORKER] Activation failed: %v", err)
			}
		}
		return nil
	case MsgTestMessage:
		reply := "pong"
		if msg.Message != "" {
			reply = msg.Message
		}
		return &ControlReply{
			Type:      MsgTestResponse,
			Message:   reply,
			Timestamp: time.Now(),
		}
	default:
		log.Printf("[WORKER] Ignoring unknown control message type %q", msg.Type)
		return nil
	}
}
