package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestMessageGetsResponse(t *testing.T) {
	controller := NewController(nil)

	reply := controller.HandleMessage(context.Background(), ControlMessage{
		Type:    MsgTestMessage,
		Message: "hello",
	})

	require.NotNil(t, reply)
	assert.Equal(t, MsgTestResponse, reply.Type)
	assert.Equal(t, "hello", reply.Message)
	assert.False(t, reply.Timestamp.IsZero())
}

func TestTestMessageDefaultsToPong(t *testing.T) {
	controller := NewController(nil)

	reply := controller.HandleMessage(context.Background(), ControlMessage{Type: MsgTestMessage})
	require.NotNil(t, reply)
	assert.Equal(t, "pong", reply.Message)
}

func TestSkipWaitingTriggersActivation(t *testing.T) {
	activated := false
	controller := NewController(func(ctx context.Context) error {
		activated = true
		return nil
	})

	reply := controller.HandleMessage(context.Background(), ControlMessage{Type: MsgSkipWaiting})

	assert.Nil(t, reply)
	assert.True(t, activated)
}

func TestUnknownMessageIgnored(t *testing.T) {
	controller := NewController(nil)

	reply := controller.HandleMessage(context.Background(), ControlMessage{Type: "NOT_A_THING"})
	assert.Nil(t, reply)
}
