package message

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattdef/miniclaw-sub000/internal/outbound"
)

func TestSendQueues(t *testing.T) {
	q := outbound.NewQueue(4)
	tool := New(q)

	out, err := tool.Execute(context.Background(), map[string]any{
		"channel": "telegram", "chat_id": "42", "content": "ping",
	})
	require.NoError(t, err)
	assert.Equal(t, "queued", out)

	msg := <-q.Recv()
	assert.Equal(t, "telegram", msg.Channel)
	assert.Equal(t, "42", msg.ChatID)
	assert.Equal(t, "ping", msg.Content)
}

func TestBufferFullSurfaced(t *testing.T) {
	q := outbound.NewQueue(1)
	tool := New(q)
	args := map[string]any{"channel": "cli", "chat_id": "1", "content": "x"}

	_, err := tool.Execute(context.Background(), args)
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), args)
	require.Error(t, err)
	assert.Equal(t, "buffer full", err.Error())
}

func TestClosedQueueSurfaced(t *testing.T) {
	q := outbound.NewQueue(1)
	q.Close()
	tool := New(q)

	_, err := tool.Execute(context.Background(), map[string]any{"channel": "cli", "chat_id": "1", "content": "x"})
	require.Error(t, err)
	assert.Equal(t, "channel closed", err.Error())
}

func TestMissingFieldsRejected(t *testing.T) {
	tool := New(outbound.NewQueue(1))
	_, err := tool.Execute(context.Background(), map[string]any{"channel": "cli"})
	assert.Error(t, err)
}
