// Package message implements the "message" tool: it enqueues an
// OutboundMessage on the supervisor's outbound queue via a non-blocking
// try-send, surfacing "buffer full" and "channel closed" as distinct tool
// errors rather than blocking the turn.
package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattdef/miniclaw-sub000/internal/models"
	"github.com/mattdef/miniclaw-sub000/internal/outbound"
)

// Tool implements the "message" capability.
type Tool struct {
	queue *outbound.Queue
}

// New creates a message tool bound to queue.
func New(queue *outbound.Queue) *Tool {
	return &Tool{queue: queue}
}

func (t *Tool) Name() string { return "message" }

func (t *Tool) Description() string {
	return "Send a message to the operator on a given channel and chat."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"channel": map[string]any{"type": "string"},
			"chat_id": map[string]any{"type": "string"},
			"content": map[string]any{"type": "string"},
		},
		"required": []string{"channel", "chat_id", "content"},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (string, error) {
	channel, _ := args["channel"].(string)
	chatID, _ := args["chat_id"].(string)
	content, _ := args["content"].(string)
	if channel == "" || chatID == "" || content == "" {
		return "", fmt.Errorf("channel, chat_id, and content are all required")
	}

	err := t.queue.TrySend(models.OutboundMessage{Channel: channel, ChatID: chatID, Content: content})
	switch {
	case err == nil:
		return "queued", nil
	case errors.Is(err, outbound.ErrBufferFull):
		return "", fmt.Errorf("buffer full")
	case errors.Is(err, outbound.ErrClosed):
		return "", fmt.Errorf("channel closed")
	default:
		return "", err
	}
}
