// Package telegram is a thin chat-transport adapter over go-telegram/bot:
// long-polled updates are relayed into InboundMessage and Send calls into
// SendMessage. Webhook mode, media handling, and reconnect policy are
// vendor-SDK glue outside the core's scope.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// Channel adapts a *bot.Bot to the channels.Channel contract.
type Channel struct {
	bot    *bot.Bot
	cancel context.CancelFunc
	logger *slog.Logger

	mu      sync.RWMutex
	inbound chan<- models.InboundMessage
}

// New creates a Telegram channel authenticated with a bot token.
func New(token string, logger *slog.Logger) (*Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Channel{logger: logger.With("component", "channels.telegram")}

	b, err := bot.New(token, bot.WithDefaultHandler(c.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	c.bot = b
	return c, nil
}

func (c *Channel) Name() string { return "telegram" }

func (c *Channel) handleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	c.mu.RLock()
	inbound := c.inbound
	c.mu.RUnlock()
	if inbound == nil {
		return
	}
	msg := models.InboundMessage{
		Channel: c.Name(),
		ChatID:  fmt.Sprintf("%d", update.Message.Chat.ID),
		Content: update.Message.Text,
	}
	select {
	case <-ctx.Done():
	case inbound <- msg:
	}
}

// Start begins long polling on its own goroutine.
func (c *Channel) Start(ctx context.Context, inbound chan<- models.InboundMessage) error {
	c.mu.Lock()
	c.inbound = inbound
	c.mu.Unlock()

	pollCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.bot.Start(pollCtx)
	c.logger.Info("telegram channel started")
	return nil
}

// Send posts content to the Telegram chat named by out.ChatID.
func (c *Channel) Send(ctx context.Context, out models.OutboundMessage) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: out.ChatID,
		Text:   out.Content,
	})
	if err != nil {
		return fmt.Errorf("telegram: send to %s: %w", out.ChatID, err)
	}
	return nil
}

// Stop ends long polling.
func (c *Channel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}
