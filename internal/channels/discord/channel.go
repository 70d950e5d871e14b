// Package discord is a thin chat-transport adapter over discordgo: it
// relays MessageCreate events into InboundMessage and Send calls into
// ChannelMessageSend. Full adapter concerns (reconnect policy, rate
// limiting, reactions, embeds) are vendor-SDK glue out of the core's
// scope; this wraps only what the orchestrator needs.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// Channel adapts a discordgo.Session to the channels.Channel contract.
type Channel struct {
	session *discordgo.Session
	logger  *slog.Logger
}

// New creates a Discord channel authenticated with a bot token.
func New(token string, logger *slog.Logger) (*Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages
	return &Channel{session: session, logger: logger.With("component", "channels.discord")}, nil
}

func (c *Channel) Name() string { return "discord" }

// Start opens the gateway connection and registers a MessageCreate
// handler that forwards every non-bot message as an InboundMessage.
func (c *Channel) Start(ctx context.Context, inbound chan<- models.InboundMessage) error {
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		select {
		case <-ctx.Done():
		case inbound <- models.InboundMessage{Channel: c.Name(), ChatID: m.ChannelID, Content: m.Content}:
		}
	})
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	return nil
}

// Send posts content to the Discord channel named by out.ChatID.
func (c *Channel) Send(ctx context.Context, out models.OutboundMessage) error {
	_, err := c.session.ChannelMessageSend(out.ChatID, out.Content)
	return err
}

// Stop closes the gateway connection.
func (c *Channel) Stop(ctx context.Context) error {
	return c.session.Close()
}
