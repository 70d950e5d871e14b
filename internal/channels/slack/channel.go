// Package slack is a thin chat-transport adapter over slack-go's Socket
// Mode client: message events are relayed into InboundMessage and Send
// calls into PostMessage. Canvas, attachments, and slash commands are
// vendor-SDK glue outside the core's scope.
package slack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// Channel adapts a socketmode.Client to the channels.Channel contract.
type Channel struct {
	client       *slack.Client
	socketClient *socketmode.Client
	cancel       context.CancelFunc
	botUserID    string
	logger       *slog.Logger
}

// New creates a Slack channel from a bot token (xoxb-) and an app-level
// token (xapp-) for Socket Mode.
func New(botToken, appToken string, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	client := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	return &Channel{
		client:       client,
		socketClient: socketmode.New(client),
		logger:       logger.With("component", "channels.slack"),
	}
}

func (c *Channel) Name() string { return "slack" }

// Start authenticates, then runs the Socket Mode connection and its event
// pump on their own goroutines.
func (c *Channel) Start(ctx context.Context, inbound chan<- models.InboundMessage) error {
	authResp, err := c.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	c.botUserID = authResp.UserID

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.pumpEvents(runCtx, inbound)
	go func() {
		if err := c.socketClient.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			c.logger.Error("socket mode connection failed", "error", err)
		}
	}()

	c.logger.Info("slack channel started", "bot_user_id", c.botUserID)
	return nil
}

func (c *Channel) pumpEvents(ctx context.Context, inbound chan<- models.InboundMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socketClient.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			c.socketClient.Ack(*evt.Request)
			c.handleAPIEvent(ctx, apiEvent, inbound)
		}
	}
}

func (c *Channel) handleAPIEvent(ctx context.Context, event slackevents.EventsAPIEvent, inbound chan<- models.InboundMessage) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	msgEvent, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// Ignore our own messages and non-user subtypes (edits, joins, bots).
	if msgEvent.User == "" || msgEvent.User == c.botUserID || msgEvent.SubType != "" {
		return
	}
	msg := models.InboundMessage{
		Channel: c.Name(),
		ChatID:  msgEvent.Channel,
		Content: msgEvent.Text,
	}
	select {
	case <-ctx.Done():
	case inbound <- msg:
	}
}

// Send posts content to the Slack conversation named by out.ChatID.
func (c *Channel) Send(ctx context.Context, out models.OutboundMessage) error {
	_, _, err := c.client.PostMessageContext(ctx, out.ChatID, slack.MsgOptionText(out.Content, false))
	if err != nil {
		return fmt.Errorf("slack: send to %s: %w", out.ChatID, err)
	}
	return nil
}

// Stop ends the Socket Mode connection.
func (c *Channel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}
