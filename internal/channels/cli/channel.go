// Package cli implements the local, stdin/stdout chat transport: the
// primary channel for a single-operator daemon run interactively, and the
// easiest to exercise in tests.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// ChatID is the fixed chat identifier the CLI channel uses, since a local
// terminal session has exactly one conversation.
const ChatID = "local"

// Channel reads lines from in and writes replies to out.
type Channel struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

// New creates a CLI channel over in/out (os.Stdin/os.Stdout in production).
func New(in io.Reader, out io.Writer, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{in: in, out: out, logger: logger.With("component", "channels.cli")}
}

func (c *Channel) Name() string { return "cli" }

// Start launches a goroutine that reads one line at a time, pushing each
// non-empty line as an InboundMessage until ctx is cancelled or in is
// exhausted.
func (c *Channel) Start(ctx context.Context, inbound chan<- models.InboundMessage) error {
	scanner := bufio.NewScanner(c.in)
	go func() {
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case inbound <- models.InboundMessage{Channel: c.Name(), ChatID: ChatID, Content: line}:
			}
		}
	}()
	return nil
}

// Send writes the reply to out.
func (c *Channel) Send(ctx context.Context, out models.OutboundMessage) error {
	_, err := fmt.Fprintf(c.out, "%s\n", out.Content)
	return err
}

// Stop is a no-op: stdin/stdout have no adapter-owned resources to release.
func (c *Channel) Stop(ctx context.Context) error { return nil }
