// Package channels defines the uniform chat-transport contract the daemon
// supervisor wires to the agent orchestrator. Vendor SDK wire formats are
// an external collaborator per the core's scope; each adapter here is a
// thin translation layer between its vendor's events/send calls and the
// neutral InboundMessage/OutboundMessage shape.
package channels

import (
	"context"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// Channel is one chat transport (a messenger bot, a local CLI, ...).
type Channel interface {
	// Name identifies the channel, used as the "channel" half of a
	// session ID and of InboundMessage/OutboundMessage.
	Name() string

	// Start begins receiving messages, pushing each onto inbound. Start
	// must return once the adapter is listening; delivery continues on
	// its own goroutine(s) until ctx is cancelled.
	Start(ctx context.Context, inbound chan<- models.InboundMessage) error

	// Send delivers an outbound message to the transport.
	Send(ctx context.Context, out models.OutboundMessage) error

	// Stop releases the adapter's resources. Safe to call after a failed
	// or never-called Start.
	Stop(ctx context.Context) error
}
