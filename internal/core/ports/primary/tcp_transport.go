package primary

import (
	"context"

	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

// PacketSender queues a packet for delivery to one peer. Implementations
// must not block on network I/O.
type PacketSender interface {
	Send(p *defs.Packet)
}

// AdminCommandHandler answers one line of the text administrative protocol
type AdminCommandHandler interface {
	HandleCommand(ctx context.Context, args []string) (string, error)
}
