package handlers

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/services/broker"
)

var _ primary.AdminCommandHandler = (*WorkersHandler)(nil)

// WorkersHandler answers "workers" with one line per connection
type WorkersHandler struct {
	Broker broker.IBrokerService
}

// HandleCommand implements the AdminCommandHandler interface
func (h *WorkersHandler) HandleCommand(ctx context.Context, args []string) (string, error) {
	var sb strings.Builder
	for _, w := range h.Broker.Workers() {
		clientID := w.ClientID
		if clientID == "" {
			clientID = "-"
		}
		fmt.Fprintf(&sb, "%s %s %s :", w.ConnectionID, hostOf(w.RemoteAddr), clientID)
		for _, f := range w.Functions {
			sb.WriteString(" ")
			sb.WriteString(f)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(".\n")
	return sb.String(), nil
}

func hostOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return strings.Trim(addr[:i], "[]")
	}
	return addr
}
