package handlers

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/services/broker"
)

// Implementation of admin command handlers
// Each handler answers one command of the Gearman text protocol

var _ primary.AdminCommandHandler = (*StatusHandler)(nil)

// StatusHandler answers "status" with one line per known function
type StatusHandler struct {
	Broker broker.IBrokerService
}

// HandleCommand implements the AdminCommandHandler interface
func (h *StatusHandler) HandleCommand(ctx context.Context, args []string) (string, error) {
	var sb strings.Builder
	for _, s := range h.Broker.Status() {
		fmt.Fprintf(&sb, "%s\t%d\t%d\t%d\n", s.Name, s.Total, s.Running, s.AvailableWorkers)
	}
	sb.WriteString(".\n")
	return sb.String(), nil
}
