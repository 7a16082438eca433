package handlers

import (
	"context"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

var _ primary.AdminCommandHandler = (*VersionHandler)(nil)

type VersionHandler struct{}

// HandleCommand implements the AdminCommandHandler interface
func (h *VersionHandler) HandleCommand(ctx context.Context, args []string) (string, error) {
	return "OK " + defs.ServerVersion + "\n", nil
}
