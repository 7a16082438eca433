package broker

import (
	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

// IBrokerService is the job broker used by the transports
type IBrokerService interface {
	// Connect registers a new peer session. Outbound packets for it are
	// handed to sender.
	Connect(remoteAddr string, sender primary.PacketSender) *Connection

	// Handle processes one inbound packet as a single atomic unit of work
	Handle(conn *Connection, p *defs.Packet)

	// Disconnect tears down a session and releases its jobs
	Disconnect(conn *Connection)

	// Status aggregates queued, running and worker counts per function
	Status() []*domain.FunctionStatus

	// Workers lists every live connection's worker side
	Workers() []*domain.WorkerInfo

	// Job looks up a live or recently finished job
	Job(jobID string) (*domain.JobInfo, bool)

	// Jobs lists the live jobs in submission order
	Jobs() []*domain.JobInfo
}
