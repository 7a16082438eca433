package broker

import (
	"time"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

type role int

const (
	roleNone role = iota
	roleCommon
	roleClient
	roleWorker
)

// roleFor is the static packet type to role table
func roleFor(t defs.PacketType) role {
	switch t {
	case defs.OptionReq, defs.EchoReq:
		return roleCommon
	case defs.SubmitJob, defs.GetStatus:
		return roleClient
	case defs.CanDo, defs.CanDoTimeout, defs.CantDo, defs.ResetAbilities, defs.SetClientID,
		defs.PreSleep, defs.GrabJob, defs.GrabJobUniq,
		defs.WorkComplete, defs.WorkFail, defs.WorkException, defs.WorkWarning, defs.WorkData, defs.WorkStatus:
		return roleWorker
	default:
		return roleNone
	}
}

// Connection is one peer session. Every peer may act as client and worker
// at the same time, so all three roles exist for its whole life.
type Connection struct {
	id          string
	remoteAddr  string
	clientID    string
	connectedAt time.Time
	closed      bool

	broker *Broker
	sender primary.PacketSender

	common *commonRole
	client *clientRole
	worker *workerRole
}

func newConnection(b *Broker, id, remoteAddr string, sender primary.PacketSender, connectedAt time.Time) *Connection {
	conn := &Connection{
		id:          id,
		remoteAddr:  remoteAddr,
		connectedAt: connectedAt,
		broker:      b,
		sender:      sender,
	}
	conn.common = &commonRole{conn: conn}
	conn.client = newClientRole(conn)
	conn.worker = newWorkerRole(conn)
	return conn
}

// ID returns the broker assigned connection identifier
func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

func (c *Connection) handlePacket(p *defs.Packet) {
	c.broker.logger.Info("RECV", "connectionID", c.id, "type", p.Type.String(), "args", p.Args)

	switch roleFor(p.Type) {
	case roleCommon:
		c.common.handlePacket(p)
	case roleClient:
		c.client.handlePacket(p)
	case roleWorker:
		c.worker.handlePacket(p)
	default:
		c.broker.logger.Error("Unhandled packet type", "connectionID", c.id, "type", p.Type.String())
	}
}

func (c *Connection) sendResponse(t defs.PacketType, args map[string]string, body []byte) {
	if c.closed {
		return
	}
	c.broker.logger.Debug("SEND", "connectionID", c.id, "type", t.String(), "args", args)
	c.sender.Send(defs.NewResponse(t, args, body))
}

func (c *Connection) teardown() {
	c.client.teardown()
	c.worker.teardown()
}

func (c *Connection) workerInfo() *domain.WorkerInfo {
	names := c.worker.capabilityNames()
	functions := make([]string, len(names))
	copy(functions, names)

	return &domain.WorkerInfo{
		ConnectionID: c.id,
		RemoteAddr:   c.remoteAddr,
		ClientID:     c.clientID,
		Functions:    functions,
		Asleep:       c.worker.isAsleep(),
		AssignedJobs: len(c.worker.assigned),
		ConnectedAt:  c.connectedAt,
	}
}

type commonRole struct {
	conn *Connection
}

func (r *commonRole) handlePacket(p *defs.Packet) {
	switch p.Type {
	case defs.OptionReq:
		r.conn.sendResponse(defs.OptionRes, map[string]string{"option": p.Arg("option")}, nil)
	case defs.EchoReq:
		r.conn.sendResponse(defs.EchoRes, nil, p.Body)
	}
}
