package broker

import (
	"math"
	"strconv"

	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

// NoTimeout marks a capability advertised without CAN_DO_TIMEOUT
const NoTimeout = -1

// maxTimeoutSeconds keeps the millisecond conversion from overflowing
const maxTimeoutSeconds = math.MaxInt / 1000

// workerRole tracks what a connection can run and whether it sleeps.
// Capability timeouts are recorded but never enforced.
type workerRole struct {
	conn         *Connection
	capabilities map[string]int
	names        []string // declaration order
	asleep       bool
	wakePending  bool
	assigned     map[string]*domain.Job
}

func newWorkerRole(conn *Connection) *workerRole {
	return &workerRole{
		conn:         conn,
		capabilities: make(map[string]int),
		assigned:     make(map[string]*domain.Job),
	}
}

func (r *workerRole) isAsleep() bool {
	return r.asleep
}

func (r *workerRole) capabilityNames() []string {
	return r.names
}

// canDo ignores the timeout, only presence counts
func (r *workerRole) canDo(job *domain.Job) bool {
	_, ok := r.capabilities[job.Function()]
	return ok
}

func (r *workerRole) addCapability(function string, timeoutMs int) {
	if _, ok := r.capabilities[function]; !ok {
		r.names = append(r.names, function)
	}
	r.capabilities[function] = timeoutMs
}

func (r *workerRole) removeCapability(function string) {
	if _, ok := r.capabilities[function]; !ok {
		return
	}
	delete(r.capabilities, function)
	for i, name := range r.names {
		if name == function {
			r.names = append(r.names[:i:i], r.names[i+1:]...)
			break
		}
	}
}

func (r *workerRole) resetAbilities() {
	r.capabilities = make(map[string]int)
	r.names = nil
}

// wakeUp marks the worker awake; the NOOP goes out once at the end of the turn
func (r *workerRole) wakeUp() {
	r.asleep = false
	if !r.wakePending {
		r.wakePending = true
		r.conn.broker.scheduleWake(r)
	}
}

func (r *workerRole) goToSleep() {
	r.asleep = true
	r.conn.broker.findJobForWorker(r)
}

func (r *workerRole) handleJob(job *domain.Job, wantUniqueID bool) {
	b := r.conn.broker
	now := b.now()
	job.WorkerID = r.conn.id
	job.AssignedAt = &now
	r.assigned[job.ID()] = job

	args := map[string]string{
		"job":      job.ID(),
		"function": job.Function(),
	}
	packetType := defs.JobAssign
	if wantUniqueID {
		packetType = defs.JobAssignUniq
		args["uniqueid"] = job.ID()
	}
	r.conn.sendResponse(packetType, args, job.Body())
	b.publish(domain.JobEventAssigned, job)
}

func (r *workerRole) handlePacket(p *defs.Packet) {
	b := r.conn.broker

	switch p.Type {
	case defs.WorkComplete, defs.WorkFail, defs.WorkException, defs.WorkWarning, defs.WorkData, defs.WorkStatus:
		r.handleResult(p)
	case defs.CanDo:
		r.addCapability(p.Arg("function"), NoTimeout)
	case defs.CanDoTimeout:
		seconds, err := strconv.Atoi(p.Arg("timeout"))
		if err != nil || seconds < 0 || seconds > maxTimeoutSeconds {
			b.logger.Warn("Invalid capability timeout", "connectionID", r.conn.id, "function", p.Arg("function"), "timeout", p.Arg("timeout"))
			r.addCapability(p.Arg("function"), NoTimeout)
			return
		}
		r.addCapability(p.Arg("function"), seconds*1000)
	case defs.CantDo:
		r.removeCapability(p.Arg("function"))
	case defs.ResetAbilities:
		r.resetAbilities()
	case defs.SetClientID:
		r.conn.clientID = p.Arg("id")
	case defs.PreSleep:
		r.goToSleep()
	case defs.GrabJob, defs.GrabJobUniq:
		if !b.assignJobForWorker(r, p.Type == defs.GrabJobUniq) {
			r.conn.sendResponse(defs.NoJob, nil, nil)
		}
	}
}

// handleResult relays a result for a job assigned to this worker. Results
// for unknown jobs or jobs held by another connection are dropped.
func (r *workerRole) handleResult(p *defs.Packet) {
	b := r.conn.broker
	jobID := p.Arg("job")
	job, ok := b.jobByID(jobID)
	if !ok {
		b.logger.Debug("Dropping result for unknown job", "connectionID", r.conn.id, "type", p.Type.String(), "jobID", jobID)
		return
	}
	if job.WorkerID != r.conn.id {
		b.logger.Warn("Dropping result for job not assigned to this worker", "connectionID", r.conn.id, "type", p.Type.String(), "jobID", jobID, "workerID", job.WorkerID)
		return
	}

	if p.Type == defs.WorkStatus {
		job.Numerator = p.Arg("numerator")
		job.Denominator = p.Arg("denominator")
	}
	r.forwardToClient(job, p)

	switch p.Type {
	case defs.WorkComplete:
		b.finishJob(jobID, domain.JobStatusCompleted)
	case defs.WorkFail:
		b.finishJob(jobID, domain.JobStatusFailed)
	}
}

// forwardToClient relays p to the job's client, dropped when it has departed
func (r *workerRole) forwardToClient(job *domain.Job, p *defs.Packet) {
	b := r.conn.broker
	client, ok := b.connection(job.ClientID())
	if !ok {
		b.logger.Debug("Dropping result for departed client", "jobID", job.ID(), "clientID", job.ClientID())
		return
	}
	client.sendResponse(p.Type, p.Args, p.Body)
}

// teardown fails the jobs this worker was running back to their clients
func (r *workerRole) teardown() {
	b := r.conn.broker
	for jobID, job := range r.assigned {
		if client, ok := b.connection(job.ClientID()); ok {
			client.sendResponse(defs.WorkFail, map[string]string{"job": jobID}, nil)
		}
		b.finishJob(jobID, domain.JobStatusFailed)
	}
	r.assigned = make(map[string]*domain.Job)
	r.resetAbilities()
	r.wakePending = false
}
