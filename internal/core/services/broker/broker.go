package broker

import (
	"sort"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/google/uuid"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/ports/secondary"
	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

var _ IBrokerService = &Broker{}

const defaultRecentJobs = 1024

// Broker owns every live connection and in-flight job. A single mutex
// serialises packet handling so each handler runs as one atomic turn;
// outbound packets are queued, never written while the lock is held.
type Broker struct {
	mu sync.Mutex

	connections []*Connection // accept order
	byID        map[string]*Connection
	jobs        map[string]*domain.Job
	finished    *lru.Cache
	wakeQueue   []*workerRole

	newID  func() string
	now    func() time.Time
	events secondary.EventPublisher
	logger primary.Logger
}

// Option configures a Broker
type Option func(*Broker)

// WithIDGenerator replaces the uuid based identifier generator
func WithIDGenerator(newID func() string) Option {
	return func(b *Broker) {
		b.newID = newID
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		b.now = now
	}
}

// WithEventPublisher sets the receiver of job lifecycle events
func WithEventPublisher(events secondary.EventPublisher) Option {
	return func(b *Broker) {
		b.events = events
	}
}

// WithRecentJobs bounds how many finished jobs stay resolvable by id
func WithRecentJobs(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.finished = lru.New(n)
		}
	}
}

// NewBroker creates an empty broker
func NewBroker(logger primary.Logger, options ...Option) *Broker {
	b := &Broker{
		byID:     make(map[string]*Connection),
		jobs:     make(map[string]*domain.Job),
		finished: lru.New(defaultRecentJobs),
		newID:    uuid.NewString,
		now:      time.Now,
		logger:   logger,
	}

	for _, option := range options {
		option(b)
	}

	return b
}

// Connect registers a new peer session
func (b *Broker) Connect(remoteAddr string, sender primary.PacketSender) *Connection {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn := newConnection(b, b.newID(), remoteAddr, sender, b.now())
	b.connections = append(b.connections, conn)
	b.byID[conn.id] = conn

	b.logger.Info("Connection established", "connectionID", conn.id, "remoteAddr", remoteAddr)
	return conn
}

// Handle processes one inbound packet and flushes any wake-ups it caused
func (b *Broker) Handle(conn *Connection, p *defs.Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if conn.closed {
		return
	}
	conn.handlePacket(p)
	b.flushWakes()
}

// Disconnect removes the connection. Its pending submissions are discarded
// and jobs assigned to its worker side are failed back to their clients.
func (b *Broker) Disconnect(conn *Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if conn.closed {
		return
	}
	conn.closed = true

	delete(b.byID, conn.id)
	for i, c := range b.connections {
		if c == conn {
			b.connections = append(b.connections[:i], b.connections[i+1:]...)
			break
		}
	}

	conn.teardown()
	b.flushWakes()

	b.logger.Info("Connection closed", "connectionID", conn.id)
}

func (b *Broker) connection(id string) (*Connection, bool) {
	conn, ok := b.byID[id]
	return conn, ok
}

func (b *Broker) registerJob(job *domain.Job) {
	b.jobs[job.ID()] = job
}

// unregisterJob is a no-op for unknown ids
func (b *Broker) unregisterJob(jobID string) {
	job, ok := b.jobs[jobID]
	if !ok {
		return
	}
	delete(b.jobs, jobID)

	if job.WorkerID != "" {
		if worker, ok := b.byID[job.WorkerID]; ok {
			delete(worker.worker.assigned, jobID)
		}
	}
}

func (b *Broker) jobByID(jobID string) (*domain.Job, bool) {
	job, ok := b.jobs[jobID]
	return job, ok
}

// finishJob unregisters a job and remembers its final status
func (b *Broker) finishJob(jobID string, status domain.JobStatus) {
	job, ok := b.jobByID(jobID)
	if !ok {
		return
	}
	b.unregisterJob(jobID)

	info := job.Info()
	now := b.now()
	info.Status = status
	info.FinishedAt = &now
	b.finished.Add(jobID, info)

	switch status {
	case domain.JobStatusCompleted:
		b.publish(domain.JobEventCompleted, job)
	case domain.JobStatusFailed:
		b.publish(domain.JobEventFailed, job)
	default:
		b.publish(domain.JobEventDiscarded, job)
	}
}

// findWorkerForJob wakes every sleeping worker able to run the job
func (b *Broker) findWorkerForJob(job *domain.Job) {
	for _, conn := range b.connections {
		if conn.worker.isAsleep() && conn.worker.canDo(job) {
			conn.worker.wakeUp()
		}
	}
}

// findJobForWorker wakes the worker if any client holds a pending job it can run
func (b *Broker) findJobForWorker(worker *workerRole) {
	for _, conn := range b.connections {
		if conn.client.hasPendingJobs() && conn.client.broadcastJobsToWorker(worker) {
			return
		}
	}
}

// assignJobForWorker hands at most one pending job to the worker. Clients
// are scanned in connection order.
func (b *Broker) assignJobForWorker(worker *workerRole, wantUniqueID bool) bool {
	for _, conn := range b.connections {
		if !conn.client.hasPendingJobs() {
			continue
		}
		assigned, err := conn.client.assignJobToWorker(worker, wantUniqueID)
		if err != nil {
			b.logger.Error("Failed to assign job", "connectionID", conn.id, "workerID", worker.conn.id, "error", err)
			return false
		}
		if assigned {
			return true
		}
	}
	return false
}

func (b *Broker) scheduleWake(worker *workerRole) {
	b.wakeQueue = append(b.wakeQueue, worker)
}

// flushWakes sends at most one NOOP per worker woken during this turn
func (b *Broker) flushWakes() {
	for i, worker := range b.wakeQueue {
		if worker.wakePending {
			worker.wakePending = false
			worker.conn.sendResponse(defs.Noop, nil, nil)
		}
		b.wakeQueue[i] = nil
	}
	b.wakeQueue = b.wakeQueue[:0]
}

func (b *Broker) publish(eventType domain.JobEventType, job *domain.Job) {
	if b.events == nil {
		return
	}
	b.events.Publish(domain.JobEvent{
		Type:     eventType,
		JobID:    job.ID(),
		Function: job.Function(),
		ClientID: job.ClientID(),
		WorkerID: job.WorkerID,
		BodySize: len(job.Body()),
		At:       b.now(),
	})
}

// Status aggregates the registry per function name
func (b *Broker) Status() []*domain.FunctionStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	byName := make(map[string]*domain.FunctionStatus)
	get := func(name string) *domain.FunctionStatus {
		s, ok := byName[name]
		if !ok {
			s = &domain.FunctionStatus{Name: name}
			byName[name] = s
		}
		return s
	}

	for _, job := range b.jobs {
		s := get(job.Function())
		s.Total++
		if job.WorkerID != "" {
			s.Running++
		}
	}
	for _, conn := range b.connections {
		for _, name := range conn.worker.capabilityNames() {
			get(name).AvailableWorkers++
		}
	}

	statuses := make([]*domain.FunctionStatus, 0, len(byName))
	for _, s := range byName {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// Workers lists every live connection in accept order
func (b *Broker) Workers() []*domain.WorkerInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	workers := make([]*domain.WorkerInfo, 0, len(b.connections))
	for _, conn := range b.connections {
		workers = append(workers, conn.workerInfo())
	}
	return workers
}

// Job looks up a live job, then the recently finished ones
func (b *Broker) Job(jobID string) (*domain.JobInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if job, ok := b.jobs[jobID]; ok {
		return job.Info(), true
	}
	if v, ok := b.finished.Get(jobID); ok {
		info := *v.(*domain.JobInfo)
		return &info, true
	}
	return nil, false
}

// Jobs lists live jobs, oldest first
func (b *Broker) Jobs() []*domain.JobInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	jobs := make([]*domain.JobInfo, 0, len(b.jobs))
	for _, job := range b.jobs {
		jobs = append(jobs, job.Info())
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs
}
