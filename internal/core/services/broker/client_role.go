package broker

import (
	"fmt"

	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/static/errs"
	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

// clientRole holds the jobs a connection submitted that no worker has
// pulled yet. pending and byFunction always hold the same jobs.
type clientRole struct {
	conn       *Connection
	pending    map[string]*domain.Job
	byFunction map[string][]*domain.Job
}

func newClientRole(conn *Connection) *clientRole {
	return &clientRole{
		conn:       conn,
		pending:    make(map[string]*domain.Job),
		byFunction: make(map[string][]*domain.Job),
	}
}

func (r *clientRole) hasPendingJobs() bool {
	return len(r.pending) > 0
}

func (r *clientRole) addPendingJob(job *domain.Job) {
	r.pending[job.ID()] = job
	r.byFunction[job.Function()] = append(r.byFunction[job.Function()], job)
}

// shiftPendingJobForFunction pops the oldest pending job for a function
func (r *clientRole) shiftPendingJobForFunction(function string) (*domain.Job, error) {
	queue, ok := r.byFunction[function]
	if !ok || len(queue) == 0 {
		return nil, fmt.Errorf("%w: no pending jobs for function %q", errs.ErrInvalidQueueState, function)
	}

	job := queue[0]
	queue[0] = nil
	queue = queue[1:]
	if len(queue) == 0 {
		delete(r.byFunction, function)
	} else {
		r.byFunction[function] = queue
	}
	delete(r.pending, job.ID())

	return job, nil
}

// broadcastJobsToWorker wakes the worker once if any capability has work
func (r *clientRole) broadcastJobsToWorker(worker *workerRole) bool {
	for _, function := range worker.capabilityNames() {
		if _, ok := r.byFunction[function]; ok {
			worker.wakeUp()
			return true
		}
	}
	return false
}

func (r *clientRole) assignJobToWorker(worker *workerRole, wantUniqueID bool) (bool, error) {
	for _, function := range worker.capabilityNames() {
		if _, ok := r.byFunction[function]; !ok {
			continue
		}
		job, err := r.shiftPendingJobForFunction(function)
		if err != nil {
			return false, err
		}
		worker.handleJob(job, wantUniqueID)
		return true, nil
	}
	return false, nil
}

func (r *clientRole) handlePacket(p *defs.Packet) {
	switch p.Type {
	case defs.SubmitJob:
		r.submitJob(p)
	case defs.GetStatus:
		r.getStatus(p)
	}
}

func (r *clientRole) submitJob(p *defs.Packet) {
	b := r.conn.broker
	job := domain.NewJob(b.newID(), p.Arg("function"), p.Body, r.conn.id, b.now())

	b.registerJob(job)
	r.addPendingJob(job)
	r.conn.sendResponse(defs.JobCreated, map[string]string{"job": job.ID()}, nil)
	b.publish(domain.JobEventCreated, job)

	b.findWorkerForJob(job)
}

func (r *clientRole) getStatus(p *defs.Packet) {
	jobID := p.Arg("job")
	args := map[string]string{
		"job":         jobID,
		"known":       "0",
		"running":     "0",
		"numerator":   "0",
		"denominator": "0",
	}
	if job, ok := r.conn.broker.jobByID(jobID); ok {
		args["known"] = "1"
		if job.WorkerID != "" {
			args["running"] = "1"
		}
		if job.Numerator != "" {
			args["numerator"] = job.Numerator
			args["denominator"] = job.Denominator
		}
	}
	r.conn.sendResponse(defs.StatusRes, args, nil)
}

// teardown discards every job this client still has queued
func (r *clientRole) teardown() {
	b := r.conn.broker
	for function, queue := range r.byFunction {
		for _, job := range queue {
			b.finishJob(job.ID(), domain.JobStatusDiscarded)
		}
		delete(r.byFunction, function)
	}
	r.pending = make(map[string]*domain.Job)
}
