package jobs

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/services/broker"
	"gitlab.com/gearbroker.net/internal/core/services/job"
	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/handlers"
	"gitlab.com/gearbroker.net/internal/static/errs"
)

const (
	SourceLive    = "live"
	SourceHistory = "history"
)

// JobResponse wraps a job with where it was found
type JobResponse struct {
	Source string      `json:"source"`
	Job    interface{} `json:"job"`
}

// JobHandler handles job API requests
type JobHandler struct {
	broker     broker.IBrokerService
	jobService job.IJobHistoryService
	logger     primary.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(b broker.IBrokerService, jobService job.IJobHistoryService, logger primary.Logger) *JobHandler {
	return &JobHandler{
		broker:     b,
		jobService: jobService,
		logger:     logger,
	}
}

// RegisterRoutes registers the API routes for JobHandler
func (h *JobHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/jobs", h.ListJobs).Methods("GET")
	router.HandleFunc("/api/jobs/{jobId}", h.GetJob).Methods("GET")
}

// ListJobs lists live jobs, or the recorded history with ?source=history
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("source") != SourceHistory {
		jobs := h.broker.Jobs()
		if jobs == nil {
			jobs = []*domain.JobInfo{}
		}
		handlers.ResponseWithJson(w, http.StatusOK, jobs)
		return
	}

	limit := handlers.QueryInt(r, "limit", 100)
	jobs, err := h.jobService.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list jobs", "error", err)
		handlers.ResponseError(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	handlers.ResponseWithJson(w, http.StatusOK, jobs)
}

// GetJob looks a job up in the broker first, then in the history
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	if info, ok := h.broker.Job(jobID); ok {
		handlers.ResponseWithJson(w, http.StatusOK, JobResponse{Source: SourceLive, Job: info})
		return
	}

	record, err := h.jobService.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, errs.ErrJobNotFound) {
			handlers.ResponseError(w, "Job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get job", "jobId", jobID, "error", err)
		handlers.ResponseError(w, "Failed to get job", http.StatusInternalServerError)
		return
	}

	handlers.ResponseWithJson(w, http.StatusOK, JobResponse{Source: SourceHistory, Job: record})
}
