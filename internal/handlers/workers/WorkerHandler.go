package workers

import (
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/services/broker"
	"gitlab.com/gearbroker.net/internal/core/services/worker"
	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/handlers"
)

type ApiHandler struct {
	Broker        broker.IBrokerService
	WorkerService worker.IWorkerSnapshotService
	logger        primary.Logger
}

func NewHandler(b broker.IBrokerService, workerService worker.IWorkerSnapshotService, logger primary.Logger) *ApiHandler {
	return &ApiHandler{
		Broker:        b,
		WorkerService: workerService,
		logger:        logger,
	}
}

func (api *ApiHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/status", api.GetStatus).Methods("GET")
	r.HandleFunc("/api/workers", api.GetWorkers).Methods("GET")
	r.HandleFunc("/api/workers/snapshot", api.GetSnapshot).Methods("GET")
}

// GetStatus reports queue and worker counts per function
func (api *ApiHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	handlers.ResponseWithJson(w, http.StatusOK, api.Broker.Status())
}

// GetWorkers lists live worker connections, optionally filtered by ?function=
func (api *ApiHandler) GetWorkers(w http.ResponseWriter, r *http.Request) {
	function := r.URL.Query().Get("function")

	workers := make([]*domain.WorkerInfo, 0)
	for _, info := range api.Broker.Workers() {
		if function == "" || advertises(info, function) {
			workers = append(workers, info)
		}
	}

	handlers.ResponseWithJson(w, http.StatusOK, workers)
}

// GetSnapshot lists the last stored worker snapshots
func (api *ApiHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	if api.WorkerService == nil {
		handlers.ResponseError(w, "Worker snapshots are disabled", http.StatusNotFound)
		return
	}

	var workers []*domain.WorkerInfo
	var err error
	if function := r.URL.Query().Get("function"); function != "" {
		workers, err = api.WorkerService.GetWorkersByFunction(r.Context(), function)
	} else {
		workers, err = api.WorkerService.GetAllWorkers(r.Context())
	}

	if err != nil {
		api.logger.Error("Failed to get worker snapshots", "error", err)
		handlers.ResponseError(w, "Failed to get workers", http.StatusInternalServerError)
		return
	}

	handlers.ResponseWithJson(w, http.StatusOK, workers)
}

func advertises(info *domain.WorkerInfo, function string) bool {
	for _, f := range info.Functions {
		if f == function {
			return true
		}
	}
	return false
}
