package http

// this is entry point of the http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/services/broker"
	"gitlab.com/gearbroker.net/internal/core/services/job"
	"gitlab.com/gearbroker.net/internal/core/services/worker"
	"gitlab.com/gearbroker.net/internal/handlers"
	"gitlab.com/gearbroker.net/internal/handlers/events"
	"gitlab.com/gearbroker.net/internal/handlers/jobs"
	"gitlab.com/gearbroker.net/internal/handlers/workers"
	"gitlab.com/gearbroker.net/internal/websocket"
)

type ServiceProvider struct {
	broker        broker.IBrokerService
	workerService worker.IWorkerSnapshotService
	jobService    job.IJobHistoryService
	hub           *websocket.Hub
}

func NewServiceProvider(
	b broker.IBrokerService,
	workerService worker.IWorkerSnapshotService,
	jobService job.IJobHistoryService,
	hub *websocket.Hub,
) *ServiceProvider {
	return &ServiceProvider{
		broker:        b,
		workerService: workerService,
		jobService:    jobService,
		hub:           hub,
	}
}

type Server struct {
	router          *mux.Router
	Port            int
	ServiceName     string
	ServiceProvider ServiceProvider
	middleware      *handlers.MiddlewareProvider
	logger          primary.Logger
	srv             *http.Server
}

func NewServer(port int, serviceName string, serviceProvider ServiceProvider, middleware *handlers.MiddlewareProvider, logger primary.Logger) *Server {
	return &Server{
		Port:            port,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		middleware:      middleware,
		logger:          logger,
	}
}

func (s *Server) Init() error {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods("GET")

	api := r.NewRoute().Subrouter()
	if s.middleware.Enabled() {
		api.Use(s.middleware.JWTMiddleware)
	}

	workers.NewHandler(s.ServiceProvider.broker, s.ServiceProvider.workerService, s.logger).Register(api)
	jobs.NewJobHandler(s.ServiceProvider.broker, s.ServiceProvider.jobService, s.logger).RegisterRoutes(api)
	if s.ServiceProvider.hub != nil {
		events.NewHandler(s.ServiceProvider.hub, s.logger).RegisterRoutes(api)
	}

	s.router = r
	return nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	handlers.ResponseWithJson(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": s.ServiceName,
	})
}

// Start binds the port and serves in the background
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}

	go func() {
		s.logger.Info("Server listening", "addr", listener.Addr().String())
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down http server...")
	if s.ServiceProvider.hub != nil {
		s.ServiceProvider.hub.Close()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
