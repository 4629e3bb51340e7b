// Package management exposes the autonomy core's goal/agent lifecycle over
// plain HTTP (spec.md §6), grounded on the teacher's internal/web.Server:
// one net/http.ServeMux, one small Server struct holding handler
// dependencies, and the same signal-driven graceful shutdown.
package management

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aios/autonomy-core/internal/agentrouter"
	"github.com/aios/autonomy-core/internal/goalstore"
	"github.com/aios/autonomy-core/internal/logging"
	"github.com/aios/autonomy-core/internal/metrics"
)

var log = logging.For("management")

// goalPlanner is the narrow taskplanner.Planner slice Server needs: turning
// a freshly submitted goal into its initial task set, and resuming tasks an
// operator's message unblocks (spec.md §6 post_goal_message).
type goalPlanner interface {
	DecomposeGoal(goalID, description string) []*goalstore.Task
	ResumeTask(taskID string)
}

// Server is the HTTP front door for goal submission, agent registration,
// and operational visibility (health + Prometheus exposition).
type Server struct {
	mux       *http.ServeMux
	goals     *goalstore.Store
	planner   goalPlanner
	router    *agentrouter.Router
	gatherer  prometheus.Gatherer
	httpm     *metrics.HTTP
	startTime time.Time

	// lock is the autonomy loop's own read/write latch (spec.md §5: the
	// management surface is "serialized against the driver via the same
	// read/write discipline"). Handlers that only read take RLock; handlers
	// that mutate goal/task/agent state take Lock, the same way
	// Orchestrator.Tick does, so a submit or message post can never
	// interleave with a tick in flight.
	lock *sync.RWMutex
}

// NewServer wires a Server over the given stores. gatherer may be nil, in
// which case prometheus.DefaultGatherer is used for GET /metrics. lock may
// be nil, in which case the server gets a private lock of its own (tests
// that don't also run an Orchestrator against the same state).
func NewServer(goals *goalstore.Store, planner goalPlanner, router *agentrouter.Router, registerer prometheus.Registerer, lock *sync.RWMutex) *Server {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer, _ := registerer.(prometheus.Gatherer)
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if lock == nil {
		lock = &sync.RWMutex{}
	}
	s := &Server{
		mux:       http.NewServeMux(),
		goals:     goals,
		planner:   planner,
		router:    router,
		gatherer:  gatherer,
		httpm:     metrics.NewWithRegistry("management", registerer),
		startTime: time.Now(),
		lock:      lock,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	route := func(pattern, name string, h http.HandlerFunc) {
		s.mux.Handle(pattern, s.httpm.Instrument(name, h))
	}
	route("POST /goals", "submit_goal", s.writeLocked(s.handleSubmitGoal))
	route("GET /goals", "list_goals", s.readLocked(s.handleListGoals))
	route("GET /goals/{id}", "get_goal", s.readLocked(s.handleGetGoal))
	route("POST /goals/{id}/cancel", "cancel_goal", s.writeLocked(s.handleCancelGoal))
	route("POST /goals/{id}/messages", "post_message", s.writeLocked(s.handlePostMessage))
	route("PUT /goals/{id}/metadata", "set_goal_metadata", s.writeLocked(s.handleSetGoalMetadata))
	route("GET /goals/{id}/metadata", "get_goal_metadata", s.readLocked(s.handleGetGoalMetadata))
	route("POST /agents/register", "register_agent", s.writeLocked(s.handleRegisterAgent))
	route("DELETE /agents/{id}", "unregister_agent", s.writeLocked(s.handleUnregisterAgent))
	route("POST /agents/{id}/heartbeat", "agent_heartbeat", s.writeLocked(s.handleHeartbeat))
	route("GET /healthz", "healthz", s.readLocked(s.handleHealthz))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// writeLocked wraps a handler that mutates goal, task, or agent state so it
// takes the shared write latch for its whole duration, serializing it
// against Orchestrator.Tick and every other writer (spec.md §5).
func (s *Server) writeLocked(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		defer s.lock.Unlock()
		h(w, r)
	}
}

// readLocked wraps a read-only handler so it takes the shared read lock,
// which blocks only while a write (a tick, or another handler) holds it.
func (s *Server) readLocked(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.RLock()
		defer s.lock.RUnlock()
		h(w, r)
	}
}

// Handler exposes the configured mux, e.g. for tests using httptest.Server.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens on the configured address with graceful shutdown on
// SIGINT/SIGTERM, mirroring the teacher's web.Server.Start.
func (s *Server) Start() error {
	addr := os.Getenv("MANAGEMENT_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8090"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("management server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("management server shutdown error")
		}
	}()

	log.Info().Str("addr", addr).Msg("management server starting")
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		log.Info().Msg("management server stopped")
		return nil
	}
	return err
}
