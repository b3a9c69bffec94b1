package rpc

import (
	"encoding/json"
	"net/http"

	stateflow "github.com/goliatone/go-stateflow"
)

// DefaultExecutePath is where the server mounts the execution endpoint.
const DefaultExecutePath = "/rpc/execute"

// Logger is the minimal logging surface the server needs.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Server exposes a frozen registry's remote callbacks over HTTP. Both peers
// must register callbacks in the same order so ids line up; the server only
// needs bodies for the callbacks it is asked to run.
type Server struct {
	registry *stateflow.Registry
	logger   Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer builds an execution server over the registry.
func NewServer(registry *stateflow.Registry, opts ...ServerOption) *Server {
	s := &Server{
		registry: registry,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	return s
}

// Handler returns an http.Handler with the execute endpoint mounted at
// DefaultExecutePath.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(DefaultExecutePath, s.handleExecute)
	return mux
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeError(w, http.StatusMethodNotAllowed, &Error{Message: "method not allowed"})
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, &Error{Message: "malformed request body: " + err.Error()})
		return
	}

	args, err := s.registry.ExecutePlan(req.Args, req.Plan)
	if err != nil {
		s.logger.Error("remote execution failed for batch %s: %v", req.BatchID, err)
		s.writeError(w, HTTPStatusForError(err), errorEnvelope(err))
		return
	}
	s.logger.Info("executed %d callbacks for batch %s", len(req.Plan), req.BatchID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ExecuteResponse{Args: args})
}

func (s *Server) writeError(w http.ResponseWriter, status int, envelope *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ExecuteResponse{Error: envelope})
}
