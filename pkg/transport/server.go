package transport

import (
	"encoding/json"
	"net/http"

	"github.com/cloudmesh/pipeline/pkg/logging"
	"github.com/cloudmesh/pipeline/pkg/types"
)

// Server is the receiving side of the wire protocol: it exposes POST
// /message (dispatched to a registered Handler by message type) and GET
// /health (always 200 once the server is up — liveness, not readiness).
type Server struct {
	mux      *http.ServeMux
	handlers map[types.MessageType]Handler
	logger   *logging.Logger
}

// NewServer constructs a Server with no handlers registered; call
// RegisterHandler for each message type this node accepts.
func NewServer(logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		mux:      http.NewServeMux(),
		handlers: make(map[types.MessageType]Handler),
		logger:   logger,
	}
	s.mux.HandleFunc("/message", s.handleMessage)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// RegisterHandler wires a Handler for one message type.
func (s *Server) RegisterHandler(t types.MessageType, h Handler) {
	s.handlers[t] = h
}

// Handler satisfies http.Handler so callers can mount this on any
// http.Server or use it directly with httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var msg types.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	handler, ok := s.handlers[msg.MessageType]
	if !ok {
		s.logger.Warn("no handler for message type", "message_type", msg.MessageType)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	result, err := handler(r.Context(), msg)
	if err != nil {
		s.logger.Error("message handler failed", "message_type", msg.MessageType, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if result != nil {
		json.NewEncoder(w).Encode(result)
	}
}
