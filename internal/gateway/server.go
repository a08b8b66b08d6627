// Package gateway exposes the session engine over HTTP: a JSON API for
// session operations, websocket streams for live state, and the
// websocket matchmaking queue.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hexel-dev/chess-arena/internal/matchmake"
	"github.com/hexel-dev/chess-arena/internal/session"
)

// Persister exposes explicit snapshot operations on the admin surface.
type Persister interface {
	Save(ctx context.Context) error
	Load(ctx context.Context) (int, error)
}

type Server struct {
	registry  *session.Registry
	queue     *matchmake.Queue
	hub       *Hub
	persister Persister
	logger    *zap.Logger
	mux       *http.ServeMux
}

func NewServer(registry *session.Registry, queue *matchmake.Queue, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry: registry,
		queue:    queue,
		hub:      newHub(logger),
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// AttachPersister enables the explicit save/load admin endpoints.
func (s *Server) AttachPersister(p Persister) { s.persister = p }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/sessions", s.handleList)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreate)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGet)
	s.mux.HandleFunc("POST /api/sessions/{id}/join", s.handleJoin)
	s.mux.HandleFunc("POST /api/sessions/{id}/leave", s.handleLeave)
	s.mux.HandleFunc("POST /api/sessions/{id}/move", s.handleMove)
	s.mux.HandleFunc("POST /api/sessions/{id}/undo", s.handleUndo)
	s.mux.HandleFunc("POST /api/sessions/{id}/redo", s.handleRedo)
	s.mux.HandleFunc("POST /api/admin/save", s.handleSave)
	s.mux.HandleFunc("POST /api/admin/load", s.handleLoad)
	s.mux.HandleFunc("GET /ws/sessions/{id}", s.handleSessionStream)
	s.mux.HandleFunc("GET /ws/queue", s.handleQueue)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response_encode_error", zap.Error(err))
	}
}

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := session.KindOf(err)
	var body errorBody
	body.Error.Kind = string(kind)
	body.Error.Message = err.Error()
	s.writeJSON(w, httpStatus(kind), body)
}

func httpStatus(kind session.Kind) int {
	switch kind {
	case session.KindNotFound:
		return http.StatusNotFound
	case session.KindValidation:
		return http.StatusBadRequest
	case session.KindIllegalMove:
		return http.StatusUnprocessableEntity
	case session.KindForbidden:
		return http.StatusForbidden
	case session.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
