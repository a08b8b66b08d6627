package gateway

import (
	"net/http"

	"github.com/hexel-dev/chess-arena/internal/rules"
	"github.com/hexel-dev/chess-arena/internal/session"
	"github.com/hexel-dev/chess-arena/pkg/gamedto"
)

type createRequest struct {
	DisplayName     string `json:"display_name"`
	Color           string `json:"color,omitempty"`
	InitialMs       int64  `json:"initial_ms,omitempty"`
	IncrementMs     int64  `json:"increment_ms,omitempty"`
	InitialPosition string `json:"initial_position,omitempty"`
}

type joinRequest struct {
	ParticipantID string `json:"participant_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	Color         string `json:"color,omitempty"`
}

type participantRequest struct {
	ParticipantID string `json:"participant_id"`
}

type moveRequest struct {
	ParticipantID string `json:"participant_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Promotion     string `json:"promotion,omitempty"`
}

type listResponse struct {
	Sessions []*gamedto.PublicState `json:"sessions"`
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, listResponse{Sessions: s.registry.List()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, &session.Error{Kind: session.KindValidation, Message: "invalid request body"})
		return
	}
	grant, err := s.registry.Create(session.CreateParams{
		DisplayName:     req.DisplayName,
		Color:           rules.Color(req.Color),
		InitialMs:       req.InitialMs,
		IncrementMs:     req.IncrementMs,
		InitialPosition: req.InitialPosition,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, grant)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	state, err := s.registry.GetState(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, &session.Error{Kind: session.KindValidation, Message: "invalid request body"})
		return
	}
	grant, err := s.registry.Join(session.JoinParams{
		SessionID:     r.PathValue("id"),
		ParticipantID: req.ParticipantID,
		DisplayName:   req.DisplayName,
		Color:         rules.Color(req.Color),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Broadcast(grant.SessionID, grant.State)
	s.writeJSON(w, http.StatusOK, grant)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, &session.Error{Kind: session.KindValidation, Message: "invalid request body"})
		return
	}
	state, err := s.registry.Leave(r.PathValue("id"), req.ParticipantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Broadcast(state.SessionID, state)
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, &session.Error{Kind: session.KindValidation, Message: "invalid request body"})
		return
	}
	state, err := s.registry.MakeMove(r.PathValue("id"), req.ParticipantID, session.MoveRecord{
		From:      req.From,
		To:        req.To,
		Promotion: req.Promotion,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Broadcast(state.SessionID, state)
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.handleSeek(w, r, s.registry.Undo)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.handleSeek(w, r, s.registry.Redo)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.persister == nil {
		http.Error(w, "persistence disabled", http.StatusNotImplemented)
		return
	}
	if err := s.persister.Save(r.Context()); err != nil {
		s.writeError(w, &session.Error{Kind: session.KindInternal, Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.persister == nil {
		http.Error(w, "persistence disabled", http.StatusNotImplemented)
		return
	}
	restored, err := s.persister.Load(r.Context())
	if err != nil {
		s.writeError(w, &session.Error{Kind: session.KindInternal, Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"restored": restored})
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request, op func(string, string) (*gamedto.PublicState, error)) {
	var req participantRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, &session.Error{Kind: session.KindValidation, Message: "invalid request body"})
		return
	}
	state, err := op(r.PathValue("id"), req.ParticipantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Broadcast(state.SessionID, state)
	s.writeJSON(w, http.StatusOK, state)
}
