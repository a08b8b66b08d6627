package session

import (
	"go.uber.org/zap"

	"github.com/hexel-dev/chess-arena/pkg/gamedto"
)

// Undo steps the cursor back one move and rebuilds the position by
// replaying the shorter prefix. The undone move stays in the list as a
// redo tail until a new move overwrites it.
func (r *Registry) Undo(sessionID, participantID string) (*gamedto.PublicState, error) {
	return r.seek(sessionID, participantID, -1)
}

// Redo re-applies the next move from the redo tail.
func (r *Registry) Redo(sessionID, participantID string) (*gamedto.PublicState, error) {
	return r.seek(sessionID, participantID, +1)
}

func (r *Registry) seek(sessionID, participantID string, delta int) (*gamedto.PublicState, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if participantID == "" {
		return nil, errValidation("participant id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// replay while live-timed would race concurrent observers
	if s.Clock.Running {
		return nil, errConflict("history replay is not allowed while the clock is running")
	}
	if _, ok := s.colorOf(participantID); !ok {
		return nil, errForbidden("only seated players may replay history")
	}
	if delta < 0 && s.Cursor <= 0 {
		return nil, errConflict("nothing to undo")
	}
	if delta > 0 && s.Cursor >= len(s.Moves) {
		return nil, errConflict("nothing to redo")
	}

	s.Cursor += delta
	pos, err := r.rebuildLocked(s)
	if err != nil {
		s.Cursor -= delta
		return nil, err
	}

	now := r.now()
	s.FEN = r.validator.FEN(pos)
	s.InCheck = r.validator.IsCheck(pos)
	// replay always reopens the session, even when the rebuilt position is
	// itself terminal; the next move or re-seat settles it
	s.Status = Status{State: StateWaiting}
	s.UpdatedAt = now

	r.logger.Debug("session_seek",
		zap.String("session_id", s.ID),
		zap.Int("cursor", s.Cursor),
		zap.Int("moves", len(s.Moves)),
	)
	r.scheduleSave()
	return s.projectLocked(now), nil
}
