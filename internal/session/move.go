package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/hexel-dev/chess-arena/internal/rules"
	"github.com/hexel-dev/chess-arena/pkg/gamedto"
)

// MakeMove runs the commit pipeline: preconditions in a fixed order, a
// clock commit with timeout short-circuit, validator delegation, redo-tail
// discard, history append, increment credit and termination evaluation.
func (r *Registry) MakeMove(sessionID, participantID string, mv MoveRecord) (*gamedto.PublicState, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if participantID == "" {
		return nil, errValidation("participant id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status.State != StateActive {
		return nil, errConflict("session is not active")
	}
	color, ok := s.colorOf(participantID)
	if !ok {
		return nil, errForbidden("only seated players may move")
	}
	if color != s.turn() {
		return nil, errConflict("not your turn")
	}

	now := r.now()
	s.Clock.commit(now)
	if s.Clock.expired(now) {
		// flag fell before the move arrived; the move is never applied
		r.finalizeTimeoutLocked(s, now)
		r.scheduleSave()
		return s.projectLocked(now), nil
	}

	pos, err := r.rebuildLocked(s)
	if err != nil {
		return nil, err
	}
	applied, err := r.validator.Apply(pos, mv.rulesMove())
	if err != nil {
		if errors.Is(err, rules.ErrIllegalMove) {
			return nil, errIllegalMove("illegal move %s", mv.rulesMove().UCI())
		}
		return nil, errInternal("apply move: %v", err)
	}

	// a new move overwrites any redo tail
	s.Moves = append(s.Moves[:s.Cursor], MoveRecord{
		From:      mv.From,
		To:        mv.To,
		Promotion: mv.Promotion,
		SAN:       applied.SAN,
	})
	s.Cursor = len(s.Moves)
	s.Clock.credit(color, s.Clock.IncrementMs)

	s.FEN = r.validator.FEN(pos)
	s.InCheck = r.validator.IsCheck(pos)
	s.UpdatedAt = now

	if r.validator.IsGameOver(pos) {
		s.Status = terminalStatus(r.validator, pos, color)
		s.Clock.stop()
		r.logger.Info("session_finish",
			zap.String("session_id", s.ID),
			zap.String("winner", string(s.Status.Winner)),
			zap.String("reason", s.Status.Reason),
		)
		r.finishedLocked(s, now)
	} else {
		s.Status = Status{State: StateActive}
		s.Clock.start(r.validator.TurnColor(pos), now)
	}

	r.logger.Debug("session_move",
		zap.String("session_id", s.ID),
		zap.String("uci", applied.UCI),
		zap.String("san", applied.SAN),
		zap.Int("cursor", s.Cursor),
	)
	r.scheduleSave()
	return s.projectLocked(now), nil
}

// terminalStatus maps the validator's termination predicates onto a final
// status. The mover wins on checkmate; every other terminal condition is
// drawn.
func terminalStatus(v rules.Validator, pos *rules.Position, mover rules.Color) Status {
	switch {
	case v.IsCheckmate(pos):
		return Status{State: StateFinished, Winner: mover, Reason: ReasonCheckmate}
	case v.IsStalemate(pos):
		return Status{State: StateFinished, Reason: ReasonStalemate}
	case v.IsThreefoldRepetition(pos):
		return Status{State: StateFinished, Reason: ReasonThreefoldRepetition}
	case v.IsInsufficientMaterial(pos):
		return Status{State: StateFinished, Reason: ReasonInsufficientMaterial}
	default:
		return Status{State: StateFinished, Reason: ReasonDraw}
	}
}

// rebuildLocked reconstructs the position at the cursor by replaying the
// committed prefix from the initial token. History is stored only as a
// move list, so replay is the single source of position truth.
func (r *Registry) rebuildLocked(s *Session) (*rules.Position, error) {
	pos, err := r.validator.Start(s.InitialPosition)
	if err != nil {
		return nil, errInternal("rebuild session %s: %v", s.ID, err)
	}
	for i := 0; i < s.Cursor; i++ {
		if _, err := r.validator.Apply(pos, s.Moves[i].rulesMove()); err != nil {
			return nil, errInternal("rebuild session %s: move %d (%s) rejected: %v",
				s.ID, i, s.Moves[i].rulesMove().UCI(), err)
		}
	}
	return pos, nil
}
