// Package snapshot implements the durable persistence adapter: the
// snapshot record shape, atomic file and redis backends, restore-by-replay
// and the debounced autosaver.
package snapshot

import (
	"time"

	"github.com/hexel-dev/chess-arena/internal/rules"
	"github.com/hexel-dev/chess-arena/internal/session"
)

// SessionSnapshot is the durable form of one session. Transient
// wall-clock state (presence, running flag, tick anchor) is stripped:
// none of it survives a restart.
type SessionSnapshot struct {
	ID              string               `json:"id"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	InitialPosition string               `json:"initial_position"`
	Moves           []session.MoveRecord `json:"moves"`
	Cursor          int                  `json:"cursor"`
	White           PlayerSnapshot       `json:"white"`
	Black           PlayerSnapshot       `json:"black"`
	Spectators      map[string]string    `json:"spectators,omitempty"`
	Clock           ClockSnapshot        `json:"clock"`
	Status          StatusSnapshot       `json:"status"`
}

type PlayerSnapshot struct {
	ID   string `json:"participant_id,omitempty"`
	Name string `json:"name,omitempty"`
}

type ClockSnapshot struct {
	InitialMs        int64  `json:"initial_ms"`
	IncrementMs      int64  `json:"increment_ms"`
	WhiteRemainingMs int64  `json:"white_remaining_ms"`
	BlackRemainingMs int64  `json:"black_remaining_ms"`
	ActiveColor      string `json:"active_color,omitempty"`
}

type StatusSnapshot struct {
	State  string `json:"state"`
	Winner string `json:"winner,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Record is the single logical document the durable store holds.
type Record struct {
	SavedAt  time.Time         `json:"saved_at"`
	Sessions []SessionSnapshot `json:"sessions"`
}

// FromSession flattens a session copy into its durable form.
func FromSession(s *session.Session) SessionSnapshot {
	spectators := make(map[string]string, len(s.Spectators))
	for id, name := range s.Spectators {
		spectators[id] = name
	}
	return SessionSnapshot{
		ID:              s.ID,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		InitialPosition: s.InitialPosition,
		Moves:           append([]session.MoveRecord(nil), s.Moves...),
		Cursor:          s.Cursor,
		White:           PlayerSnapshot{ID: s.White.ID, Name: s.White.Name},
		Black:           PlayerSnapshot{ID: s.Black.ID, Name: s.Black.Name},
		Spectators:      spectators,
		Clock: ClockSnapshot{
			InitialMs:        s.Clock.InitialMs,
			IncrementMs:      s.Clock.IncrementMs,
			WhiteRemainingMs: s.Clock.WhiteRemainingMs,
			BlackRemainingMs: s.Clock.BlackRemainingMs,
			ActiveColor:      string(s.Clock.ActiveColor),
		},
		Status: StatusSnapshot{
			State:  string(s.Status.State),
			Winner: string(s.Status.Winner),
			Reason: s.Status.Reason,
		},
	}
}

// Restore rebuilds a session from its snapshot. The position and the
// termination state are re-derived by replaying the committed move prefix
// through the validator; the stored status is only consulted for
// clock-based endings the position cannot reveal.
func Restore(snap SessionSnapshot, validator rules.Validator) (*session.Session, error) {
	cursor := snap.Cursor
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(snap.Moves) {
		cursor = len(snap.Moves)
	}

	pos, err := validator.Start(snap.InitialPosition)
	if err != nil {
		return nil, err
	}
	for i := 0; i < cursor; i++ {
		mv := snap.Moves[i]
		if _, err := validator.Apply(pos, rules.Move{From: mv.From, To: mv.To, Promotion: mv.Promotion}); err != nil {
			return nil, err
		}
	}

	spectators := make(map[string]string, len(snap.Spectators))
	for id, name := range snap.Spectators {
		spectators[id] = name
	}

	s := &session.Session{
		ID:              snap.ID,
		CreatedAt:       snap.CreatedAt,
		UpdatedAt:       snap.UpdatedAt,
		InitialPosition: snap.InitialPosition,
		Moves:           append([]session.MoveRecord(nil), snap.Moves...),
		Cursor:          cursor,
		White:           session.PlayerSlot{ID: snap.White.ID, Name: snap.White.Name},
		Black:           session.PlayerSlot{ID: snap.Black.ID, Name: snap.Black.Name},
		Spectators:      spectators,
		Clock: session.Clock{
			InitialMs:        snap.Clock.InitialMs,
			IncrementMs:      snap.Clock.IncrementMs,
			WhiteRemainingMs: snap.Clock.WhiteRemainingMs,
			BlackRemainingMs: snap.Clock.BlackRemainingMs,
			ActiveColor:      rules.Color(snap.Clock.ActiveColor),
		},
		FEN:     validator.FEN(pos),
		InCheck: validator.IsCheck(pos),
	}
	s.Status = restoredStatus(snap, validator, pos)
	return s, nil
}

func restoredStatus(snap SessionSnapshot, v rules.Validator, pos *rules.Position) session.Status {
	if v.IsGameOver(pos) {
		mated := v.TurnColor(pos)
		switch {
		case v.IsCheckmate(pos):
			return session.Status{State: session.StateFinished, Winner: mated.Opponent(), Reason: session.ReasonCheckmate}
		case v.IsStalemate(pos):
			return session.Status{State: session.StateFinished, Reason: session.ReasonStalemate}
		case v.IsThreefoldRepetition(pos):
			return session.Status{State: session.StateFinished, Reason: session.ReasonThreefoldRepetition}
		case v.IsInsufficientMaterial(pos):
			return session.Status{State: session.StateFinished, Reason: session.ReasonInsufficientMaterial}
		default:
			return session.Status{State: session.StateFinished, Reason: session.ReasonDraw}
		}
	}
	// timeout is the one ending the position cannot reveal
	if snap.Status.State == string(session.StateFinished) && snap.Status.Reason == session.ReasonTimeout {
		return session.Status{
			State:  session.StateFinished,
			Winner: rules.Color(snap.Status.Winner),
			Reason: session.ReasonTimeout,
		}
	}
	return session.Status{State: session.StateWaiting}
}
