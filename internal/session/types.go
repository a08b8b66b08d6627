// Package session implements the authoritative game-session engine: the
// registry of live sessions, the lazy clock engine, the move-commit
// pipeline, undo/redo history replay and the public-state projection.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/hexel-dev/chess-arena/internal/rules"
)

// State is the lifecycle state of a session.
type State string

const (
	StateWaiting  State = "waiting"
	StateActive   State = "active"
	StateFinished State = "finished"
)

// Termination reasons recorded in Status.Reason.
const (
	ReasonCheckmate            = "checkmate"
	ReasonStalemate            = "stalemate"
	ReasonTimeout              = "timeout"
	ReasonThreefoldRepetition  = "threefold_repetition"
	ReasonInsufficientMaterial = "insufficient_material"
	ReasonDraw                 = "draw"
)

// MoveRecord is one committed move: the replayable coordinates plus the
// SAN label captured at commit time for display.
type MoveRecord struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san,omitempty"`
}

func (m MoveRecord) rulesMove() rules.Move {
	return rules.Move{From: m.From, To: m.To, Promotion: m.Promotion}
}

// PlayerSlot is one color seat. Present is transient connectivity state
// and is not persisted.
type PlayerSlot struct {
	ID      string `json:"participant_id"`
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

// Seated reports whether a participant currently holds the seat.
func (p PlayerSlot) Seated() bool { return p.ID != "" && p.Present }

// Occupied reports whether the seat has an owner, connected or not.
func (p PlayerSlot) Occupied() bool { return p.ID != "" }

// Clock is the stored clock block. Remaining values are only exact at
// commit points; effective values are derived on read.
type Clock struct {
	InitialMs        int64       `json:"initial_ms"`
	IncrementMs      int64       `json:"increment_ms"`
	WhiteRemainingMs int64       `json:"white_remaining_ms"`
	BlackRemainingMs int64       `json:"black_remaining_ms"`
	ActiveColor      rules.Color `json:"active_color,omitempty"`
	Running          bool        `json:"running"`
	LastTickAt       *time.Time  `json:"last_tick_at,omitempty"`
}

// Status is the termination block.
type Status struct {
	State  State       `json:"state"`
	Winner rules.Color `json:"winner,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// Session is one game session. All mutation happens under mu, held by the
// registry for the full duration of each operation.
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	// InitialPosition is the position token play starts from; the move
	// list is always replayed against it, never against cached state.
	InitialPosition string
	Moves           []MoveRecord
	Cursor          int

	White      PlayerSlot
	Black      PlayerSlot
	Spectators map[string]string

	Clock  Clock
	Status Status

	// FEN and InCheck cache the position at the cursor; refreshed on every
	// mutation that moves the cursor.
	FEN     string
	InCheck bool
}

func (s *Session) slot(c rules.Color) *PlayerSlot {
	if c == rules.White {
		return &s.White
	}
	return &s.Black
}

// colorOf resolves a participant id to its seat.
func (s *Session) colorOf(participantID string) (rules.Color, bool) {
	switch participantID {
	case "":
		return "", false
	case s.White.ID:
		return rules.White, true
	case s.Black.ID:
		return rules.Black, true
	}
	return "", false
}

// turn is the side to move at the cursor, read from the cached FEN.
func (s *Session) turn() rules.Color {
	return turnFromFEN(s.FEN)
}

func turnFromFEN(fen string) rules.Color {
	fields := strings.Fields(fen)
	if len(fields) >= 2 && fields[1] == "b" {
		return rules.Black
	}
	return rules.White
}

// clone returns a deep copy safe to use outside the session lock.
func (s *Session) clone() *Session {
	c := &Session{
		ID:              s.ID,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		InitialPosition: s.InitialPosition,
		Moves:           append([]MoveRecord(nil), s.Moves...),
		Cursor:          s.Cursor,
		White:           s.White,
		Black:           s.Black,
		Spectators:      make(map[string]string, len(s.Spectators)),
		Clock:           s.Clock,
		Status:          s.Status,
		FEN:             s.FEN,
		InCheck:         s.InCheck,
	}
	for id, name := range s.Spectators {
		c.Spectators[id] = name
	}
	if s.Clock.LastTickAt != nil {
		t := *s.Clock.LastTickAt
		c.Clock.LastTickAt = &t
	}
	return c
}
