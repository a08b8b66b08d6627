package gamedto

import "time"

// PublicState is the client-facing view of a session. It carries no
// participant identity tokens; those are returned privately at join time.
type PublicState struct {
	SessionID       string     `json:"session_id"`
	InitialPosition string     `json:"initial_position"`
	FEN             string     `json:"fen"`
	Moves           []MoveView `json:"moves"`
	Cursor          int        `json:"cursor"`
	Turn            string     `json:"turn"`
	InCheck         bool       `json:"in_check"`
	Status          StatusView `json:"status"`
	White           PlayerView `json:"white"`
	Black           PlayerView `json:"black"`
	Spectators      []string   `json:"spectators"`
	Clock           ClockView  `json:"clock"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// MoveView is one replayable move plus its SAN label.
type MoveView struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san,omitempty"`
	UCI       string `json:"uci,omitempty"`
}

type PlayerView struct {
	Name    string `json:"name"`
	Seated  bool   `json:"seated"`
	Present bool   `json:"present"`
}

type StatusView struct {
	State  string `json:"state"`
	Winner string `json:"winner,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ClockView carries effective remaining time, already clamped at zero.
type ClockView struct {
	InitialMs        int64  `json:"initial_ms"`
	IncrementMs      int64  `json:"increment_ms"`
	WhiteRemainingMs int64  `json:"white_remaining_ms"`
	BlackRemainingMs int64  `json:"black_remaining_ms"`
	ActiveColor      string `json:"active_color,omitempty"`
	Running          bool   `json:"running"`
}
