package session

import (
	"sort"
	"time"

	"github.com/hexel-dev/chess-arena/pkg/gamedto"
)

// projectLocked builds the redacted client view of the session. Remaining
// times are the effective values at now, clamped at zero; participant ids
// never appear.
func (s *Session) projectLocked(now time.Time) *gamedto.PublicState {
	moves := make([]gamedto.MoveView, len(s.Moves))
	for i, m := range s.Moves {
		moves[i] = gamedto.MoveView{
			From:      m.From,
			To:        m.To,
			Promotion: m.Promotion,
			SAN:       m.SAN,
			UCI:       m.rulesMove().UCI(),
		}
	}

	spectators := make([]string, 0, len(s.Spectators))
	for _, name := range s.Spectators {
		spectators = append(spectators, name)
	}
	sort.Strings(spectators)

	return &gamedto.PublicState{
		SessionID:       s.ID,
		InitialPosition: s.InitialPosition,
		FEN:             s.FEN,
		Moves:           moves,
		Cursor:          s.Cursor,
		Turn:            string(s.turn()),
		InCheck:         s.InCheck,
		Status: gamedto.StatusView{
			State:  string(s.Status.State),
			Winner: string(s.Status.Winner),
			Reason: s.Status.Reason,
		},
		White:      gamedto.PlayerView{Name: s.White.Name, Seated: s.White.Occupied(), Present: s.White.Present},
		Black:      gamedto.PlayerView{Name: s.Black.Name, Seated: s.Black.Occupied(), Present: s.Black.Present},
		Spectators: spectators,
		Clock: gamedto.ClockView{
			InitialMs:        s.Clock.InitialMs,
			IncrementMs:      s.Clock.IncrementMs,
			WhiteRemainingMs: s.Clock.effectiveRemaining("w", now),
			BlackRemainingMs: s.Clock.effectiveRemaining("b", now),
			ActiveColor:      string(s.Clock.ActiveColor),
			Running:          s.Clock.Running,
		},
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
