// Package archive persists finished games to PostgreSQL for long-term
// record keeping, with a PGN rendering of each game.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/hexel-dev/chess-arena/pkg/gamedto"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts the final state of a finished session. Replays of
// the same session id overwrite the earlier row.
func (r *Repository) SaveResult(ctx context.Context, state *gamedto.PublicState) error {
	if r == nil || r.db == nil || state == nil {
		return nil
	}

	pgnResult := mapResultToPGN(state.Status.Winner, state.Status.State == "finished")
	pgn := buildPGN(state, pgnResult)

	san := make([]string, 0, state.Cursor)
	uci := make([]string, 0, state.Cursor)
	for i := 0; i < state.Cursor && i < len(state.Moves); i++ {
		san = append(san, state.Moves[i].SAN)
		uci = append(uci, state.Moves[i].UCI)
	}
	movesSANRaw, _ := json.Marshal(san)
	movesUCIRaw, _ := json.Marshal(uci)

	duration := state.UpdatedAt.Sub(state.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO finished_games (
	    session_id, white_name, black_name, time_control,
	    winner, reason, moves_uci, moves_san, pgn,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
	  ) ON CONFLICT (session_id) DO UPDATE SET
	    white_name=EXCLUDED.white_name,
	    black_name=EXCLUDED.black_name,
	    time_control=EXCLUDED.time_control,
	    winner=EXCLUDED.winner,
	    reason=EXCLUDED.reason,
	    moves_uci=EXCLUDED.moves_uci,
	    moves_san=EXCLUDED.moves_san,
	    pgn=EXCLUDED.pgn,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		state.SessionID,
		state.White.Name, state.Black.Name,
		timeControl(state.Clock),
		state.Status.Winner, state.Status.Reason,
		string(movesUCIRaw), string(movesSANRaw), pgn,
		state.CreatedAt, state.UpdatedAt, duration,
	)
	return err
}

// timeControl renders the clock settings in PGN seconds+increment form.
func timeControl(c gamedto.ClockView) string {
	if c.InitialMs <= 0 {
		return ""
	}
	if c.IncrementMs > 0 {
		return fmt.Sprintf("%d+%d", c.InitialMs/1000, c.IncrementMs/1000)
	}
	return fmt.Sprintf("%d", c.InitialMs/1000)
}

func mapResultToPGN(winner string, finished bool) string {
	switch winner {
	case "w":
		return "1-0"
	case "b":
		return "0-1"
	}
	if finished {
		return "1/2-1/2"
	}
	return "*"
}

func buildPGN(state *gamedto.PublicState, pgnResult string) string {
	if state == nil {
		return ""
	}
	var b strings.Builder
	date := state.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Arena\"]\n")
	b.WriteString("[Site \"chess-arena\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(state.White.Name)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(state.Black.Name)))
	if tc := timeControl(state.Clock); tc != "" {
		b.WriteString(fmt.Sprintf("[TimeControl \"%s\"]\n", tc))
	}
	if strings.TrimSpace(state.Status.Reason) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(state.Status.Reason)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < state.Cursor && i < len(state.Moves); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(state.Moves[i].SAN)))
		if i+1 < state.Cursor && i+1 < len(state.Moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(state.Moves[i+1].SAN))
		}
		b.WriteString(" ")
	}
	if pgnResult != "" {
		b.WriteString(pgnResult)
	}
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
