// Package rules adapts the chess move-generation library behind a fixed
// capability surface. The session engine only ever sees this interface; it
// stays agnostic to how legality and game-ending conditions are computed.
package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartposToken is the position token for the standard initial position.
const StartposToken = "startpos"

var ErrIllegalMove = errors.New("illegal move")

// Color is a board side as the engine encodes it.
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

// Opponent returns the other side, or "" for an unknown color.
func (c Color) Opponent() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return ""
	}
}

// Move is the minimal data needed to replay one move against a position.
type Move struct {
	From      string
	To        string
	Promotion string
}

// UCI renders the move in coordinate notation (e2e4, e7e8q).
func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.From) + strings.TrimSpace(m.To) + strings.TrimSpace(m.Promotion))
}

// Applied reports the notations of an accepted move.
type Applied struct {
	SAN string
	UCI string
}

// Position is an opaque handle over a live game reconstruction. It is
// mutated in place by Apply; callers replay from Start for determinism.
type Position struct {
	game *nchess.Game
}

// Validator is the fixed rules capability consumed by the session engine.
type Validator interface {
	Start(initialToken string) (*Position, error)
	Apply(p *Position, mv Move) (Applied, error)
	TurnColor(p *Position) Color
	FEN(p *Position) string
	History(p *Position) []string

	IsCheck(p *Position) bool
	IsCheckmate(p *Position) bool
	IsStalemate(p *Position) bool
	IsThreefoldRepetition(p *Position) bool
	IsInsufficientMaterial(p *Position) bool
	IsDraw(p *Position) bool
	IsGameOver(p *Position) bool
}

// ChessValidator implements Validator on top of corentings/chess/v2.
type ChessValidator struct{}

func NewChessValidator() *ChessValidator { return &ChessValidator{} }

var _ Validator = (*ChessValidator)(nil)

func (v *ChessValidator) Start(initialToken string) (*Position, error) {
	token := strings.TrimSpace(initialToken)
	if token == "" || token == StartposToken {
		return &Position{game: nchess.NewGame()}, nil
	}
	option, err := nchess.FEN(token)
	if err != nil {
		return nil, fmt.Errorf("parse initial position %q: %w", token, err)
	}
	return &Position{game: nchess.NewGame(option)}, nil
}

func (v *ChessValidator) Apply(p *Position, mv Move) (Applied, error) {
	uci := mv.UCI()
	if uci == "" {
		return Applied{}, ErrIllegalMove
	}
	pos := p.game.Position()
	decoded, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return Applied{}, ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, decoded)
	if err := p.game.Move(decoded, nil); err != nil {
		return Applied{}, ErrIllegalMove
	}
	return Applied{SAN: san, UCI: uci}, nil
}

func (v *ChessValidator) TurnColor(p *Position) Color {
	if p.game.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

func (v *ChessValidator) FEN(p *Position) string { return p.game.FEN() }

// History returns the SAN of every move applied since Start.
func (v *ChessValidator) History(p *Position) []string {
	moves := p.game.Moves()
	positions := p.game.Positions()
	san := make([]string, 0, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		san = append(san, notation.Encode(positions[i], mv))
	}
	return san
}

// IsCheck reports whether the side to move is in check. The board is
// inspected directly, so positions entered via FEN with no move history
// report correctly.
func (v *ChessValidator) IsCheck(p *Position) bool {
	pos := p.game.Position()
	board := pos.Board()
	defender := pos.Turn()

	kingSq := nchess.NoSquare
	for sq := nchess.A1; sq <= nchess.H8; sq++ {
		pc := board.Piece(sq)
		if pc.Type() == nchess.King && pc.Color() == defender {
			kingSq = sq
			break
		}
	}
	if kingSq == nchess.NoSquare {
		return false
	}
	return squareAttacked(board, kingSq, colorOther(defender))
}

func colorOther(c nchess.Color) nchess.Color {
	if c == nchess.White {
		return nchess.Black
	}
	return nchess.White
}

// squareAttacked reports whether any piece of the given color attacks the
// target square.
func squareAttacked(b *nchess.Board, target nchess.Square, by nchess.Color) bool {
	tf, tr := int(target.File()), int(target.Rank())

	at := func(f, r int) nchess.Piece {
		if f < 0 || f > 7 || r < 0 || r > 7 {
			return nchess.NoPiece
		}
		return b.Piece(nchess.NewSquare(nchess.File(f), nchess.Rank(r)))
	}
	is := func(pc nchess.Piece, t nchess.PieceType) bool {
		return pc.Color() == by && pc.Type() == t
	}

	// pawns capture one rank toward the defender
	pawnRank := tr - 1
	if by == nchess.Black {
		pawnRank = tr + 1
	}
	if is(at(tf-1, pawnRank), nchess.Pawn) || is(at(tf+1, pawnRank), nchess.Pawn) {
		return true
	}

	for _, d := range [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}} {
		if is(at(tf+d[0], tr+d[1]), nchess.Knight) {
			return true
		}
	}

	for df := -1; df <= 1; df++ {
		for dr := -1; dr <= 1; dr++ {
			if df == 0 && dr == 0 {
				continue
			}
			if is(at(tf+df, tr+dr), nchess.King) {
				return true
			}
		}
	}

	rays := [8][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	for i, d := range rays {
		diagonal := i >= 4
		for f, r := tf+d[0], tr+d[1]; f >= 0 && f <= 7 && r >= 0 && r <= 7; f, r = f+d[0], r+d[1] {
			pc := at(f, r)
			if pc == nchess.NoPiece {
				continue
			}
			if pc.Color() == by {
				t := pc.Type()
				if t == nchess.Queen || (diagonal && t == nchess.Bishop) || (!diagonal && t == nchess.Rook) {
					return true
				}
			}
			break
		}
	}
	return false
}

func (v *ChessValidator) IsCheckmate(p *Position) bool {
	return p.game.Method() == nchess.Checkmate
}

func (v *ChessValidator) IsStalemate(p *Position) bool {
	return p.game.Method() == nchess.Stalemate
}

func (v *ChessValidator) IsThreefoldRepetition(p *Position) bool {
	if m := p.game.Method(); m == nchess.ThreefoldRepetition || m == nchess.FivefoldRepetition {
		return true
	}
	for _, m := range p.game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition {
			return true
		}
	}
	return false
}

func (v *ChessValidator) IsInsufficientMaterial(p *Position) bool {
	return p.game.Method() == nchess.InsufficientMaterial
}

// IsDraw covers drawn outcomes plus claimable draws (threefold repetition
// and the fifty-move rule), which the engine treats as terminal.
func (v *ChessValidator) IsDraw(p *Position) bool {
	if p.game.Outcome() == nchess.Draw {
		return true
	}
	for _, m := range p.game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			return true
		}
	}
	return false
}

func (v *ChessValidator) IsGameOver(p *Position) bool {
	return p.game.Outcome() != nchess.NoOutcome || v.IsDraw(p)
}
