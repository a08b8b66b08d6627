package rules

import "testing"

func apply(t *testing.T, v Validator, p *Position, from, to string) Applied {
	t.Helper()
	a, err := v.Apply(p, Move{From: from, To: to})
	if err != nil {
		t.Fatalf("Apply %s%s: %v", from, to, err)
	}
	return a
}

func TestApplyAndTurnColor(t *testing.T) {
	v := NewChessValidator()
	p, err := v.Start(StartposToken)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := v.TurnColor(p); got != White {
		t.Fatalf("expected white to move, got %q", got)
	}

	a := apply(t, v, p, "e2", "e4")
	if a.UCI != "e2e4" || a.SAN != "e4" {
		t.Fatalf("unexpected notations: uci=%q san=%q", a.UCI, a.SAN)
	}
	if got := v.TurnColor(p); got != Black {
		t.Fatalf("expected black to move after e4, got %q", got)
	}
}

func TestApplyRejectsIllegalMove(t *testing.T) {
	v := NewChessValidator()
	p, _ := v.Start("")
	if _, err := v.Apply(p, Move{From: "e2", To: "e5"}); err != ErrIllegalMove {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	// black piece while white to move
	if _, err := v.Apply(p, Move{From: "e7", To: "e5"}); err != ErrIllegalMove {
		t.Fatalf("expected ErrIllegalMove for wrong side, got %v", err)
	}
	if len(v.History(p)) != 0 {
		t.Fatalf("rejected moves must not mutate the position")
	}
}

func TestFoolsMateIsCheckmate(t *testing.T) {
	v := NewChessValidator()
	p, _ := v.Start(StartposToken)
	apply(t, v, p, "f2", "f3")
	apply(t, v, p, "e7", "e5")
	apply(t, v, p, "g2", "g4")
	apply(t, v, p, "d8", "h4")

	if !v.IsCheck(p) {
		t.Fatalf("expected check after Qh4#")
	}
	if !v.IsCheckmate(p) {
		t.Fatalf("expected checkmate")
	}
	if !v.IsGameOver(p) {
		t.Fatalf("expected game over")
	}
	if v.IsStalemate(p) || v.IsDraw(p) {
		t.Fatalf("checkmate misreported as stalemate/draw")
	}
	// the side that was mated is the side to move
	if got := v.TurnColor(p); got != White {
		t.Fatalf("expected white to move in the mated position, got %q", got)
	}
}

func TestHistoryMatchesAppliedMoves(t *testing.T) {
	v := NewChessValidator()
	p, _ := v.Start(StartposToken)
	apply(t, v, p, "e2", "e4")
	apply(t, v, p, "e7", "e5")
	apply(t, v, p, "g1", "f3")

	history := v.History(p)
	want := []string{"e4", "e5", "Nf3"}
	if len(history) != len(want) {
		t.Fatalf("history length %d, want %d (%v)", len(history), len(want), history)
	}
	for i := range want {
		if history[i] != want[i] {
			t.Fatalf("history[%d] = %q, want %q", i, history[i], want[i])
		}
	}
}

func TestIsCheckFromInitialPosition(t *testing.T) {
	v := NewChessValidator()
	cases := []struct {
		name string
		fen  string
		want bool
	}{
		{"startpos", StartposToken, false},
		{"queen on open file", "4k3/8/8/8/8/8/4Q3/4K3 b - - 0 1", true},
		{"knight", "4k3/8/3N4/8/8/8/8/4K3 b - - 0 1", true},
		{"pawn", "4k3/3P4/8/8/8/8/8/4K3 b - - 0 1", true},
		{"slider blocked by own pawn", "4k3/4p3/8/8/8/8/4Q3/4K3 b - - 0 1", false},
		{"own bishop is not an attacker", "4k3/8/8/8/8/8/8/K1B5 w - - 0 1", false},
	}
	for _, c := range cases {
		p, err := v.Start(c.fen)
		if err != nil {
			t.Fatalf("%s: Start: %v", c.name, err)
		}
		// no moves have been applied; the board alone must decide
		if got := v.IsCheck(p); got != c.want {
			t.Fatalf("%s: IsCheck = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsCheckClearsAfterEscape(t *testing.T) {
	v := NewChessValidator()
	p, err := v.Start("4k3/8/8/8/8/8/4Q3/4K3 b - - 0 1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	apply(t, v, p, "e8", "d8")
	if v.IsCheck(p) {
		t.Fatalf("check must clear after the king steps aside")
	}
}

func TestPromotionMove(t *testing.T) {
	v := NewChessValidator()
	// white pawn one step from promotion
	p, err := v.Start("8/P6k/8/8/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("Start from FEN: %v", err)
	}
	a, err := v.Apply(p, Move{From: "a7", To: "a8", Promotion: "q"})
	if err != nil {
		t.Fatalf("promotion apply: %v", err)
	}
	if a.UCI != "a7a8q" {
		t.Fatalf("unexpected promotion uci %q", a.UCI)
	}
}
