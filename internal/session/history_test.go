package session

import (
	"testing"
	"time"
)

// pausedAfterMoves plays the given moves, then vacates black's seat so
// the clock stops, returning ids for history operations.
func pausedAfterMoves(t *testing.T, r *Registry, moves [][2]string) (id, whiteID, blackID string) {
	t.Helper()
	white, black := newActiveSession(t, r, 300_000, 0)
	id = white.SessionID
	for i, mv := range moves {
		pid := white.ParticipantID
		if i%2 == 1 {
			pid = black.ParticipantID
		}
		if _, err := r.MakeMove(id, pid, MoveRecord{From: mv[0], To: mv[1]}); err != nil {
			t.Fatalf("move %v: %v", mv, err)
		}
	}
	if _, err := r.Leave(id, black.ParticipantID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	return id, white.ParticipantID, black.ParticipantID
}

func TestUndoRedoRoundTrip(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, whiteID, _ := pausedAfterMoves(t, r, [][2]string{{"e2", "e4"}, {"e7", "e5"}})

	before, _ := r.GetState(id)
	undone, err := r.Undo(id, whiteID)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if undone.Cursor != 1 || len(undone.Moves) != 2 {
		t.Fatalf("undo must keep the redo tail: cursor=%d moves=%d", undone.Cursor, len(undone.Moves))
	}
	if undone.Turn != "b" {
		t.Fatalf("turn after undo = %q, want b", undone.Turn)
	}

	redone, err := r.Redo(id, whiteID)
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if redone.Cursor != before.Cursor {
		t.Fatalf("cursor after redo = %d, want %d", redone.Cursor, before.Cursor)
	}
	if redone.FEN != before.FEN {
		t.Fatalf("redo did not restore the position:\n  before %s\n  after  %s", before.FEN, redone.FEN)
	}
}

func TestUndoRequiresStoppedClock(t *testing.T) {
	r, _ := newTestRegistry(t)
	white, _ := newActiveSession(t, r, 300_000, 0)
	if _, err := r.MakeMove(white.SessionID, white.ParticipantID, MoveRecord{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("move: %v", err)
	}

	_, err := r.Undo(white.SessionID, white.ParticipantID)
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict while clock runs, got %v", err)
	}
	st, _ := r.GetState(white.SessionID)
	if st.Cursor != 1 || st.Status.State != "active" {
		t.Fatalf("rejected undo mutated the session: %+v", st)
	}
}

func TestUndoRequiresSeat(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _, _ := pausedAfterMoves(t, r, [][2]string{{"e2", "e4"}})
	spec, err := r.Join(JoinParams{SessionID: id, DisplayName: "Carol"})
	if err != nil {
		t.Fatalf("spectator join: %v", err)
	}
	// black's seat was vacated, so Carol takes it; Dave spectates
	if spec.Role != "player" {
		t.Fatalf("expected Carol to take the free seat, got %q", spec.Role)
	}
	onlooker, err := r.Join(JoinParams{SessionID: id, DisplayName: "Dave"})
	if err != nil {
		t.Fatalf("onlooker join: %v", err)
	}
	// both seats filled again, clock restarted; stop it for the check
	if _, err := r.Leave(id, spec.ParticipantID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if _, err := r.Undo(id, onlooker.ParticipantID); KindOf(err) != KindForbidden {
		t.Fatalf("expected forbidden for spectator, got %v", err)
	}
}

func TestUndoRedoCursorBounds(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, whiteID, _ := pausedAfterMoves(t, r, nil)

	if _, err := r.Undo(id, whiteID); KindOf(err) != KindConflict {
		t.Fatalf("undo on empty history: got %v", err)
	}
	if _, err := r.Redo(id, whiteID); KindOf(err) != KindConflict {
		t.Fatalf("redo with no tail: got %v", err)
	}
}

func TestUndoResetsStatusToWaiting(t *testing.T) {
	r, _ := newTestRegistry(t)
	white, black := newActiveSession(t, r, 300_000, 0)
	id := white.SessionID
	moves := [][2]string{{"f2", "f3"}, {"e7", "e5"}, {"g2", "g4"}, {"d8", "h4"}}
	for i, mv := range moves {
		pid := white.ParticipantID
		if i%2 == 1 {
			pid = black.ParticipantID
		}
		if _, err := r.MakeMove(id, pid, MoveRecord{From: mv[0], To: mv[1]}); err != nil {
			t.Fatalf("move %v: %v", mv, err)
		}
	}
	st, _ := r.GetState(id)
	if st.Status.State != "finished" {
		t.Fatalf("setup expected checkmate, got %+v", st.Status)
	}

	undone, err := r.Undo(id, white.ParticipantID)
	if err != nil {
		t.Fatalf("Undo after mate: %v", err)
	}
	if undone.Status.State != "waiting" || undone.Status.Winner != "" || undone.Status.Reason != "" {
		t.Fatalf("undo must clear the termination block, got %+v", undone.Status)
	}
}

func TestNewMoveOverwritesRedoTail(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, whiteID, _ := pausedAfterMoves(t, r, [][2]string{{"e2", "e4"}, {"e7", "e5"}})

	if _, err := r.Undo(id, whiteID); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	// reseat black so the session can go live again
	black2, err := r.Join(JoinParams{SessionID: id, DisplayName: "Bob"})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if black2.Color != "b" {
		t.Fatalf("expected black seat, got %q", black2.Color)
	}

	st, err := r.MakeMove(id, black2.ParticipantID, MoveRecord{From: "d7", To: "d5"})
	if err != nil {
		t.Fatalf("move over redo tail: %v", err)
	}
	if len(st.Moves) != 2 || st.Cursor != 2 {
		t.Fatalf("tail not overwritten: cursor=%d moves=%v", st.Cursor, st.Moves)
	}
	if st.Moves[1].From != "d7" || st.Moves[1].To != "d5" {
		t.Fatalf("unexpected second move: %+v", st.Moves[1])
	}
}

func TestRebuildIsDeterministic(t *testing.T) {
	r, clk := newTestRegistry(t)
	id, whiteID, _ := pausedAfterMoves(t, r, [][2]string{{"e2", "e4"}, {"e7", "e5"}, {"g1", "f3"}, {"b8", "c6"}})

	before, _ := r.GetState(id)
	for i := 0; i < 4; i++ {
		if _, err := r.Undo(id, whiteID); err != nil {
			t.Fatalf("Undo #%d: %v", i, err)
		}
	}
	clk.Advance(time.Second)
	for i := 0; i < 4; i++ {
		if _, err := r.Redo(id, whiteID); err != nil {
			t.Fatalf("Redo #%d: %v", i, err)
		}
	}
	after, _ := r.GetState(id)
	if after.FEN != before.FEN || after.Cursor != before.Cursor {
		t.Fatalf("replay not idempotent:\n  before %s (cursor %d)\n  after  %s (cursor %d)",
			before.FEN, before.Cursor, after.FEN, after.Cursor)
	}
}
