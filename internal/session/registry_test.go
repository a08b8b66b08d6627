package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hexel-dev/chess-arena/internal/rules"
	"github.com/hexel-dev/chess-arena/pkg/gamedto"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestRegistry(t *testing.T) (*Registry, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(rules.NewChessValidator(), nil)
	r.now = clk.Now
	return r, clk
}

// newActiveSession seats two players and returns both grants.
func newActiveSession(t *testing.T, r *Registry, initialMs, incrementMs int64) (white, black *gamedto.JoinGrant) {
	t.Helper()
	white, err := r.Create(CreateParams{
		DisplayName: "Alice",
		Color:       rules.White,
		InitialMs:   initialMs,
		IncrementMs: incrementMs,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	black, err = r.Join(JoinParams{SessionID: white.SessionID, DisplayName: "Bob"})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if black.Color != "b" {
		t.Fatalf("second joiner expected black, got %q", black.Color)
	}
	return white, black
}

func TestCreateSeatsCreatorWaiting(t *testing.T) {
	r, _ := newTestRegistry(t)
	grant, err := r.Create(CreateParams{DisplayName: "Alice", Color: rules.White, InitialMs: 60_000})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if grant.ParticipantID == "" || grant.Role != gamedto.RolePlayer || grant.Color != "w" {
		t.Fatalf("unexpected grant: %+v", grant)
	}
	st := grant.State
	if st.Status.State != "waiting" {
		t.Fatalf("expected waiting, got %q", st.Status.State)
	}
	if st.Clock.Running {
		t.Fatalf("clock must not run with one seat vacant")
	}
	if st.Clock.WhiteRemainingMs != 60_000 || st.Clock.BlackRemainingMs != 60_000 {
		t.Fatalf("unexpected clock: %+v", st.Clock)
	}
}

func TestCreateRequiresDisplayName(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Create(CreateParams{}); KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSecondJoinActivatesAndStartsClock(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, black := newActiveSession(t, r, 300_000, 2_000)
	st := black.State
	if st.Status.State != "active" {
		t.Fatalf("expected active, got %q", st.Status.State)
	}
	if !st.Clock.Running || st.Clock.ActiveColor != "w" {
		t.Fatalf("expected running clock on white, got %+v", st.Clock)
	}
}

func TestJoinPriorityOrder(t *testing.T) {
	r, _ := newTestRegistry(t)
	white, _ := newActiveSession(t, r, 300_000, 0)

	// reconnect keeps the seat and updates the display name
	re, err := r.Join(JoinParams{SessionID: white.SessionID, ParticipantID: white.ParticipantID, DisplayName: "Alice2"})
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if re.ParticipantID != white.ParticipantID || re.Color != "w" {
		t.Fatalf("reconnect grant mismatch: %+v", re)
	}
	if re.State.White.Name != "Alice2" {
		t.Fatalf("display name not updated: %+v", re.State.White)
	}

	// both seats taken: third participant becomes a spectator
	spec, err := r.Join(JoinParams{SessionID: white.SessionID, DisplayName: "Carol", Color: rules.White})
	if err != nil {
		t.Fatalf("spectator join: %v", err)
	}
	if spec.Role != gamedto.RoleSpectator || spec.Color != "" {
		t.Fatalf("expected spectator, got %+v", spec)
	}
	if len(spec.State.Spectators) != 1 || spec.State.Spectators[0] != "Carol" {
		t.Fatalf("unexpected spectators: %v", spec.State.Spectators)
	}
}

func TestJoinFallsBackToOtherColor(t *testing.T) {
	r, _ := newTestRegistry(t)
	creator, err := r.Create(CreateParams{DisplayName: "Alice", Color: rules.Black})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// requests black, which is taken; gets white
	joined, err := r.Join(JoinParams{SessionID: creator.SessionID, DisplayName: "Bob", Color: rules.Black})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.Color != "w" {
		t.Fatalf("expected fallback to white, got %q", joined.Color)
	}
}

func TestJoinUnknownSession(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Join(JoinParams{SessionID: "nope", DisplayName: "X"}); KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLeavePausesClockAndCommitsElapsed(t *testing.T) {
	r, clk := newTestRegistry(t)
	white, black := newActiveSession(t, r, 300_000, 0)

	clk.Advance(3 * time.Second)
	st, err := r.Leave(white.SessionID, black.ParticipantID)
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if st.Status.State != "waiting" || st.Clock.Running {
		t.Fatalf("expected paused waiting session, got %+v", st.Status)
	}
	// white was on the move; exactly 3000ms drained, black untouched
	if st.Clock.WhiteRemainingMs != 297_000 {
		t.Fatalf("white remaining = %d, want 297000", st.Clock.WhiteRemainingMs)
	}
	if st.Clock.BlackRemainingMs != 300_000 {
		t.Fatalf("black remaining = %d, want 300000", st.Clock.BlackRemainingMs)
	}

	// no further drift while paused
	clk.Advance(time.Minute)
	st2, err := r.GetState(white.SessionID)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if st2.Clock.WhiteRemainingMs != 297_000 {
		t.Fatalf("paused clock drifted: %d", st2.Clock.WhiteRemainingMs)
	}
}

func TestLeaveUnknownParticipant(t *testing.T) {
	r, _ := newTestRegistry(t)
	white, _ := newActiveSession(t, r, 300_000, 0)
	if _, err := r.Leave(white.SessionID, "ghost"); KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLeaveRemovesSpectator(t *testing.T) {
	r, _ := newTestRegistry(t)
	white, _ := newActiveSession(t, r, 300_000, 0)
	spec, err := r.Join(JoinParams{SessionID: white.SessionID, DisplayName: "Carol"})
	if err != nil {
		t.Fatalf("spectator join: %v", err)
	}
	st, err := r.Leave(white.SessionID, spec.ParticipantID)
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if len(st.Spectators) != 0 {
		t.Fatalf("spectator not removed: %v", st.Spectators)
	}
	if st.Status.State != "active" {
		t.Fatalf("spectator leave must not pause the game, got %q", st.Status.State)
	}
}

func TestSweepFinalizesExpiredSessions(t *testing.T) {
	r, clk := newTestRegistry(t)
	white, _ := newActiveSession(t, r, 10_000, 0)

	if n := r.SweepClocks(); n != 0 {
		t.Fatalf("premature finalization: %d", n)
	}
	clk.Advance(11 * time.Second)
	if n := r.SweepClocks(); n != 1 {
		t.Fatalf("expected one finalized session, got %d", n)
	}
	st, _ := r.GetState(white.SessionID)
	if st.Status.State != "finished" || st.Status.Reason != ReasonTimeout || st.Status.Winner != "b" {
		t.Fatalf("unexpected final status: %+v", st.Status)
	}
	if st.Clock.Running || st.Clock.ActiveColor != "" {
		t.Fatalf("clock not stopped: %+v", st.Clock)
	}
	if st.Clock.WhiteRemainingMs != 0 {
		t.Fatalf("expired color must read zero, got %d", st.Clock.WhiteRemainingMs)
	}
}

func TestClockMonotonicity(t *testing.T) {
	r, clk := newTestRegistry(t)
	white, _ := newActiveSession(t, r, 300_000, 0)

	var lastActive int64 = 300_001
	for i := 0; i < 5; i++ {
		clk.Advance(700 * time.Millisecond)
		st, err := r.GetState(white.SessionID)
		if err != nil {
			t.Fatalf("GetState: %v", err)
		}
		if st.Clock.BlackRemainingMs != 300_000 {
			t.Fatalf("inactive color drained: %d", st.Clock.BlackRemainingMs)
		}
		if st.Clock.WhiteRemainingMs >= lastActive {
			t.Fatalf("active color not draining: %d >= %d", st.Clock.WhiteRemainingMs, lastActive)
		}
		lastActive = st.Clock.WhiteRemainingMs
	}
}

// recordingArchiver captures archived states. Archival runs off the
// session mutex, so callers synchronize through wait.
type recordingArchiver struct {
	mu     sync.Mutex
	states []*gamedto.PublicState
	saved  chan struct{}
}

func newRecordingArchiver() *recordingArchiver {
	return &recordingArchiver{saved: make(chan struct{}, 8)}
}

func (a *recordingArchiver) SaveResult(_ context.Context, state *gamedto.PublicState) error {
	a.mu.Lock()
	a.states = append(a.states, state)
	a.mu.Unlock()
	a.saved <- struct{}{}
	return nil
}

func (a *recordingArchiver) wait(t *testing.T) *gamedto.PublicState {
	t.Helper()
	select {
	case <-a.saved:
	case <-time.After(2 * time.Second):
		t.Fatalf("archiver was never called")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.states[len(a.states)-1]
}

func (a *recordingArchiver) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.states)
}

func TestFinishedSessionReachesArchiver(t *testing.T) {
	r, _ := newTestRegistry(t)
	arch := newRecordingArchiver()
	r.AttachArchiver(arch)

	white, black := newActiveSession(t, r, 300_000, 0)
	id := white.SessionID
	playMove := func(grant *gamedto.JoinGrant, from, to string) *gamedto.PublicState {
		st, err := r.MakeMove(id, grant.ParticipantID, MoveRecord{From: from, To: to})
		if err != nil {
			t.Fatalf("MakeMove %s%s: %v", from, to, err)
		}
		return st
	}
	playMove(white, "f2", "f3")
	playMove(black, "e7", "e5")
	playMove(white, "g2", "g4")
	st := playMove(black, "d8", "h4")

	if st.Status.State != "finished" || st.Status.Reason != ReasonCheckmate || st.Status.Winner != "b" {
		t.Fatalf("expected black checkmate win, got %+v", st.Status)
	}
	archived := arch.wait(t)
	if archived.Status.Reason != ReasonCheckmate {
		t.Fatalf("archived wrong status: %+v", archived.Status)
	}
	if n := arch.count(); n != 1 {
		t.Fatalf("archiver called %d times, want 1", n)
	}
}

func TestCreateUsesConfiguredDefaultTimeControl(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.SetDefaultTimeControl(90_000, 1_500)

	grant, err := r.Create(CreateParams{DisplayName: "Alice", Color: rules.White})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock := grant.State.Clock
	if clock.InitialMs != 90_000 || clock.IncrementMs != 1_500 {
		t.Fatalf("configured defaults not applied: %+v", clock)
	}
	if clock.WhiteRemainingMs != 90_000 || clock.BlackRemainingMs != 90_000 {
		t.Fatalf("unexpected remaining time: %+v", clock)
	}

	// explicit parameters still win over the configured defaults
	grant, err = r.Create(CreateParams{DisplayName: "Bob", Color: rules.White, InitialMs: 10_000})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if grant.State.Clock.InitialMs != 10_000 || grant.State.Clock.IncrementMs != 1_500 {
		t.Fatalf("explicit initial overridden: %+v", grant.State.Clock)
	}
}

type blockingArchiver struct {
	started chan struct{}
	release chan struct{}
	done    chan struct{}
}

func (a *blockingArchiver) SaveResult(_ context.Context, _ *gamedto.PublicState) error {
	close(a.started)
	<-a.release
	close(a.done)
	return nil
}

func TestSweepReturnsWhileArchiveInFlight(t *testing.T) {
	r, clk := newTestRegistry(t)
	arch := &blockingArchiver{
		started: make(chan struct{}),
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.AttachArchiver(arch)

	newActiveSession(t, r, 10_000, 0)
	clk.Advance(11 * time.Second)

	// the sweep must finalize and return without waiting for the archive
	if n := r.SweepClocks(); n != 1 {
		t.Fatalf("expected one finalized session, got %d", n)
	}
	select {
	case <-arch.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("archiver never invoked")
	}
	select {
	case <-arch.done:
		t.Fatalf("archive completed before it was released")
	default:
	}

	close(arch.release)
	select {
	case <-arch.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("archive never completed")
	}
}
