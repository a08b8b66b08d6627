package session

import (
	"context"
	"crypto/rand"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hexel-dev/chess-arena/internal/rules"
	"github.com/hexel-dev/chess-arena/pkg/gamedto"
)

// Saver schedules a debounced durable write. Mutating operations call it
// fire-and-forget; it must never block.
type Saver interface {
	Schedule()
}

// Archiver receives the final public state of a finished session for
// long-term storage. Failures are logged, never surfaced to the mover.
type Archiver interface {
	SaveResult(ctx context.Context, state *gamedto.PublicState) error
}

// Notifier receives finished-game events for outbound delivery.
type Notifier interface {
	GameFinished(state *gamedto.PublicState)
}

const (
	defaultInitialMs   = 300_000
	defaultIncrementMs = 0
)

// Registry owns every live session. It is an explicit instance passed by
// reference, so isolated registries can coexist (one per test, for
// example). Map access is guarded by mu; each session has its own mutex
// held for the full duration of an operation, which reproduces
// single-writer semantics per session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	validator rules.Validator
	logger    *zap.Logger

	saver    Saver
	archiver Archiver
	notifier Notifier

	defaultInitialMs   int64
	defaultIncrementMs int64

	now func() time.Time
}

func NewRegistry(validator rules.Validator, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions:           make(map[string]*Session),
		validator:          validator,
		logger:             logger,
		defaultInitialMs:   defaultInitialMs,
		defaultIncrementMs: defaultIncrementMs,
		now:                time.Now,
	}
}

// SetDefaultTimeControl overrides the clock values applied when a
// session is created without explicit clock parameters. Non-positive
// initial and negative increment values are ignored.
func (r *Registry) SetDefaultTimeControl(initialMs, incrementMs int64) {
	if initialMs > 0 {
		r.defaultInitialMs = initialMs
	}
	if incrementMs >= 0 {
		r.defaultIncrementMs = incrementMs
	}
}

// AttachSaver wires the debounced persistence scheduler.
func (r *Registry) AttachSaver(s Saver) { r.saver = s }

// AttachArchiver wires a repository for finished-game results.
func (r *Registry) AttachArchiver(a Archiver) { r.archiver = a }

// AttachNotifier wires an outbound sink for finished-game events.
func (r *Registry) AttachNotifier(n Notifier) { r.notifier = n }

func (r *Registry) Validator() rules.Validator { return r.validator }

func (r *Registry) scheduleSave() {
	if r.saver != nil {
		r.saver.Schedule()
	}
}

// CreateParams configures a new session. Zero clock values fall back to
// the registry defaults.
type CreateParams struct {
	DisplayName     string
	Color           rules.Color
	InitialMs       int64
	IncrementMs     int64
	InitialPosition string
}

// Create registers a new session with the creator seated. The returned
// grant carries the creator's private participant token.
func (r *Registry) Create(params CreateParams) (*gamedto.JoinGrant, error) {
	name := strings.TrimSpace(params.DisplayName)
	if name == "" {
		return nil, errValidation("display name is required")
	}

	token := strings.TrimSpace(params.InitialPosition)
	if token == "" {
		token = rules.StartposToken
	}
	pos, err := r.validator.Start(token)
	if err != nil {
		return nil, errValidation("invalid initial position: %v", err)
	}

	initialMs := params.InitialMs
	if initialMs <= 0 {
		initialMs = r.defaultInitialMs
	}
	incrementMs := params.IncrementMs
	if incrementMs < 0 {
		incrementMs = r.defaultIncrementMs
	}

	color := params.Color
	if color != rules.White && color != rules.Black {
		color = randomColor()
	}

	now := r.now()
	s := &Session{
		ID:              uuid.NewString(),
		CreatedAt:       now,
		UpdatedAt:       now,
		InitialPosition: token,
		Moves:           []MoveRecord{},
		Spectators:      make(map[string]string),
		Clock: Clock{
			InitialMs:        initialMs,
			IncrementMs:      incrementMs,
			WhiteRemainingMs: initialMs,
			BlackRemainingMs: initialMs,
		},
		Status:  Status{State: StateWaiting},
		FEN:     r.validator.FEN(pos),
		InCheck: r.validator.IsCheck(pos),
	}

	participantID := uuid.NewString()
	*s.slot(color) = PlayerSlot{ID: participantID, Name: name, Present: true}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.Info("session_create",
		zap.String("session_id", s.ID),
		zap.String("creator_color", string(color)),
		zap.Int64("initial_ms", initialMs),
		zap.Int64("increment_ms", incrementMs),
	)
	r.scheduleSave()

	return &gamedto.JoinGrant{
		SessionID:     s.ID,
		ParticipantID: participantID,
		Role:          gamedto.RolePlayer,
		Color:         string(color),
		State:         r.projectCopy(s),
	}, nil
}

func (r *Registry) lookup(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[strings.TrimSpace(id)]
	r.mu.RUnlock()
	if !ok {
		return nil, errNotFound(id)
	}
	return s, nil
}

// GetState returns the public projection of one session.
func (r *Registry) GetState(sessionID string) (*gamedto.PublicState, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return r.projectCopy(s), nil
}

// List returns every session's projection, most recently updated first.
func (r *Registry) List() []*gamedto.PublicState {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	states := make([]*gamedto.PublicState, 0, len(all))
	for _, s := range all {
		states = append(states, r.projectCopy(s))
	}
	sort.Slice(states, func(i, j int) bool { return states[i].UpdatedAt.After(states[j].UpdatedAt) })
	return states
}

// JoinParams identifies the caller and its seating preference.
type JoinParams struct {
	SessionID     string
	ParticipantID string
	DisplayName   string
	Color         rules.Color
}

// Join seats or re-seats a participant. Resolution order: reconnect by
// participant id, requested color if free, the other color if free,
// otherwise spectator with a fresh id.
func (r *Registry) Join(params JoinParams) (*gamedto.JoinGrant, error) {
	s, err := r.lookup(params.SessionID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.DisplayName)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := r.now()
	grant := &gamedto.JoinGrant{SessionID: s.ID}

	if color, ok := s.colorOf(strings.TrimSpace(params.ParticipantID)); ok {
		// reconnect to an owned seat
		slot := s.slot(color)
		slot.Present = true
		if name != "" {
			slot.Name = name
		}
		grant.ParticipantID = slot.ID
		grant.Role = gamedto.RolePlayer
		grant.Color = string(color)
	} else {
		if name == "" {
			return nil, errValidation("display name is required")
		}
		seat := ""
		for _, c := range seatOrder(params.Color) {
			if !s.slot(c).Occupied() {
				seat = string(c)
				break
			}
		}
		id := uuid.NewString()
		if seat != "" {
			*s.slot(rules.Color(seat)) = PlayerSlot{ID: id, Name: name, Present: true}
			grant.ParticipantID = id
			grant.Role = gamedto.RolePlayer
			grant.Color = seat
		} else {
			s.Spectators[id] = name
			grant.ParticipantID = id
			grant.Role = gamedto.RoleSpectator
		}
	}

	s.UpdatedAt = now
	r.reevaluateLocked(s, now)

	r.logger.Info("session_join",
		zap.String("session_id", s.ID),
		zap.String("role", grant.Role),
		zap.String("color", grant.Color),
		zap.String("state", string(s.Status.State)),
	)
	r.scheduleSave()

	grant.State = s.projectLocked(now)
	return grant, nil
}

// Leave vacates a seat or removes a spectator. Vacating a seat pauses the
// clock with an exact elapsed-time commit.
func (r *Registry) Leave(sessionID, participantID string) (*gamedto.PublicState, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return nil, errValidation("participant id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := r.now()
	if color, ok := s.colorOf(participantID); ok {
		*s.slot(color) = PlayerSlot{}
	} else if _, ok := s.Spectators[participantID]; ok {
		delete(s.Spectators, participantID)
	} else {
		return nil, errValidation("unknown participant id")
	}

	s.UpdatedAt = now
	r.reevaluateLocked(s, now)

	r.logger.Info("session_leave",
		zap.String("session_id", s.ID),
		zap.String("state", string(s.Status.State)),
	)
	r.scheduleSave()
	return s.projectLocked(now), nil
}

// reevaluateLocked recomputes the waiting/active transition after any
// join or leave. Finished sessions never transition back.
func (r *Registry) reevaluateLocked(s *Session, now time.Time) {
	if s.Status.State == StateFinished {
		return
	}
	if s.White.Seated() && s.Black.Seated() {
		s.Status = Status{State: StateActive}
		if !s.Clock.Running {
			s.Clock.start(s.turn(), now)
		}
		return
	}
	s.Status = Status{State: StateWaiting}
	if s.Clock.Running {
		s.Clock.pause(now)
	}
}

// SweepClocks scans every session once, finalizing those whose active
// color has run out of time. It performs no other mutation and never
// blocks on persistence.
func (r *Registry) SweepClocks() int {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	finalized := 0
	now := r.now()
	for _, s := range all {
		s.mu.Lock()
		if s.Status.State == StateActive && s.Clock.expired(now) {
			r.finalizeTimeoutLocked(s, now)
			finalized++
		}
		s.mu.Unlock()
	}
	if finalized > 0 {
		r.scheduleSave()
	}
	return finalized
}

// finalizeTimeoutLocked commits the drained clock and ends the session in
// favor of the opponent.
func (r *Registry) finalizeTimeoutLocked(s *Session, now time.Time) {
	loser := s.Clock.ActiveColor
	s.Clock.commit(now)
	s.Clock.stop()
	s.Status = Status{State: StateFinished, Winner: loser.Opponent(), Reason: ReasonTimeout}
	s.UpdatedAt = now

	r.logger.Info("session_timeout",
		zap.String("session_id", s.ID),
		zap.String("winner", string(s.Status.Winner)),
	)
	r.finishedLocked(s, now)
}

// finishedLocked fans the final state out to the archive and notifier.
// Both run on a detached copy of the state, off the session mutex, so a
// slow archive or webhook cannot stall moves or the clock sweep.
func (r *Registry) finishedLocked(s *Session, now time.Time) {
	state := s.projectLocked(now)
	if r.archiver != nil {
		sessionID := s.ID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.archiver.SaveResult(ctx, state); err != nil {
				r.logger.Error("result_archive_error", zap.String("session_id", sessionID), zap.Error(err))
			}
		}()
	}
	if r.notifier != nil {
		go r.notifier.GameFinished(state)
	}
}

// ImportSession installs a restored session, replacing any existing one
// with the same id.
func (r *Registry) ImportSession(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

// ExportSessions deep-copies every session for serialization without
// holding any lock during the write.
func (r *Registry) ExportSessions() []*Session {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	out := make([]*Session, 0, len(all))
	for _, s := range all {
		s.mu.Lock()
		out = append(out, s.clone())
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Registry) projectCopy(s *Session) *gamedto.PublicState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectLocked(r.now())
}

func seatOrder(preferred rules.Color) []rules.Color {
	if preferred == rules.Black {
		return []rules.Color{rules.Black, rules.White}
	}
	return []rules.Color{rules.White, rules.Black}
}

func randomColor() rules.Color {
	if n, err := rand.Int(rand.Reader, big.NewInt(2)); err == nil && n.Int64() == 0 {
		return rules.Black
	}
	return rules.White
}
