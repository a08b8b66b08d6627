// Package matchmake pairs waiting connections into fresh sessions on a
// first-come-first-served basis.
package matchmake

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hexel-dev/chess-arena/internal/rules"
	"github.com/hexel-dev/chess-arena/internal/session"
	"github.com/hexel-dev/chess-arena/pkg/gamedto"
)

// Ticket is one queued connection. The queue never inspects the
// transport; it only needs identity, liveness and a delivery path.
type Ticket interface {
	// Key identifies the underlying connection for deduplication.
	Key() string
	// Alive reports whether the connection can still receive a match.
	Alive() bool
	// Deliver hands the private seat grant to the connection.
	Deliver(grant *gamedto.JoinGrant) error
}

// Preferences carries the queued player's seating and clock wishes. The
// earlier-queued player's clock preferences win when a pair forms.
type Preferences struct {
	DisplayName string
	Color       rules.Color
	InitialMs   int64
	IncrementMs int64
}

type entry struct {
	ticket     Ticket
	prefs      Preferences
	enqueuedAt time.Time
}

// Queue is a FIFO matchmaking queue. Entries wait indefinitely; there is
// no age-based eviction, only liveness checks at pairing time.
type Queue struct {
	registry *session.Registry
	logger   *zap.Logger

	mu      sync.Mutex
	waiting []entry
	keys    map[string]struct{}
	now     func() time.Time
}

func NewQueue(registry *session.Registry, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		registry: registry,
		logger:   logger,
		keys:     make(map[string]struct{}),
		now:      time.Now,
	}
}

// Len reports how many connections are currently waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Enqueue adds a connection and immediately attempts to pair. A key
// already in the queue is ignored; the return value reports whether the
// ticket was newly queued.
func (q *Queue) Enqueue(t Ticket, prefs Preferences) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.keys[t.Key()]; dup {
		return false
	}
	q.keys[t.Key()] = struct{}{}
	q.waiting = append(q.waiting, entry{ticket: t, prefs: prefs, enqueuedAt: q.now()})
	q.logger.Debug("queue_enqueue", zap.String("key", t.Key()), zap.Int("depth", len(q.waiting)))

	q.matchLocked()
	return true
}

// Dequeue removes a waiting connection, typically on disconnect. It
// reports whether the key was present.
func (q *Queue) Dequeue(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.keys[key]; !ok {
		return false
	}
	delete(q.keys, key)
	for i, e := range q.waiting {
		if e.ticket.Key() == key {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			break
		}
	}
	return true
}

// matchLocked pairs from the front while at least two entries wait. A
// dead front entry is dropped and its would-be opponent keeps front
// position for the next attempt.
func (q *Queue) matchLocked() {
	for len(q.waiting) >= 2 {
		first, second := q.waiting[0], q.waiting[1]

		if !first.ticket.Alive() {
			q.dropLocked(0, "unreachable")
			continue
		}
		if !second.ticket.Alive() {
			q.dropLocked(1, "unreachable")
			continue
		}

		q.waiting = q.waiting[2:]
		delete(q.keys, first.ticket.Key())
		delete(q.keys, second.ticket.Key())
		q.pair(first, second)
	}
}

func (q *Queue) dropLocked(i int, reason string) {
	e := q.waiting[i]
	delete(q.keys, e.ticket.Key())
	q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
	q.logger.Info("queue_drop", zap.String("key", e.ticket.Key()), zap.String("reason", reason))
}

// pair creates the session for the earlier-queued player and seats the
// later one opposite. Delivery failures are logged; the session stands
// either way and can be rejoined through the normal path.
func (q *Queue) pair(first, second entry) {
	creatorGrant, err := q.registry.Create(session.CreateParams{
		DisplayName: first.prefs.DisplayName,
		Color:       first.prefs.Color,
		InitialMs:   first.prefs.InitialMs,
		IncrementMs: first.prefs.IncrementMs,
	})
	if err != nil {
		q.logger.Error("match_create_error", zap.Error(err))
		return
	}
	joinerGrant, err := q.registry.Join(session.JoinParams{
		SessionID:   creatorGrant.SessionID,
		DisplayName: second.prefs.DisplayName,
		Color:       second.prefs.Color,
	})
	if err != nil {
		q.logger.Error("match_join_error", zap.String("session_id", creatorGrant.SessionID), zap.Error(err))
		return
	}
	// the creator's projection predates the join; refresh it
	if st, err := q.registry.GetState(creatorGrant.SessionID); err == nil {
		creatorGrant.State = st
	}

	q.logger.Info("match_made",
		zap.String("session_id", creatorGrant.SessionID),
		zap.Duration("first_waited", q.now().Sub(first.enqueuedAt)),
		zap.Duration("second_waited", q.now().Sub(second.enqueuedAt)),
	)

	if err := first.ticket.Deliver(creatorGrant); err != nil {
		q.logger.Warn("match_deliver_error", zap.String("key", first.ticket.Key()), zap.Error(err))
	}
	if err := second.ticket.Deliver(joinerGrant); err != nil {
		q.logger.Warn("match_deliver_error", zap.String("key", second.ticket.Key()), zap.Error(err))
	}
}
