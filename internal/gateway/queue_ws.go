package gateway

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/hexel-dev/chess-arena/internal/matchmake"
	"github.com/hexel-dev/chess-arena/internal/rules"
	"github.com/hexel-dev/chess-arena/pkg/gamedto"
)

// wsTicket adapts a queue websocket to the matchmaking queue. The
// connection context doubles as the liveness signal.
type wsTicket struct {
	key     string
	conn    *websocket.Conn
	ctx     context.Context
	matched chan struct{}
}

func (t *wsTicket) Key() string { return t.key }

func (t *wsTicket) Alive() bool { return t.ctx.Err() == nil }

func (t *wsTicket) Deliver(grant *gamedto.JoinGrant) error {
	writeCtx, cancel := context.WithTimeout(t.ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, t.conn, grant); err != nil {
		return err
	}
	close(t.matched)
	return nil
}

// handleQueue parks the connection in the matchmaking queue. Preferences
// come from query parameters; the match grant is pushed as the only
// message before a normal close.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		http.Error(w, "matchmaking disabled", http.StatusNotImplemented)
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	prefs := matchmake.Preferences{
		DisplayName: name,
		Color:       rules.Color(r.URL.Query().Get("color")),
	}
	if v := r.URL.Query().Get("initial_ms"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			prefs.InitialMs = n
		}
	}
	if v := r.URL.Query().Get("increment_ms"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			prefs.IncrementMs = n
		}
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug("queue_accept_error", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "queue closed")

	ticket := &wsTicket{
		key:     uuid.NewString(),
		conn:    conn,
		ctx:     conn.CloseRead(r.Context()),
		matched: make(chan struct{}),
	}
	if !s.queue.Enqueue(ticket, prefs) {
		conn.Close(websocket.StatusPolicyViolation, "already queued")
		return
	}

	select {
	case <-ticket.matched:
		// leave the client a moment to read the grant
		t := time.NewTimer(time.Second)
		defer t.Stop()
		select {
		case <-ticket.ctx.Done():
		case <-t.C:
		}
		conn.Close(websocket.StatusNormalClosure, "matched")
	case <-ticket.ctx.Done():
		s.queue.Dequeue(ticket.key)
		conn.Close(websocket.StatusNormalClosure, "bye")
	}
}
