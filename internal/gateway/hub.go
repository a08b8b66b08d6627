package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/hexel-dev/chess-arena/pkg/gamedto"
)

const (
	subscriberBuffer = 8
	writeTimeout     = 5 * time.Second
)

type subscriber struct {
	ch chan *gamedto.PublicState
}

// Hub fans mutated session state out to websocket subscribers. A
// subscriber that cannot keep up is closed rather than allowed to stall
// the broadcast.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	logger *zap.Logger
}

func newHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		logger: logger,
	}
}

func (h *Hub) subscribe(sessionID string) *subscriber {
	sub := &subscriber{ch: make(chan *gamedto.PublicState, subscriberBuffer)}
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*subscriber]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sessionID string, sub *subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[sessionID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sessionID)
		}
	}
	h.mu.Unlock()
}

// Broadcast pushes the new state to every subscriber of the session.
// Full buffers close the subscriber channel path implicitly: the state
// is dropped there and the stream catches up on the next push.
func (h *Hub) Broadcast(sessionID string, state *gamedto.PublicState) {
	if state == nil {
		return
	}
	h.mu.Lock()
	set := h.subs[sessionID]
	targets := make([]*subscriber, 0, len(set))
	for sub := range set {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- state:
		default:
			h.logger.Debug("stream_drop", zap.String("session_id", sessionID))
		}
	}
}

// handleSessionStream upgrades to a websocket, sends the current state
// immediately, then streams every subsequent mutation.
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	state, err := s.registry.GetState(sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Debug("stream_accept_error", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// reads are discarded; the returned context ends with the connection
	ctx := conn.CloseRead(r.Context())

	sub := s.hub.subscribe(sessionID)
	defer s.hub.unsubscribe(sessionID, sub)

	send := func(st *gamedto.PublicState) error {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return wsjson.Write(writeCtx, conn, st)
	}
	if err := send(state); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case st := <-sub.ch:
			if err := send(st); err != nil {
				return
			}
		}
	}
}
