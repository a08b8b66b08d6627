// Package notify delivers finished-game events to an external webhook.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/hexel-dev/chess-arena/pkg/gamedto"
)

// Webhook posts each finished game as a JSON document. Delivery is best
// effort with a short retry ladder; a game that cannot be delivered is
// logged and dropped.
type Webhook struct {
	url     string
	http    *fasthttp.Client
	logger  *zap.Logger
	timeout time.Duration
	retries int
}

type Option func(*Webhook)

func WithTimeout(d time.Duration) Option {
	return func(w *Webhook) { w.timeout = d }
}

func WithRetries(n int) Option {
	return func(w *Webhook) { w.retries = n }
}

func NewWebhook(url string, logger *zap.Logger, opts ...Option) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Webhook{
		url: strings.TrimSpace(url),
		http: &fasthttp.Client{
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxConnsPerHost: 16,
		},
		logger:  logger,
		timeout: 10 * time.Second,
		retries: 3,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type finishedEvent struct {
	Event string               `json:"event"`
	At    time.Time            `json:"at"`
	Game  *gamedto.PublicState `json:"game"`
}

// GameFinished posts the final public state. Callers invoke it from a
// goroutine; it blocks only for its own timeout budget.
func (w *Webhook) GameFinished(state *gamedto.PublicState) {
	if w.url == "" || state == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	payload, err := json.Marshal(finishedEvent{Event: "game_finished", At: time.Now().UTC(), Game: state})
	if err != nil {
		w.logger.Error("webhook_encode_error", zap.Error(err))
		return
	}
	if err := w.post(ctx, payload); err != nil {
		w.logger.Warn("webhook_deliver_error",
			zap.String("session_id", state.SessionID),
			zap.Error(err),
		)
		return
	}
	w.logger.Debug("webhook_delivered", zap.String("session_id", state.SessionID))
}

func (w *Webhook) post(ctx context.Context, payload []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	attempts := w.retries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.http.DoDeadline(req, resp, w.deadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return nil
			}
			err = fmt.Errorf("webhook status %d", status)
			if !retryableStatus(status) {
				return err
			}
		}
		lastErr = err
		if attempt < attempts {
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

func (w *Webhook) deadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(w.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
