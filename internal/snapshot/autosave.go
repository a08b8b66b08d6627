package snapshot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultAutosaveDelay = 750 * time.Millisecond

// Autosaver coalesces bursts of mutations into one deferred save. Each
// Schedule restarts the delay; the save fires once the burst quiets down.
type Autosaver struct {
	manager *Manager
	delay   time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
}

func NewAutosaver(manager *Manager, delay time.Duration, logger *zap.Logger) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Autosaver{manager: manager, delay: delay, logger: logger}
}

// Schedule arms or re-arms the deferred save. It never blocks.
func (a *Autosaver) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer == nil {
		a.timer = time.AfterFunc(a.delay, a.fire)
		return
	}
	a.timer.Reset(a.delay)
}

func (a *Autosaver) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.manager.Save(ctx); err != nil {
		a.logger.Warn("autosave_error", zap.Error(err))
	}
}

// Flush cancels any pending save and writes immediately. Used at
// shutdown, where a lost write is acceptable but not preferred.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	return a.manager.Save(ctx)
}
