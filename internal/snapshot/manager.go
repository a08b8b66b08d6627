package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hexel-dev/chess-arena/internal/session"
)

// Manager moves sessions between the registry and a store. Save
// serializes a consistent export; Load restores by replay, skipping
// records it cannot rebuild.
type Manager struct {
	registry *session.Registry
	store    Store
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(registry *session.Registry, store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		registry: registry,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Save writes the full session set as one record.
func (m *Manager) Save(ctx context.Context) error {
	sessions := m.registry.ExportSessions()
	record := Record{
		SavedAt:  m.now().UTC(),
		Sessions: make([]SessionSnapshot, 0, len(sessions)),
	}
	for _, s := range sessions {
		record.Sessions = append(record.Sessions, FromSession(s))
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := m.store.Write(ctx, data); err != nil {
		return err
	}
	m.logger.Debug("snapshot_saved", zap.Int("sessions", len(record.Sessions)))
	return nil
}

// rawRecord defers per-session decoding so one corrupt entry cannot sink
// the rest of the record.
type rawRecord struct {
	SavedAt  time.Time         `json:"saved_at"`
	Sessions []json.RawMessage `json:"sessions"`
}

// Load restores every readable session into the registry and returns the
// number restored. A missing record is not an error.
func (m *Manager) Load(ctx context.Context) (int, error) {
	data, ok, err := m.store.Read(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		m.logger.Info("snapshot_missing")
		return 0, nil
	}

	var record rawRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return 0, fmt.Errorf("decode snapshot: %w", err)
	}

	restored := 0
	for i, raw := range record.Sessions {
		var snap SessionSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			m.logger.Warn("snapshot_record_corrupt", zap.Int("index", i), zap.Error(err))
			continue
		}
		s, err := Restore(snap, m.registry.Validator())
		if err != nil {
			m.logger.Warn("snapshot_record_unreplayable",
				zap.Int("index", i),
				zap.String("session_id", snap.ID),
				zap.Error(err),
			)
			continue
		}
		m.registry.ImportSession(s)
		restored++
	}

	m.logger.Info("snapshot_loaded",
		zap.Int("restored", restored),
		zap.Int("skipped", len(record.Sessions)-restored),
		zap.Time("saved_at", record.SavedAt),
	)
	return restored, nil
}
