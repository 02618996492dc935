package snapshot

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// ErrCorrupt signals an unreadable persisted snapshot. Callers recover
// by treating the actuator as clean passthrough state.
var ErrCorrupt = errors.New("snapshot corrupt")

// Store provides versioned per-actuator snapshot storage backed by SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens the snapshot database and initializes the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS actuator_snapshot (
			actuator_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			version INTEGER DEFAULT 1,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create actuator_snapshot table: %w", err)
	}
	return nil
}

// Save persists the snapshot for an actuator, incrementing its version.
// Cheap enough to call on every state-affecting event.
func (s *Store) Save(actuatorID string, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Unix()
	_, err = s.db.Exec(`
		INSERT INTO actuator_snapshot (actuator_id, payload, version, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(actuator_id) DO UPDATE SET
			payload = excluded.payload,
			version = version + 1,
			updated_at = excluded.updated_at
	`, actuatorID, string(payload), now)

	if err == nil {
		log.Debug().
			Str("actuator", actuatorID).
			Int("active", len(snap.Active)).
			Str("selected", snap.Selected).
			Msg("Snapshot saved")
	}
	return err
}

// Load retrieves the snapshot for an actuator. Returns (nil, nil) when
// none exists and ErrCorrupt when the payload does not parse.
func (s *Store) Load(actuatorID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRow(`
		SELECT payload FROM actuator_snapshot WHERE actuator_id = ?
	`, actuatorID).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &snap, nil
}

// Delete removes the snapshot for one actuator.
func (s *Store) Delete(actuatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM actuator_snapshot WHERE actuator_id = ?`, actuatorID)
	return err
}

// Clear removes all snapshots (used by --reset-state).
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM actuator_snapshot`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
