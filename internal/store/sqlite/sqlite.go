// Package sqlite mirrors internal/state's room store into a local SQLite
// database — an alternative to internal/store/postgres for single-box
// deployments that want a persistence mirror without standing up a
// separate Postgres instance or linking cgo. Same shape as the Postgres
// mirror, since both exist to serve the same SPEC_FULL domain-stack
// entry (an optional State Store mirror for multi-instance or
// crash-recovery scenarios), just over modernc.org/sqlite's pure-Go
// driver instead of pgx.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Mirror write-throughs internal/state.RoomState snapshots to a
// `room_states` table, keyed by room ID.
type Mirror struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[string][]byte
}

// New wraps an existing *sql.DB opened with the "sqlite" driver
// (modernc.org/sqlite registers itself under that name).
func New(db *sql.DB) *Mirror {
	return &Mirror{db: db, cache: make(map[string][]byte)}
}

// Open opens a SQLite database file at path and returns a ready-to-use
// Mirror with its schema created.
func Open(ctx context.Context, path string) (*Mirror, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	m := New(db)
	if err := m.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// EnsureSchema creates the room_states table if it doesn't already exist.
func (m *Mirror) EnsureSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS room_states (
			room_id    TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create room_states table: %w", err)
	}
	return nil
}

// Save upserts a room's serialized state.
func (m *Mirror) Save(ctx context.Context, roomID string, data []byte) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO room_states (room_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		roomID, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save room state: %w", err)
	}

	m.mu.Lock()
	m.cache[roomID] = data
	m.mu.Unlock()
	return nil
}

// Load returns a room's last-saved state, preferring the in-memory cache
// over a round trip when available.
func (m *Mirror) Load(ctx context.Context, roomID string) ([]byte, bool, error) {
	m.mu.RLock()
	cached, ok := m.cache[roomID]
	m.mu.RUnlock()
	if ok {
		return cached, true, nil
	}

	var data string
	err := m.db.QueryRowContext(ctx,
		`SELECT data FROM room_states WHERE room_id = ?`, roomID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load room state: %w", err)
	}

	out := []byte(data)
	m.mu.Lock()
	m.cache[roomID] = out
	m.mu.Unlock()
	return out, true, nil
}

// LoadAll returns every mirrored room's state.
func (m *Mirror) LoadAll(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT room_id, data FROM room_states`)
	if err != nil {
		return nil, fmt.Errorf("load all room states: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var roomID, data string
		if err := rows.Scan(&roomID, &data); err != nil {
			return nil, fmt.Errorf("scan room state: %w", err)
		}
		out[roomID] = json.RawMessage(data)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (m *Mirror) Close() error {
	return m.db.Close()
}
