// Package postgres mirrors internal/state's room store into Postgres for
// multi-instance deployments, where a single file-backed state.json can't
// be shared across processes. The file store stays the canonical
// implementation (state.json is always read/written locally); this is an
// additional write-through copy an operator can query or fail over from.
// Grounded on the teacher's internal/store/pg.PGSessionStore — same
// cache-then-DB read path and upsert-on-write pattern, narrowed from a
// full session/message history mirror to a single JSON blob per room.
package postgres

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

// New wraps an existing *sql.DB (opened with the pgx stdlib driver by the
// caller, matching how the teacher's doctor/migrate commands open theirs).
func New(db *sql.DB) *Mirror {
	return &Mirror{db: db, cache: make(map[string][]byte)}
}

// EnsureSchema creates the room_states table if it doesn't already exist.
// Deployments that also run `taskloop migrate` get this from a migration
// file instead; EnsureSchema exists for the common case of a single
// lightweight table that isn't worth a migration directory of its own.
func (m *Mirror) EnsureSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS room_states (
			room_id    TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create room_states table: %w", err)
	}
	return nil
}

// Save upserts a room's serialized state. data is expected to already be
// JSON (the caller marshals state.RoomState itself; this package doesn't
// import internal/state to avoid tying a persistence mirror to the exact
// in-memory room shape).
func (m *Mirror) Save(ctx context.Context, roomID string, data []byte) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO room_states (room_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id) DO UPDATE SET data = $2, updated_at = $3`,
		roomID, data, time.Now())
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

	var data []byte
	err := m.db.QueryRowContext(ctx,
		`SELECT data FROM room_states WHERE room_id = $1`, roomID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load room state: %w", err)
	}

	m.mu.Lock()
	m.cache[roomID] = data
	m.mu.Unlock()
	return data, true, nil
}

// LoadAll returns every mirrored room's state, for a cold-start restore
// into a fresh internal/state.Store.
func (m *Mirror) LoadAll(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT room_id, data FROM room_states`)
	if err != nil {
		return nil, fmt.Errorf("load all room states: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var roomID string
		var data []byte
		if err := rows.Scan(&roomID, &data); err != nil {
			return nil, fmt.Errorf("scan room state: %w", err)
		}
		out[roomID] = data
	}
	return out, rows.Err()
}
