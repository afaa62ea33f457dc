package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ConfigItemID is the NV item holding the beacon configuration byte.
const ConfigItemID byte = 0x80

// NV reads and writes single-byte configuration items.
type NV struct {
	db *sql.DB
	id byte
}

// NewNV returns a store for item id backed by db.
func NewNV(db *sql.DB, id byte) *NV {
	return &NV{db: db, id: id}
}

// Read returns the stored byte; ok is false when the item was never
// written.
func (s *NV) Read(ctx context.Context) (byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM nv_items WHERE id = ?`, int(s.id)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read nv item 0x%02X: %w", s.id, err)
	}
	if len(value) != 1 {
		return 0, false, fmt.Errorf("read nv item 0x%02X: want 1 byte, got %d", s.id, len(value))
	}
	return value[0], true, nil
}

func (s *NV) Write(ctx context.Context, value byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nv_items (id, value) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET
			value = excluded.value,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
	`, int(s.id), []byte{value})
	if err != nil {
		return fmt.Errorf("write nv item 0x%02X: %w", s.id, err)
	}
	return nil
}

// HistoryEntry is one recorded write of an item.
type HistoryEntry struct {
	Value     byte   `json:"value"`
	WrittenAt string `json:"written_at"`
}

// History returns the most recent writes of the item, newest first.
func (s *NV) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT value, written_at FROM nv_history
		WHERE id = ? ORDER BY seq DESC LIMIT ?
	`, int(s.id), limit)
	if err != nil {
		return nil, fmt.Errorf("nv history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			value []byte
			e     HistoryEntry
		)
		if err := rows.Scan(&value, &e.WrittenAt); err != nil {
			return nil, fmt.Errorf("nv history scan: %w", err)
		}
		if len(value) > 0 {
			e.Value = value[0]
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *NV) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Memory is a volatile store.
type Memory struct {
	mu    sync.Mutex
	value byte
	ok    bool
}

func (m *Memory) Read(context.Context) (byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.ok, nil
}

func (m *Memory) Write(_ context.Context, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value, m.ok = value, true
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }
