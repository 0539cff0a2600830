package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known meta keys.
const (
	MetaHome       = "home"
	MetaPlanner    = "planner"
	MetaExportMeta = "exportMeta"
	MetaLastPull   = "sync.lastPull"
	MetaLastPush   = "sync.lastPush"
)

// MetaStore is a small JSON key/value table.
type MetaStore struct {
	store *Store
}

// GetRaw returns the stored JSON for key, or nil when unset.
func (ms *MetaStore) GetRaw(key string) (json.RawMessage, error) {
	var value string
	err := ms.store.db.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}

// Get decodes the value for key into dst. It reports whether the key exists.
func (ms *MetaStore) Get(key string, dst any) (bool, error) {
	raw, err := ms.GetRaw(key)
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("failed to decode meta %s: %w", key, err)
	}
	return true, nil
}

// SetRaw stores raw JSON under key. A nil value removes the key.
func (ms *MetaStore) SetRaw(tx *Tx, key string, raw json.RawMessage) error {
	if raw == nil {
		_, err := tx.Exec("DELETE FROM meta WHERE key = ?", key)
		if err != nil {
			return fmt.Errorf("failed to clear meta %s: %w", key, err)
		}
		return nil
	}
	_, err := tx.Exec(`
		INSERT INTO meta (key, value, updated_at) VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(raw))
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

// Set marshals value and stores it under key.
func (ms *MetaStore) Set(tx *Tx, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode meta %s: %w", key, err)
	}
	return ms.SetRaw(tx, key, data)
}
