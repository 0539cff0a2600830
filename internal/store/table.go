package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lherron/homeplan/internal/domain"
	"github.com/mattn/go-sqlite3"
)

// Table persists one entity kind.
type Table[T any] struct {
	store   *Store
	kind    domain.Kind
	nameKey func(*T) string // unique among live rows when set
	parent  func(*T) string
	taken   error
}

type row struct {
	ID        string   `db:"id"`
	RemoteID  *string  `db:"remote_id"`
	SyncState string   `db:"sync_state"`
	Sort      *float64 `db:"sort"`
	NameKey   *string  `db:"name_key"`
	ParentID  *string  `db:"parent_id"`
	CreatedAt int64    `db:"created_at"`
	UpdatedAt int64    `db:"updated_at"`
	Data      string   `db:"data"`
}

// Kind returns the entity kind stored in the table.
func (t *Table[T]) Kind() domain.Kind { return t.kind }

func meta[T any](v *T) *domain.Base {
	return any(v).(domain.Entity).Meta()
}

func (t *Table[T]) decode(data string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("failed to decode %s record: %w", t.kind, err)
	}
	return v, nil
}

func (t *Table[T]) decodeAll(datas []string) ([]T, error) {
	out := make([]T, 0, len(datas))
	for _, d := range datas {
		v, err := t.decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Get returns the record with the given id, tombstones included.
func (t *Table[T]) Get(id string) (*T, error) {
	var data string
	err := t.store.db.Get(&data, "SELECT data FROM "+string(t.kind)+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", t.kind, id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", t.kind, id, err)
	}
	v, err := t.decode(data)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetLive is Get but treats tombstones as missing.
func (t *Table[T]) GetLive(id string) (*T, error) {
	v, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if meta(v).IsDeleted() {
		return nil, fmt.Errorf("%s %s: %w", t.kind, id, domain.ErrNotFound)
	}
	return v, nil
}

// List returns every record in insertion order, tombstones included.
func (t *Table[T]) List() ([]T, error) {
	var datas []string
	if err := t.store.db.Select(&datas, "SELECT data FROM "+string(t.kind)+" ORDER BY rowid"); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.kind, err)
	}
	return t.decodeAll(datas)
}

// ListByParent returns the live records whose parent column equals parentID.
func (t *Table[T]) ListByParent(parentID string) ([]T, error) {
	var datas []string
	err := t.store.db.Select(&datas,
		"SELECT data FROM "+string(t.kind)+" WHERE parent_id = ? AND sync_state != 'deleted' ORDER BY rowid", parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s for %s: %w", t.kind, parentID, err)
	}
	return t.decodeAll(datas)
}

// ListDirty returns records that still need to be pushed.
func (t *Table[T]) ListDirty() ([]T, error) {
	var datas []string
	err := t.store.db.Select(&datas,
		"SELECT data FROM "+string(t.kind)+" WHERE sync_state != 'clean' ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list dirty %s: %w", t.kind, err)
	}
	return t.decodeAll(datas)
}

// FindByRemoteID returns the record carrying the given remote id.
func (t *Table[T]) FindByRemoteID(remoteID string) (*T, error) {
	var data string
	err := t.store.db.Get(&data, "SELECT data FROM "+string(t.kind)+" WHERE remote_id = ? LIMIT 1", remoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s with remote id %s: %w", t.kind, remoteID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s by remote id: %w", t.kind, err)
	}
	v, err := t.decode(data)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FindByName returns the live record whose normalized name matches.
func (t *Table[T]) FindByName(name string) (*T, error) {
	if t.nameKey == nil {
		return nil, fmt.Errorf("%s records have no unique name", t.kind)
	}
	var data string
	err := t.store.db.Get(&data,
		"SELECT data FROM "+string(t.kind)+" WHERE name_key = ? AND sync_state != 'deleted'", domain.NormalizeKey(name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s named %q: %w", t.kind, name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s by name: %w", t.kind, err)
	}
	v, err := t.decode(data)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Put inserts or replaces v.
func (t *Table[T]) Put(tx *Tx, v *T) error {
	b := meta(v)
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", t.kind, b.ID, err)
	}
	r := row{
		ID:        b.ID,
		RemoteID:  b.RemoteID,
		SyncState: string(b.SyncState),
		Sort:      b.Sort,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
		Data:      string(data),
	}
	if t.nameKey != nil {
		key := t.nameKey(v)
		r.NameKey = &key
	}
	if t.parent != nil {
		if p := t.parent(v); p != "" {
			r.ParentID = &p
		}
	}

	_, err = tx.NamedExec(`
		INSERT INTO `+string(t.kind)+` (id, remote_id, sync_state, sort, name_key, parent_id, created_at, updated_at, data)
		VALUES (:id, :remote_id, :sync_state, :sort, :name_key, :parent_id, :created_at, :updated_at, :data)
		ON CONFLICT(id) DO UPDATE SET
			remote_id = excluded.remote_id,
			sync_state = excluded.sync_state,
			sort = excluded.sort,
			name_key = excluded.name_key,
			parent_id = excluded.parent_id,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			data = excluded.data
	`, r)
	if err != nil {
		var sqliteErr sqlite3.Error
		if t.taken != nil && errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %q", t.taken, metaName(v))
		}
		return fmt.Errorf("failed to write %s %s: %w", t.kind, b.ID, err)
	}
	tx.touch(t.kind, b.ID)
	return nil
}

func metaName(v any) string {
	switch e := v.(type) {
	case *domain.Room:
		return e.Name
	case *domain.Store:
		return e.Name
	default:
		return ""
	}
}

// Purge removes a record outright. Used once a deletion is confirmed remotely.
func (t *Table[T]) Purge(tx *Tx, id string) error {
	if _, err := tx.Exec("DELETE FROM "+string(t.kind)+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to purge %s %s: %w", t.kind, id, err)
	}
	tx.touch(t.kind, id)
	return nil
}

// Count returns the number of live records.
func (t *Table[T]) Count() (int, error) {
	var n int
	if err := t.store.db.Get(&n, "SELECT COUNT(*) FROM "+string(t.kind)+" WHERE sync_state != 'deleted'"); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.kind, err)
	}
	return n, nil
}
