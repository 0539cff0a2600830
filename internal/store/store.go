// Package store provides a persistence layer over the local SQLite database.
// Every entity kind lives in its own table with indexed bookkeeping columns
// and the full record as JSON. Writes happen inside transactions that also
// append to the event log; committed writes are announced on the change bus.
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lherron/homeplan/internal/db"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/events"
)

// Store is the root store that provides access to the per-kind tables.
type Store struct {
	db  *db.DB
	bus *events.Bus

	Rooms        *Table[domain.Room]
	Measurements *Table[domain.Measurement]
	Items        *Table[domain.Item]
	Options      *Table[domain.Option]
	Stores       *Table[domain.Store]
	Attachments  *AttachmentStore
	Meta         *MetaStore
}

// New creates a new Store wrapping the given database connection. bus may be
// nil when nobody listens for changes.
func New(database *db.DB, bus *events.Bus) *Store {
	if bus == nil {
		bus = &events.Bus{}
	}
	s := &Store{db: database, bus: bus}
	s.Rooms = &Table[domain.Room]{
		store:   s,
		kind:    domain.KindRoom,
		nameKey: func(r *domain.Room) string { return r.Key() },
		taken:   domain.ErrRoomNameTaken,
	}
	s.Measurements = &Table[domain.Measurement]{
		store:  s,
		kind:   domain.KindMeasurement,
		parent: func(m *domain.Measurement) string { return m.Room },
	}
	s.Items = &Table[domain.Item]{
		store:  s,
		kind:   domain.KindItem,
		parent: func(i *domain.Item) string { return i.Room },
	}
	s.Options = &Table[domain.Option]{
		store:  s,
		kind:   domain.KindOption,
		parent: func(o *domain.Option) string { return o.ItemID },
	}
	s.Stores = &Table[domain.Store]{
		store:   s,
		kind:    domain.KindStore,
		nameKey: func(st *domain.Store) string { return st.Key() },
		taken:   domain.ErrStoreNameTaken,
	}
	s.Attachments = &AttachmentStore{store: s}
	s.Meta = &MetaStore{store: s}
	return s
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

// Bus returns the change bus commits are published on.
func (s *Store) Bus() *events.Bus {
	return s.bus
}

// Events returns a writer for reading the event log.
func (s *Store) Events() *events.Writer {
	return events.NewWriter(s.db.DB)
}

// Tx is an open write transaction. It remembers which kinds were touched so
// the change can be published after commit.
type Tx struct {
	*sqlx.Tx
	Events  *events.Writer
	changes map[domain.Kind][]string
	wiped   bool
}

func (tx *Tx) touch(kind domain.Kind, id string) {
	if tx.changes == nil {
		tx.changes = make(map[domain.Kind][]string)
	}
	tx.changes[kind] = append(tx.changes[kind], id)
}

// WithTx executes fn within a transaction. If fn returns nil, the transaction
// is committed and the touched kinds are published; otherwise it is rolled
// back and nothing is published.
func (s *Store) WithTx(fn func(tx *Tx) error) error {
	sqlTx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	tx := &Tx{Tx: sqlTx, Events: events.NewWriter(s.db.DB)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if tx.wiped {
		s.bus.Publish(events.Change{Op: "reset"})
		return nil
	}
	for _, kind := range domain.Kinds {
		if ids, ok := tx.changes[kind]; ok {
			s.bus.Publish(events.Change{Kind: kind, IDs: ids, Op: "write"})
		}
	}
	return nil
}

// Snapshot loads every record of every kind, tombstones included.
func (s *Store) Snapshot() (*domain.Snapshot, error) {
	var (
		snap domain.Snapshot
		err  error
	)
	if snap.Rooms, err = s.Rooms.List(); err != nil {
		return nil, err
	}
	if snap.Measurements, err = s.Measurements.List(); err != nil {
		return nil, err
	}
	if snap.Items, err = s.Items.List(); err != nil {
		return nil, err
	}
	if snap.Options, err = s.Options.List(); err != nil {
		return nil, err
	}
	if snap.Stores, err = s.Stores.List(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Wipe removes every record, attachment and metadata key.
func (s *Store) Wipe(tx *Tx) error {
	tables := []string{"rooms", "measurements", "items", "options", "stores", "attachments", "meta"}
	for _, table := range tables {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	tx.wiped = true
	return nil
}

// PutSnapshot writes every record of snap in dependency order.
func (s *Store) PutSnapshot(tx *Tx, snap *domain.Snapshot) error {
	for i := range snap.Rooms {
		if err := s.Rooms.Put(tx, &snap.Rooms[i]); err != nil {
			return err
		}
	}
	for i := range snap.Stores {
		if err := s.Stores.Put(tx, &snap.Stores[i]); err != nil {
			return err
		}
	}
	for i := range snap.Items {
		if err := s.Items.Put(tx, &snap.Items[i]); err != nil {
			return err
		}
	}
	for i := range snap.Options {
		if err := s.Options.Put(tx, &snap.Options[i]); err != nil {
			return err
		}
	}
	for i := range snap.Measurements {
		if err := s.Measurements.Put(tx, &snap.Measurements[i]); err != nil {
			return err
		}
	}
	return nil
}
