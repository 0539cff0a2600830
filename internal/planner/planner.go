// Package planner is the service object every consumer talks to. It owns the
// local store and turns user operations into validated, logged transactions.
//
// A Planner is constructed once at startup and passed by reference; there is
// no package-level state.
package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lherron/homeplan/internal/attach"
	"github.com/lherron/homeplan/internal/cursor"
	"github.com/lherron/homeplan/internal/diff"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/events"
	"github.com/lherron/homeplan/internal/id"
	"github.com/lherron/homeplan/internal/remote"
	"github.com/lherron/homeplan/internal/store"
	"go.uber.org/zap"
)

// Planner wraps the local store with the domain operations.
type Planner struct {
	store      *store.Store
	logger     *zap.Logger
	now        func() time.Time
	actor      domain.Actor
	attach     attach.Config
	client     remote.Client
	reconciler *remote.Reconciler
	view       string
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// WithActor sets who local edits are attributed to. Defaults to human.
func WithActor(a domain.Actor) Option {
	return func(p *Planner) { p.actor = a }
}

// WithAttach sets where attachment files live.
func WithAttach(cfg attach.Config) Option {
	return func(p *Planner) { p.attach = cfg }
}

// WithRemote enables Pull and Push against client. view is the filtered
// view requested on pull; empty means everything.
func WithRemote(client remote.Client, view string) Option {
	return func(p *Planner) {
		p.client = client
		p.view = view
	}
}

// New creates a Planner over st.
func New(st *store.Store, opts ...Option) *Planner {
	p := &Planner{
		store:  st,
		logger: zap.NewNop(),
		now:    time.Now,
		actor:  domain.ActorHuman,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client != nil {
		p.reconciler = remote.NewReconciler(p.client, p.logger.Named("remote"))
	}
	return p
}

// Store returns the underlying store.
func (p *Planner) Store() *store.Store { return p.store }

// Actor returns who edits are attributed to.
func (p *Planner) Actor() domain.Actor { return p.actor }

func (p *Planner) millis() int64 { return p.now().UnixMilli() }

// Snapshot loads the full local state, tombstones included.
func (p *Planner) Snapshot() (*domain.Snapshot, error) {
	return p.store.Snapshot()
}

// History returns the most recent event log entries.
func (p *Planner) History(limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return p.store.Events().Recent(limit)
}

// EventsSince returns event log entries after afterID, oldest first.
func (p *Planner) EventsSince(afterID int64, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return p.store.Events().Since(afterID, limit)
}

// HistoryPage returns one page of the event log, newest first, optionally
// limited to one record. token is the cursor returned by the previous page;
// the returned cursor is empty on the last page.
func (p *Planner) HistoryPage(resourceID, token string, limit int) ([]events.Event, string, error) {
	if limit <= 0 {
		limit = 50
	}
	c, err := cursor.Resume(token, resourceID)
	if err != nil {
		return nil, "", err
	}
	page, err := p.store.Events().Before(c.BeforeID, resourceID, limit)
	if err != nil {
		return nil, "", err
	}
	var last int64
	if len(page) > 0 {
		last = page[len(page)-1].ID
	}
	next, err := cursor.Next(last, resourceID, len(page), limit)
	if err != nil {
		return nil, "", err
	}
	return page, next, nil
}

// Home returns the stored home metadata, or nil.
func (p *Planner) Home() (json.RawMessage, error) {
	return p.store.Meta.GetRaw(store.MetaHome)
}

// SetHome replaces the home metadata document.
func (p *Planner) SetHome(raw json.RawMessage) error {
	if raw != nil && !json.Valid(raw) {
		return fmt.Errorf("home metadata is not valid JSON")
	}
	return p.store.WithTx(func(tx *store.Tx) error {
		if err := p.store.Meta.SetRaw(tx, store.MetaHome, raw); err != nil {
			return err
		}
		return tx.Events.LogEvent(tx.Tx, &events.Event{
			Actor:        string(p.actor),
			ResourceType: "meta",
			EventType:    "meta.home_updated",
		})
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func base[T any](v *T) *domain.Base {
	return any(v).(domain.Entity).Meta()
}

// clone deep-copies a record so a patch can never alias the stored version.
func clone[T any](v *T) (*T, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// stampNew fills bookkeeping for a record created locally.
func (p *Planner) stampNew(kind domain.Kind, b *domain.Base, now int64) {
	if b.ID == "" {
		b.ID = id.New(kind)
	}
	b.RemoteID = nil
	b.SyncState = domain.SyncDirty
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Provenance.StampCreated(p.actor, now)
	if p.actor == domain.ActorAI && b.Provenance.ReviewStatus == domain.ReviewNone {
		b.Provenance.ReviewStatus = domain.ReviewNeedsReview
	}
}

// stampEdit records changes on a live record.
func (p *Planner) stampEdit(b *domain.Base, changes []diff.Change, now int64) {
	b.SyncState = domain.SyncDirty
	b.UpdatedAt = now
	b.Provenance.StampEdited(p.actor, now)
	b.Provenance.AddModified(diff.Fields(changes)...)
	entries := make([]domain.ChangeEntry, 0, len(changes))
	for _, c := range changes {
		entries = append(entries, domain.ChangeEntry{Field: c.Field, From: c.From, To: c.To, By: p.actor, At: now})
	}
	b.Provenance.AppendChanges(entries...)
	if p.actor == domain.ActorAI {
		b.Provenance.ReviewStatus = domain.ReviewAIModified
	}
}

// stampDeleted turns a live record into a tombstone.
func (p *Planner) stampDeleted(b *domain.Base, now int64) {
	b.SyncState = domain.SyncDeleted
	b.UpdatedAt = now
	b.Provenance.StampEdited(p.actor, now)
}

// write validates v, stores it and appends an event.
func write[T any](p *Planner, tx *store.Tx, t *store.Table[T], v *T, eventType string, payload any) error {
	b := base(v)
	if !b.IsDeleted() {
		if err := domain.Validate(t.Kind(), any(v).(domain.Entity)); err != nil {
			return err
		}
	}
	if err := t.Put(tx, v); err != nil {
		return err
	}
	return tx.Events.LogEntity(tx.Tx, p.actor, t.Kind(), b.ID, eventType, payload)
}

// edit loads a live record, applies patch to a copy and returns both
// versions with their differences. Nothing is written.
func edit[T any](t *store.Table[T], recordID string, cmp func(a, b *T) []diff.Change, patch func(*T) error) (cur, next *T, changes []diff.Change, err error) {
	cur, err = t.GetLive(recordID)
	if err != nil {
		return nil, nil, nil, err
	}
	next, err = clone(cur)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to copy %s %s: %w", t.Kind(), recordID, err)
	}
	if err := patch(next); err != nil {
		return nil, nil, nil, err
	}
	nb, cb := base(next), base(cur)
	// bookkeeping is owned by the planner
	nb.ID, nb.RemoteID, nb.SyncState = cb.ID, cb.RemoteID, cb.SyncState
	nb.CreatedAt, nb.UpdatedAt, nb.Provenance = cb.CreatedAt, cb.UpdatedAt, cb.Provenance.Clone()
	return cur, next, cmp(cur, next), nil
}

// stampTouched marks a record dirty after an update that changed no field.
// Provenance is left alone.
func (p *Planner) stampTouched(b *domain.Base, now int64) {
	b.SyncState = domain.SyncDirty
	b.UpdatedAt = now
}

// update is edit followed by a single-record write. An update that changes
// nothing still marks the record dirty.
func update[T any](p *Planner, t *store.Table[T], recordID string, cmp func(a, b *T) []diff.Change, patch func(*T) error) (*T, []diff.Change, error) {
	_, next, changes, err := edit(t, recordID, cmp, patch)
	if err != nil {
		return nil, nil, err
	}
	if len(changes) == 0 {
		p.stampTouched(base(next), p.millis())
	} else {
		p.stampEdit(base(next), changes, p.millis())
	}
	err = p.store.WithTx(func(tx *store.Tx) error {
		return write(p, tx, t, next, "updated", changes)
	})
	if err != nil {
		return nil, nil, err
	}
	return next, changes, nil
}

// create stamps and stores a new record.
func create[T any](p *Planner, t *store.Table[T], v *T) (*T, error) {
	p.stampNew(t.Kind(), base(v), p.millis())
	err := p.store.WithTx(func(tx *store.Tx) error {
		return write(p, tx, t, v, "created", v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
