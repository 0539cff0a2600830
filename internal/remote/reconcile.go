// Package remote reconciles the local store with a remote record service.
//
// The remote keeps a small fixed set of typed columns per record plus one
// free-text notes field. Everything else the local model needs travels in a
// metadata block inside that field (see EncodeNotes). Only this package ever
// sees the encoded form.
package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lherron/homeplan/internal/bundle"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/id"
	"go.uber.org/zap"
)

// Record is one remote row.
type Record struct {
	ID       string      `json:"id,omitempty"`
	Kind     domain.Kind `json:"kind"`
	Title    string      `json:"title"`
	Status   string      `json:"status,omitempty"`
	Price    *float64    `json:"price,omitempty"`
	Quantity *int        `json:"quantity,omitempty"`
	Store    string      `json:"store,omitempty"`
	Link     string      `json:"link,omitempty"`
	Parent   string      `json:"parent,omitempty"`
	Notes    string      `json:"notes,omitempty"`
	Deleted  bool        `json:"deleted,omitempty"`
}

// Ack pairs the remote id assigned to a pushed record with its local id.
type Ack struct {
	RemoteID string `json:"remoteId"`
	RecordID string `json:"recordId"`
}

// Client is the remote collaborator. An empty view means unfiltered.
type Client interface {
	Pull(ctx context.Context, view string) ([]Record, error)
	Push(ctx context.Context, records []Record) ([]Ack, error)
}

// IDMap correlates local and remote ids for one kind.
type IDMap struct {
	LocalToRemote map[string]string
	RemoteToLocal map[string]string
}

// IDMaps holds one IDMap per kind.
type IDMaps map[domain.Kind]*IDMap

func (m IDMaps) add(kind domain.Kind, localID, remoteID string) {
	im, ok := m[kind]
	if !ok {
		im = &IDMap{LocalToRemote: make(map[string]string), RemoteToLocal: make(map[string]string)}
		m[kind] = im
	}
	im.LocalToRemote[localID] = remoteID
	im.RemoteToLocal[remoteID] = localID
}

// Local returns the local id for a remote id of the given kind.
func (m IDMaps) Local(kind domain.Kind, remoteID string) (string, bool) {
	im, ok := m[kind]
	if !ok {
		return "", false
	}
	l, ok := im.RemoteToLocal[remoteID]
	return l, ok
}

// ResolveParent finds the local id of a parent. The remote relation is tried
// first, then the local parent id carried in the metadata. A reference that
// matches neither is returned as is so the normalizer can still match a room
// by name.
func (m IDMaps) ResolveParent(kind domain.Kind, remoteParent, localParent string) string {
	if remoteParent != "" {
		if l, ok := m.Local(kind, remoteParent); ok {
			return l
		}
	}
	if localParent != "" {
		return localParent
	}
	return remoteParent
}

// ParentKind returns the kind a record of kind points at.
func ParentKind(kind domain.Kind) (domain.Kind, bool) {
	switch kind {
	case domain.KindItem, domain.KindMeasurement:
		return domain.KindRoom, true
	case domain.KindOption:
		return domain.KindItem, true
	default:
		return "", false
	}
}

// Pulled is the decoded result of a pull.
type Pulled struct {
	Graph     *bundle.Graph
	IDs       IDMaps
	Records   int
	Refetched bool
}

// Reconciler drives pulls and pushes against a Client.
type Reconciler struct {
	client Client
	logger *zap.Logger
}

// NewReconciler creates a reconciler. A nil logger discards output.
func NewReconciler(client Client, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{client: client, logger: logger}
}

// Pull fetches the records visible through view and decodes them into a
// normalized graph of clean records. When the view hides the companions of a
// kind it does return, the pull is repeated unfiltered.
func (r *Reconciler) Pull(ctx context.Context, view string) (*Pulled, error) {
	records, err := r.client.Pull(ctx, view)
	if err != nil {
		return nil, fmt.Errorf("remote pull failed: %w", err)
	}

	refetched := false
	if view != "" {
		if missing := MissingCompanions(records); missing != "" {
			r.logger.Warn("remote view is missing companion records; refetching unfiltered",
				zap.String("view", view),
				zap.String("missing", missing),
			)
			records, err = r.client.Pull(ctx, "")
			if err != nil {
				return nil, fmt.Errorf("remote pull (unfiltered) failed: %w", err)
			}
			refetched = true
		}
	}

	snap, ids, warnings := Decode(records)
	g := bundle.NormalizeSnapshot(snap)
	g.Warnings = append(warnings, g.Warnings...)

	r.logger.Info("remote pull decoded",
		zap.Int("records", len(records)),
		zap.Int("entities", g.Count()),
		zap.Bool("refetched", refetched),
		zap.Int("warnings", len(g.Warnings)),
	)
	return &Pulled{Graph: g, IDs: ids, Records: len(records), Refetched: refetched}, nil
}

// Push sends the records BuildPush selected and returns the acknowledgements.
func (r *Reconciler) Push(ctx context.Context, records []Record) ([]Ack, error) {
	if len(records) == 0 {
		return nil, nil
	}
	acks, err := r.client.Push(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("remote push failed: %w", err)
	}
	r.logger.Info("remote push acknowledged",
		zap.Int("sent", len(records)),
		zap.Int("acked", len(acks)),
	)
	return acks, nil
}

// MissingCompanions reports the first kind present in records whose parent
// kind is absent, e.g. "items without rooms". It returns "" when the set is
// complete.
func MissingCompanions(records []Record) string {
	present := make(map[domain.Kind]bool)
	for _, rec := range records {
		present[rec.Kind] = true
	}
	for _, kind := range []domain.Kind{domain.KindItem, domain.KindOption, domain.KindMeasurement} {
		parent, _ := ParentKind(kind)
		if present[kind] && !present[parent] {
			return fmt.Sprintf("%s without %s", kind, parent)
		}
	}
	return ""
}

type decoded struct {
	rec     Record
	notes   string
	meta    *Meta
	localID string
}

// Decode turns remote records into local entities. Records without a
// metadata block get a local id derived from their remote id, so repeated
// pulls agree. A record with neither is seeded from its position and title.
func Decode(records []Record) (*domain.Snapshot, IDMaps, []string) {
	ids := make(IDMaps)
	var warnings []string
	rows := make([]decoded, 0, len(records))
	for i, rec := range records {
		if !knownKind(rec.Kind) {
			warnings = append(warnings, fmt.Sprintf("remote record %s has unknown kind %q", rec.ID, rec.Kind))
			continue
		}
		notes, m := DecodeNotes(rec.Notes)
		d := decoded{rec: rec, notes: notes, meta: m}
		switch {
		case m != nil && m.LocalID != "":
			d.localID = m.LocalID
		case rec.ID != "":
			d.localID = id.Synthetic(rec.Kind, "remote:"+rec.ID)
		default:
			d.localID = id.Synthetic(rec.Kind, fmt.Sprintf("remote#%d:%s", i, rec.Title))
		}
		if rec.ID != "" {
			ids.add(rec.Kind, d.localID, rec.ID)
		}
		rows = append(rows, d)
	}

	snap := &domain.Snapshot{}
	for _, d := range rows {
		parent := ""
		if pk, ok := ParentKind(d.rec.Kind); ok {
			localParent := ""
			if d.meta != nil {
				localParent = d.meta.ParentLocalID
			}
			parent = ids.ResolveParent(pk, d.rec.Parent, localParent)
		}
		if err := appendDecoded(snap, d, parent); err != nil {
			warnings = append(warnings, err.Error())
		}
	}
	return snap, ids, warnings
}

func knownKind(kind domain.Kind) bool {
	for _, k := range domain.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// fromMeta fills dst from the embedded record. A record that does not decode
// is reported but the typed columns still produce an entity.
func fromMeta(d decoded, dst any) error {
	if d.meta == nil || len(d.meta.Record) == 0 {
		return nil
	}
	if err := json.Unmarshal(d.meta.Record, dst); err != nil {
		return fmt.Errorf("remote record %s: ignoring unreadable metadata: %v", d.rec.ID, err)
	}
	return nil
}

func pulledBase(b *domain.Base, d decoded) {
	b.ID = d.localID
	if d.rec.ID != "" {
		remoteID := d.rec.ID
		b.RemoteID = &remoteID
	} else {
		b.RemoteID = nil
	}
	b.SyncState = domain.SyncClean
	if d.rec.Deleted {
		b.SyncState = domain.SyncDeleted
	}
}

func appendDecoded(snap *domain.Snapshot, d decoded, parent string) error {
	rec := d.rec
	var metaErr error
	switch rec.Kind {
	case domain.KindRoom:
		var r domain.Room
		metaErr = fromMeta(d, &r)
		pulledBase(&r.Base, d)
		r.Name = rec.Title
		r.Notes = d.notes
		snap.Rooms = append(snap.Rooms, r)

	case domain.KindStore:
		var s domain.Store
		metaErr = fromMeta(d, &s)
		pulledBase(&s.Base, d)
		s.Name = rec.Title
		s.Notes = d.notes
		snap.Stores = append(snap.Stores, s)

	case domain.KindItem:
		var it domain.Item
		metaErr = fromMeta(d, &it)
		pulledBase(&it.Base, d)
		it.Name = rec.Title
		if status, ok := domain.ParseStatus(rec.Status); ok {
			it.Status = status
		}
		it.Price = rec.Price
		if rec.Quantity != nil {
			it.Qty = *rec.Quantity
		}
		it.Store = rec.Store
		it.Link = rec.Link
		it.Notes = d.notes
		it.Room = parent
		snap.Items = append(snap.Items, it)

	case domain.KindOption:
		var o domain.Option
		metaErr = fromMeta(d, &o)
		pulledBase(&o.Base, d)
		o.Title = rec.Title
		o.Price = rec.Price
		o.Store = rec.Store
		o.Link = rec.Link
		o.Notes = d.notes
		o.ItemID = parent
		snap.Options = append(snap.Options, o)

	case domain.KindMeasurement:
		var m domain.Measurement
		metaErr = fromMeta(d, &m)
		pulledBase(&m.Base, d)
		m.Label = rec.Title
		m.Notes = d.notes
		m.Room = parent
		snap.Measurements = append(snap.Measurements, m)
	}
	return metaErr
}
