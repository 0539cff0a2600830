package remote

import (
	"encoding/json"
	"fmt"

	"github.com/lherron/homeplan/internal/domain"
)

// BuildPush encodes every record that has to reach the remote: dirty records
// and tombstones the remote still knows about. Parents come before children
// so a remote that resolves relations on insert sees them in order. Children
// whose parent has no remote id yet carry the local parent id in metadata.
func BuildPush(snap *domain.Snapshot) ([]Record, error) {
	remoteOf := make(map[string]string)
	for _, r := range snap.Rooms {
		if r.RemoteID != nil {
			remoteOf[r.ID] = *r.RemoteID
		}
	}
	for _, it := range snap.Items {
		if it.RemoteID != nil {
			remoteOf[it.ID] = *it.RemoteID
		}
	}

	var out []Record
	add := func(kind domain.Kind, b *domain.Base, rec Record, notes, parentLocal string, stripped any) error {
		if !needsPush(b) {
			return nil
		}
		data, err := json.Marshal(stripped)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", kind, b.ID, err)
		}
		rec.Kind = kind
		if b.RemoteID != nil {
			rec.ID = *b.RemoteID
		}
		rec.Deleted = b.IsDeleted()
		if parentLocal != "" {
			rec.Parent = remoteOf[parentLocal]
		}
		rec.Notes, err = EncodeNotes(notes, &Meta{
			LocalID:       b.ID,
			ParentLocalID: parentLocal,
			Kind:          kind,
			Record:        data,
		})
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	}

	for _, r := range snap.Rooms {
		notes := r.Notes
		r.Notes = ""
		if err := add(domain.KindRoom, &r.Base, Record{Title: r.Name}, notes, "", r); err != nil {
			return nil, err
		}
	}
	for _, s := range snap.Stores {
		notes := s.Notes
		s.Notes = ""
		if err := add(domain.KindStore, &s.Base, Record{Title: s.Name}, notes, "", s); err != nil {
			return nil, err
		}
	}
	for _, it := range snap.Items {
		notes := it.Notes
		it.Notes = ""
		qty := it.Qty
		rec := Record{
			Title:    it.Name,
			Status:   string(it.Status),
			Price:    it.Price,
			Quantity: &qty,
			Store:    it.Store,
			Link:     it.Link,
		}
		if err := add(domain.KindItem, &it.Base, rec, notes, it.Room, it); err != nil {
			return nil, err
		}
	}
	for _, o := range snap.Options {
		notes := o.Notes
		o.Notes = ""
		rec := Record{Title: o.Title, Price: o.Price, Store: o.Store, Link: o.Link}
		if err := add(domain.KindOption, &o.Base, rec, notes, o.ItemID, o); err != nil {
			return nil, err
		}
	}
	for _, m := range snap.Measurements {
		notes := m.Notes
		m.Notes = ""
		if err := add(domain.KindMeasurement, &m.Base, Record{Title: m.Label}, notes, m.Room, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func needsPush(b *domain.Base) bool {
	switch b.SyncState {
	case domain.SyncDirty:
		return true
	case domain.SyncDeleted:
		return b.RemoteID != nil
	default:
		return false
	}
}

// Versions records the updatedAt of every record BuildPush would send.
func Versions(snap *domain.Snapshot) map[string]int64 {
	out := make(map[string]int64)
	add := func(b *domain.Base) {
		if needsPush(b) {
			out[b.ID] = b.UpdatedAt
		}
	}
	for i := range snap.Rooms {
		add(&snap.Rooms[i].Base)
	}
	for i := range snap.Stores {
		add(&snap.Stores[i].Base)
	}
	for i := range snap.Items {
		add(&snap.Items[i].Base)
	}
	for i := range snap.Options {
		add(&snap.Options[i].Base)
	}
	for i := range snap.Measurements {
		add(&snap.Measurements[i].Base)
	}
	return out
}

// ApplyAcks returns the records changed by a successful push: acknowledged
// live records become clean with their remote id, acknowledged tombstones
// lose their remote id so they are never sent again. Acks that match no
// local record are returned separately.
//
// sent holds the versions that were pushed (see Versions). A record edited
// after its version was sent only takes the remote id and stays dirty. A nil
// sent map skips the check.
func ApplyAcks(snap *domain.Snapshot, acks []Ack, sent map[string]int64) (*domain.Snapshot, []Ack) {
	byLocal := make(map[string]Ack, len(acks))
	for _, a := range acks {
		byLocal[a.RecordID] = a
	}
	seen := make(map[string]bool, len(acks))
	mark := func(b *domain.Base) bool {
		a, ok := byLocal[b.ID]
		if !ok {
			return false
		}
		seen[b.ID] = true
		if v, ok := sent[b.ID]; ok && v != b.UpdatedAt {
			remoteID := a.RemoteID
			b.RemoteID = &remoteID
			return true
		}
		if b.IsDeleted() {
			b.RemoteID = nil
			return true
		}
		remoteID := a.RemoteID
		b.RemoteID = &remoteID
		b.SyncState = domain.SyncClean
		return true
	}

	out := &domain.Snapshot{}
	for _, r := range snap.Rooms {
		if mark(&r.Base) {
			out.Rooms = append(out.Rooms, r)
		}
	}
	for _, s := range snap.Stores {
		if mark(&s.Base) {
			out.Stores = append(out.Stores, s)
		}
	}
	for _, it := range snap.Items {
		if mark(&it.Base) {
			out.Items = append(out.Items, it)
		}
	}
	for _, o := range snap.Options {
		if mark(&o.Base) {
			out.Options = append(out.Options, o)
		}
	}
	for _, m := range snap.Measurements {
		if mark(&m.Base) {
			out.Measurements = append(out.Measurements, m)
		}
	}

	var unknown []Ack
	for _, a := range acks {
		if !seen[a.RecordID] {
			unknown = append(unknown, a)
		}
	}
	return out, unknown
}
