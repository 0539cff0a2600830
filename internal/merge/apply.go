package merge

import (
	"fmt"

	"github.com/lherron/homeplan/internal/bundle"
	"github.com/lherron/homeplan/internal/diff"
	"github.com/lherron/homeplan/internal/domain"
)

type planner struct {
	res     *Result
	now     int64
	actor   domain.Actor
	session string
	// ids whose local tombstone was kept over a live incoming record
	keptTombstones map[string]bool
}

func meta[T any](v *T) *domain.Base {
	return any(v).(domain.Entity).Meta()
}

func (p *planner) planMerge(current *domain.Snapshot, g *bundle.Graph) {
	p.keptTombstones = make(map[string]bool)

	existingRooms := make(map[string]bool, len(current.Rooms))
	for _, r := range current.Rooms {
		existingRooms[r.ID] = true
	}
	var rooms []domain.Room
	for _, r := range g.Rooms {
		// a placeholder only stands in for a room the bundle did not carry
		if g.Placeholders[r.ID] && existingRooms[r.ID] {
			continue
		}
		rooms = append(rooms, r)
	}
	roomRemap := remapByKey(rooms, current.Rooms, func(r *domain.Room) string { return r.Key() })
	stores := append([]domain.Store(nil), g.Stores...)
	storeRemap := remapByKey(stores, current.Stores, func(s *domain.Store) string { return s.Key() })

	items := append([]domain.Item(nil), g.Items...)
	for i := range items {
		if to, ok := roomRemap[items[i].Room]; ok {
			items[i].Room = to
		}
	}
	measurements := append([]domain.Measurement(nil), g.Measurements...)
	for i := range measurements {
		if to, ok := roomRemap[measurements[i].Room]; ok {
			measurements[i].Room = to
		}
	}
	options := p.resolveDangling(current, g, measurements)
	for _, set := range g.Attachments {
		switch set.ParentKind {
		case domain.KindRoom:
			if to, ok := roomRemap[set.ParentID]; ok {
				set.ParentID = to
			}
		case domain.KindStore:
			if to, ok := storeRemap[set.ParentID]; ok {
				set.ParentID = to
			}
		}
		p.res.Attachments = append(p.res.Attachments, set)
	}
	for from, to := range roomRemap {
		p.res.Warnings = append(p.res.Warnings, fmt.Sprintf("room %s matched existing room %s by name", from, to))
	}
	for from, to := range storeRemap {
		p.res.Warnings = append(p.res.Warnings, fmt.Sprintf("store %s matched existing store %s by name", from, to))
	}

	w := &p.res.Writes
	var finalItems []domain.Item
	var finalOptions []domain.Option
	w.Rooms, _ = mergeKind(p, domain.KindRoom, current.Rooms, rooms, diff.Rooms)
	w.Stores, _ = mergeKind(p, domain.KindStore, current.Stores, stores, diff.Stores)
	w.Items, finalItems = mergeKind(p, domain.KindItem, current.Items, items, diff.Items)
	w.Options, finalOptions = mergeKind(p, domain.KindOption, current.Options, options, diff.Options)
	w.Measurements, _ = mergeKind(p, domain.KindMeasurement, current.Measurements, measurements, diff.Measurements)

	p.reconcileSelection(g.Items, options, finalItems, finalOptions)
}

// resolveDangling restores the item references Normalize had to repair
// when the item exists live locally. It returns the incoming options and
// updates measurements in place. Warnings for restored references are
// withdrawn.
func (p *planner) resolveDangling(current *domain.Snapshot, g *bundle.Graph, measurements []domain.Measurement) []domain.Option {
	options := append([]domain.Option(nil), g.Options...)
	if len(g.Dangling) == 0 {
		return options
	}
	liveItems := make(map[string]bool, len(current.Items))
	for _, it := range current.Items {
		if !it.IsDeleted() {
			liveItems[it.ID] = true
		}
	}
	byID := make(map[string]int, len(measurements))
	for i := range measurements {
		byID[measurements[i].ID] = i
	}

	resolved := make(map[string]bool)
	for _, ref := range g.Dangling {
		if !liveItems[ref.ItemID] {
			continue
		}
		switch ref.Kind {
		case domain.KindOption:
			options = append(options, *ref.Option)
			if ref.Attachments != nil {
				p.res.Attachments = append(p.res.Attachments, *ref.Attachments)
			}
		case domain.KindMeasurement:
			i, ok := byID[ref.MeasurementID]
			if !ok {
				continue
			}
			measurements[i].ForItemID = ref.ItemID
		default:
			continue
		}
		resolved[ref.Warning] = true
	}
	if len(resolved) > 0 {
		kept := p.res.Warnings[:0]
		for _, w := range p.res.Warnings {
			if !resolved[w] {
				kept = append(kept, w)
			}
		}
		p.res.Warnings = kept
	}
	return options
}

// remapByKey rewrites the ids of incoming records that are new locally but
// share a normalized name with an existing live record. It returns the
// old→new id map.
func remapByKey[T any](incoming, existing []T, key func(*T) string) map[string]string {
	existingIDs := make(map[string]bool, len(existing))
	liveKeys := make(map[string]string)
	for i := range existing {
		b := meta(&existing[i])
		existingIDs[b.ID] = true
		if !b.IsDeleted() {
			liveKeys[key(&existing[i])] = b.ID
		}
	}
	incomingIDs := make(map[string]bool, len(incoming))
	for i := range incoming {
		incomingIDs[meta(&incoming[i]).ID] = true
	}

	remap := make(map[string]string)
	for i := range incoming {
		b := meta(&incoming[i])
		if existingIDs[b.ID] || b.IsDeleted() {
			continue
		}
		target, ok := liveKeys[key(&incoming[i])]
		if !ok || incomingIDs[target] {
			continue
		}
		remap[b.ID] = target
		b.ID = target
	}
	return remap
}

// mergeKind merges incoming over existing. It returns the records to write
// and the resulting full set of records of this kind.
func mergeKind[T any](p *planner, kind domain.Kind, existing, incoming []T, cmp func(a, b *T) []diff.Change) (writes, final []T) {
	final = append([]T(nil), existing...)
	idx := make(map[string]int, len(final))
	for i := range final {
		idx[meta(&final[i]).ID] = i
	}

	for _, in := range incoming {
		rec := in
		recID := meta(&rec).ID
		if i, ok := idx[recID]; ok {
			out, changed := mergeRecord(p, kind, &final[i], &rec, cmp)
			if changed {
				final[i] = *out
				writes = append(writes, *out)
			}
			continue
		}
		p.insert(kind, meta(&rec))
		idx[recID] = len(final)
		final = append(final, rec)
		writes = append(writes, rec)
	}
	return writes, final
}

func (p *planner) insert(kind domain.Kind, b *domain.Base) {
	prov := &b.Provenance
	if prov.CreatedBy == domain.ActorNone {
		prov.CreatedBy = p.actor
	}
	if prov.CreatedAt == 0 {
		prov.CreatedAt = p.now
	}
	prov.LastEditedBy = p.actor
	prov.LastEditedAt = p.now
	if prov.ReviewStatus == domain.ReviewNone {
		prov.ReviewStatus = domain.ReviewNeedsReview
	}
	if prov.DataSource == domain.DataSourceNone {
		prov.DataSource = domain.DataSourceEstimated
	}
	if b.SyncState != domain.SyncDeleted {
		b.SyncState = domain.SyncDirty
	}
	if b.CreatedAt == 0 {
		b.CreatedAt = p.now
	}
	b.UpdatedAt = p.now
	p.res.Changes = append(p.res.Changes, RecordChange{Kind: kind, ID: b.ID, Op: OpInsert})
}

func mergeRecord[T any](p *planner, kind domain.Kind, cur, in *T, cmp func(a, b *T) []diff.Change) (*T, bool) {
	cb, ib := meta(cur), meta(in)
	changes := cmp(cur, in)

	if cb.IsDeleted() && !ib.IsDeleted() {
		if len(changes) > 0 {
			p.res.Warnings = append(p.res.Warnings, fmt.Sprintf("%s %s is deleted locally; incoming changes ignored", kind, cb.ID))
		}
		p.keptTombstones[cb.ID] = true
		p.res.Changes = append(p.res.Changes, RecordChange{Kind: kind, ID: cb.ID, Op: OpSkip})
		return nil, false
	}
	if ib.IsDeleted() && !cb.IsDeleted() {
		changes = append(changes, diff.Change{Field: "deleted", From: false, To: true})
	}
	if len(changes) == 0 {
		p.res.Changes = append(p.res.Changes, RecordChange{Kind: kind, ID: cb.ID, Op: OpSkip})
		return nil, false
	}

	out := *in
	ob := meta(&out)
	ob.ID = cb.ID
	if cb.RemoteID != nil {
		ob.RemoteID = cb.RemoteID
	}
	if cb.CreatedAt != 0 {
		ob.CreatedAt = cb.CreatedAt
	} else if ob.CreatedAt == 0 {
		ob.CreatedAt = p.now
	}
	ob.UpdatedAt = p.now
	if ib.IsDeleted() {
		ob.SyncState = domain.SyncDeleted
	} else {
		ob.SyncState = domain.SyncDirty
	}

	prov := cb.Provenance.Clone()
	prov.StampEdited(p.actor, p.now)
	for _, c := range changes {
		prov.AppendChanges(domain.ChangeEntry{
			Field:     c.Field,
			From:      c.From,
			To:        c.To,
			By:        p.actor,
			At:        p.now,
			SessionID: p.session,
		})
	}
	prov.AddModified(diff.Fields(changes)...)
	prov.ReviewStatus = domain.ReviewAIModified
	ob.Provenance = prov

	p.res.Changes = append(p.res.Changes, RecordChange{Kind: kind, ID: cb.ID, Op: OpUpdate, Changes: changes})
	return &out, true
}

// reconcileSelection restores the one-selected-option-per-item rule over the
// merged state. Incoming data wins: an item present in the bundle keeps its
// selectedOptionId, and an incoming selected option wins for items the
// bundle does not carry. Otherwise the local selection stands.
func (p *planner) reconcileSelection(inItems []domain.Item, inOptions []domain.Option, items []domain.Item, options []domain.Option) {
	incomingItems := make(map[string]bool, len(inItems))
	for _, it := range inItems {
		if !p.keptTombstones[it.ID] {
			incomingItems[it.ID] = true
		}
	}
	incomingPick := make(map[string]string)
	for _, o := range inOptions {
		if o.Selected && !o.IsDeleted() && !p.keptTombstones[o.ID] {
			if _, ok := incomingPick[o.ItemID]; !ok {
				incomingPick[o.ItemID] = o.ID
			}
		}
	}

	byItem := make(map[string][]int)
	optionIdx := make(map[string]int, len(options))
	for i := range options {
		byItem[options[i].ItemID] = append(byItem[options[i].ItemID], i)
		optionIdx[options[i].ID] = i
	}
	valid := func(itemID, optionID string) bool {
		i, ok := optionIdx[optionID]
		return ok && options[i].ItemID == itemID && !options[i].IsDeleted()
	}

	for i := range items {
		it := &items[i]
		chosen := ""
		switch {
		case incomingItems[it.ID]:
			if valid(it.ID, it.SelectedOptionID) {
				chosen = it.SelectedOptionID
			}
		case incomingPick[it.ID] != "":
			chosen = incomingPick[it.ID]
		case valid(it.ID, it.SelectedOptionID):
			chosen = it.SelectedOptionID
		default:
			for _, oi := range byItem[it.ID] {
				if options[oi].Selected && !options[oi].IsDeleted() {
					chosen = options[oi].ID
					break
				}
			}
		}

		if it.SelectedOptionID != chosen {
			it.SelectedOptionID = chosen
			p.touch(&it.Base)
			p.res.Writes.Items = upsert(p.res.Writes.Items, *it)
		}
		for _, oi := range byItem[it.ID] {
			o := &options[oi]
			want := o.ID == chosen
			if o.Selected != want {
				o.Selected = want
				p.touch(&o.Base)
				p.res.Writes.Options = upsert(p.res.Writes.Options, *o)
			}
		}
	}
}

func (p *planner) touch(b *domain.Base) {
	b.UpdatedAt = p.now
	if b.SyncState != domain.SyncDeleted {
		b.SyncState = domain.SyncDirty
	}
}

func upsert[T any](list []T, v T) []T {
	id := meta(&v).ID
	for i := range list {
		if meta(&list[i]).ID == id {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}
