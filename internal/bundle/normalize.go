package bundle

import (
	"fmt"
	"strings"

	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/id"
)

// Normalize classifies raw and builds a consistent entity graph from it.
func Normalize(raw []byte) (*Graph, error) {
	c, err := Classify(raw)
	if err != nil {
		return nil, err
	}
	switch c.Shape {
	case ShapeVersioned:
		return normalizeVersioned(c.Versioned), nil
	case ShapeLegacy:
		return normalizeLegacy(c.Legacy), nil
	default:
		return nil, &ShapeError{Reason: "unclassified input"}
	}
}

// NormalizeSnapshot applies the versioned repairs to records that did not
// come from a file, such as a remote pull.
func NormalizeSnapshot(snap *domain.Snapshot) *Graph {
	doc := &VersionedDoc{Version: CurrentVersion}
	for _, r := range snap.Rooms {
		doc.Rooms = append(doc.Rooms, RoomEntry{Room: r})
	}
	for _, m := range snap.Measurements {
		doc.Measurements = append(doc.Measurements, MeasurementEntry{Measurement: m})
	}
	for _, it := range snap.Items {
		doc.Items = append(doc.Items, ItemEntry{Item: it})
	}
	for _, o := range snap.Options {
		doc.Options = append(doc.Options, OptionEntry{Option: o})
	}
	for _, s := range snap.Stores {
		doc.Stores = append(doc.Stores, StoreEntry{Store: s})
	}
	return normalizeVersioned(doc)
}

// roomIndex tracks rooms while references are being resolved.
type roomIndex struct {
	g       *Graph
	byID    map[string]int
	byKey   map[string]string
	aliases map[string]string
	maxSort float64
	hasSort bool
}

func newRoomIndex(g *Graph) *roomIndex {
	return &roomIndex{
		g:       g,
		byID:    make(map[string]int),
		byKey:   make(map[string]string),
		aliases: make(map[string]string),
	}
}

// add registers a room, collapsing it into an earlier live room with the same
// normalized name. It returns the id the room is known by.
func (ri *roomIndex) add(r domain.Room) string {
	if _, dup := ri.byID[r.ID]; dup {
		return r.ID
	}
	key := r.Key()
	if !r.IsDeleted() {
		if existing, ok := ri.byKey[key]; ok {
			ri.aliases[r.ID] = existing
			ri.g.Warnings = append(ri.g.Warnings, fmt.Sprintf("room %q merged into %s (duplicate name)", r.Name, existing))
			return existing
		}
		ri.byKey[key] = r.ID
	}
	if r.Sort != nil && (!ri.hasSort || *r.Sort > ri.maxSort) {
		ri.maxSort = *r.Sort
		ri.hasSort = true
	}
	ri.byID[r.ID] = len(ri.g.Rooms)
	ri.g.Rooms = append(ri.g.Rooms, r)
	return r.ID
}

// resolve maps a raw room reference to a room id, creating a placeholder room
// when nothing matches.
func (ri *roomIndex) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if alias, ok := ri.aliases[ref]; ok {
		return alias
	}
	if _, ok := ri.byID[ref]; ok {
		return ref
	}
	if ref != "" {
		if existing, ok := ri.byKey[domain.NormalizeKey(ref)]; ok {
			return existing
		}
	}

	placeholderID := ref
	name := placeholderName(ref)
	if ref == "" {
		placeholderID = id.Synthetic(domain.KindRoom, "unassigned")
		if existing, ok := ri.byKey[domain.NormalizeKey(name)]; ok {
			return existing
		}
	}
	next := 0.0
	if ri.hasSort {
		next = ri.maxSort + 1
	}
	room := domain.Room{
		Base: domain.Base{
			ID:         placeholderID,
			SyncState:  domain.SyncDirty,
			Sort:       &next,
			Provenance: domain.Provenance{CreatedBy: domain.ActorSystem, DataSource: domain.DataSourceEstimated},
		},
		Name: name,
	}
	ri.g.Warnings = append(ri.g.Warnings, fmt.Sprintf("created placeholder room %q for missing reference", name))
	if ri.g.Placeholders == nil {
		ri.g.Placeholders = make(map[string]bool)
	}
	ri.g.Placeholders[placeholderID] = true
	return ri.add(room)
}

// placeholderName derives a display name from a raw room reference.
func placeholderName(ref string) string {
	if ref == "" {
		return "Unassigned"
	}
	lower := strings.ToLower(ref)
	for _, prefix := range []string{"room_", "room-"} {
		if strings.HasPrefix(lower, prefix) && len(ref) > len(prefix) {
			if id.IsGenerated(ref) {
				return "Room " + ref[len(prefix):len(prefix)+8]
			}
			return titleWords(ref[len(prefix):])
		}
	}
	return ref
}

func titleWords(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func normalizeVersioned(doc *VersionedDoc) *Graph {
	g := &Graph{
		Shape:      ShapeVersioned,
		Version:    doc.Version,
		ExportMeta: doc.ExportMeta,
		Home:       doc.Home,
		Planner:    doc.Planner,
	}
	rooms := newRoomIndex(g)

	for i, e := range doc.Rooms {
		r := e.Room
		if strings.TrimSpace(r.Name) == "" {
			if r.ID != "" {
				r.Name = placeholderName(r.ID)
			} else {
				r.Name = fmt.Sprintf("Room %d", i+1)
			}
		}
		if r.ID == "" {
			r.ID = id.Synthetic(domain.KindRoom, r.Key())
		}
		defaultSync(&r.Base)
		known := rooms.add(r)
		addAttachments(g, domain.KindRoom, known, e.Attachments)
	}

	seenItems := make(map[string]bool)
	for i, e := range doc.Items {
		it := e.Item
		if it.ID == "" {
			it.ID = id.Synthetic(domain.KindItem, fmt.Sprintf("%d:%s", i, it.Name))
		}
		if seenItems[it.ID] {
			g.Warnings = append(g.Warnings, fmt.Sprintf("duplicate item id %s ignored", it.ID))
			continue
		}
		seenItems[it.ID] = true
		it.Room = rooms.resolve(it.Room)
		repairItem(&it)
		g.Items = append(g.Items, it)
		addAttachments(g, domain.KindItem, it.ID, e.Attachments)
	}

	seenOptions := make(map[string]bool)
	for i, e := range doc.Options {
		o := e.Option
		if o.ID == "" {
			o.ID = id.Synthetic(domain.KindOption, fmt.Sprintf("%d:%s:%s", i, o.ItemID, o.Title))
		}
		if seenOptions[o.ID] {
			continue
		}
		seenOptions[o.ID] = true
		repairOption(&o)
		if !seenItems[o.ItemID] {
			warning := fmt.Sprintf("option %q dropped: item %q not found", o.Title, o.ItemID)
			g.Warnings = append(g.Warnings, warning)
			ref := ItemRef{Kind: domain.KindOption, Option: &o, ItemID: o.ItemID, Warning: warning}
			if set, ok := attachmentSet(domain.KindOption, o.ID, e.Attachments); ok {
				ref.Attachments = &set
			}
			g.Dangling = append(g.Dangling, ref)
			continue
		}
		g.Options = append(g.Options, o)
		addAttachments(g, domain.KindOption, o.ID, e.Attachments)
	}

	for i, e := range doc.Measurements {
		m := e.Measurement
		if m.ID == "" {
			m.ID = id.Synthetic(domain.KindMeasurement, fmt.Sprintf("%d:%s:%s", i, m.Room, m.Label))
		}
		m.Room = rooms.resolve(m.Room)
		if m.ForItemID != "" && !seenItems[m.ForItemID] {
			warning := fmt.Sprintf("measurement %q: cleared unknown item scope %q", m.Label, m.ForItemID)
			g.Warnings = append(g.Warnings, warning)
			g.Dangling = append(g.Dangling, ItemRef{Kind: domain.KindMeasurement, MeasurementID: m.ID, ItemID: m.ForItemID, Warning: warning})
			m.ForItemID = ""
		}
		m.Confidence = domain.ParseConfidence(string(m.Confidence))
		defaultSync(&m.Base)
		g.Measurements = append(g.Measurements, m)
		addAttachments(g, domain.KindMeasurement, m.ID, e.Attachments)
	}

	storeKeys := make(map[string]bool)
	for _, e := range doc.Stores {
		s := e.Store
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			g.Warnings = append(g.Warnings, "store without a name dropped")
			continue
		}
		if !s.IsDeleted() {
			if storeKeys[s.Key()] {
				g.Warnings = append(g.Warnings, fmt.Sprintf("duplicate store %q dropped", s.Name))
				continue
			}
			storeKeys[s.Key()] = true
		}
		if s.ID == "" {
			s.ID = id.Synthetic(domain.KindStore, s.Key())
		}
		s.DiscountType = domain.ParseDiscountType(string(s.DiscountType))
		defaultSync(&s.Base)
		g.Stores = append(g.Stores, s)
		addAttachments(g, domain.KindStore, s.ID, e.Attachments)
	}

	enforceSelection(g)
	return g
}

func defaultSync(b *domain.Base) {
	if b.SyncState != domain.SyncClean && b.SyncState != domain.SyncDeleted {
		b.SyncState = domain.SyncDirty
	}
}

func repairItem(it *domain.Item) {
	defaultSync(&it.Base)
	if status, ok := domain.ParseStatus(string(it.Status)); ok {
		it.Status = status
	} else {
		it.Status = domain.StatusIdea
	}
	if it.Qty < 1 {
		it.Qty = 1
	}
	if it.Priority != nil && (*it.Priority < 1 || *it.Priority > 5) {
		it.Priority = nil
	}
	it.DiscountType = domain.ParseDiscountType(string(it.DiscountType))
	if it.Dimensions.IsZero() {
		it.Dimensions = nil
	}
}

func repairOption(o *domain.Option) {
	defaultSync(&o.Base)
	if o.Priority != nil && (*o.Priority < 1 || *o.Priority > 5) {
		o.Priority = nil
	}
	o.DiscountType = domain.ParseDiscountType(string(o.DiscountType))
	if o.Dimensions.IsZero() {
		o.Dimensions = nil
	}
}

func addAttachments(g *Graph, kind domain.Kind, parentID string, list *[]domain.Attachment) {
	if set, ok := attachmentSet(kind, parentID, list); ok {
		g.Attachments = append(g.Attachments, set)
	}
}

func attachmentSet(kind domain.Kind, parentID string, list *[]domain.Attachment) (AttachmentSet, bool) {
	if list == nil {
		return AttachmentSet{}, false
	}
	set := AttachmentSet{ParentKind: kind, ParentID: parentID}
	for i, a := range *list {
		if a.ID == "" {
			a.ID = id.SyntheticAttachment(fmt.Sprintf("%s/%s:%d:%s", kind, parentID, i, a.URL))
		}
		a.ParentKind = kind
		a.ParentID = parentID
		set.Attachments = append(set.Attachments, a)
	}
	return set, true
}

// enforceSelection keeps at most one selected live option per item and makes
// Item.SelectedOptionID agree with it. An explicit SelectedOptionID wins over
// option flags.
func enforceSelection(g *Graph) {
	optionIdx := make(map[string]int, len(g.Options))
	byItem := make(map[string][]int)
	for i := range g.Options {
		optionIdx[g.Options[i].ID] = i
		byItem[g.Options[i].ItemID] = append(byItem[g.Options[i].ItemID], i)
	}

	for i := range g.Items {
		it := &g.Items[i]
		chosen := ""
		if it.SelectedOptionID != "" {
			idx, ok := optionIdx[it.SelectedOptionID]
			if ok && g.Options[idx].ItemID == it.ID && !g.Options[idx].IsDeleted() {
				chosen = it.SelectedOptionID
			} else {
				g.Warnings = append(g.Warnings, fmt.Sprintf("item %s: cleared dangling selected option %s", it.ID, it.SelectedOptionID))
			}
		}
		if chosen == "" {
			for _, idx := range byItem[it.ID] {
				o := &g.Options[idx]
				if o.Selected && !o.IsDeleted() {
					chosen = o.ID
					break
				}
			}
		}
		it.SelectedOptionID = chosen
		for _, idx := range byItem[it.ID] {
			g.Options[idx].Selected = chosen != "" && g.Options[idx].ID == chosen
		}
	}
}
