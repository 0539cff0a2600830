package bundle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/id"
)

// DefaultLegacyRoom receives legacy items and measurements without a room.
const DefaultLegacyRoom = "General"

func normalizeLegacy(doc *LegacyDoc) *Graph {
	g := &Graph{Shape: ShapeLegacy, Version: 0}
	g.Home = legacyHome(doc)
	rooms := newRoomIndex(g)

	// Synthesize the room set from every distinct room name in use.
	roomFor := func(name string) string {
		name = strings.TrimSpace(name)
		if name == "" {
			name = DefaultLegacyRoom
		}
		if existing, ok := rooms.byKey[domain.NormalizeKey(name)]; ok {
			return existing
		}
		sort := float64(len(g.Rooms))
		return rooms.add(domain.Room{
			Base: domain.Base{
				ID:        id.Synthetic(domain.KindRoom, domain.NormalizeKey(name)),
				SyncState: domain.SyncDirty,
				Sort:      &sort,
			},
			Name: name,
		})
	}
	for _, it := range doc.Items {
		roomFor(it.Room)
	}
	for _, m := range doc.Measurements {
		roomFor(m.Room)
	}
	if len(g.Rooms) == 0 {
		roomFor(DefaultLegacyRoom)
	}

	itemsByTitle := make(map[string]string)
	storeNames := make([]string, 0)
	for i, li := range doc.Items {
		title := strings.TrimSpace(li.Title)
		if title == "" {
			title = strings.TrimSpace(li.Name)
		}
		itemID := li.ID
		if itemID == "" {
			itemID = id.Synthetic(domain.KindItem, fmt.Sprintf("legacy:%d:%s", i, title))
		}
		it := domain.Item{
			Base:     domain.Base{ID: itemID, SyncState: domain.SyncDirty},
			Name:     title,
			Room:     roomFor(li.Room),
			Category: li.Category,
			Status:   domain.ItemStatus(li.Status),
			Price:    li.Price,
			Store:    strings.TrimSpace(li.Store),
			Link:     li.Link,
			Notes:    li.Notes,
			Priority: li.Priority,
			Tags:     li.Tags,
			Specs:    li.Specs,
		}
		if li.Quantity != nil {
			it.Qty = *li.Quantity
		}
		it.Dimensions = li.Dimensions
		if it.Dimensions.IsZero() {
			it.Dimensions = dimensionsFromSpecs(li.Specs)
		}
		repairItem(&it)
		g.Items = append(g.Items, it)
		if _, taken := itemsByTitle[domain.NormalizeKey(title)]; !taken {
			itemsByTitle[domain.NormalizeKey(title)] = it.ID
		}
		storeNames = append(storeNames, it.Store)
	}

	for i, lo := range doc.Options {
		itemID, ok := itemsByTitle[domain.NormalizeKey(lo.ParentTitle)]
		if !ok {
			g.Warnings = append(g.Warnings, fmt.Sprintf("option %q dropped: no item titled %q", lo.Title, lo.ParentTitle))
			continue
		}
		o := domain.Option{
			Base:           domain.Base{ID: id.Synthetic(domain.KindOption, fmt.Sprintf("legacy:%d:%s:%s", i, lo.ParentTitle, lo.Title)), SyncState: domain.SyncDirty},
			ItemID:         itemID,
			Title:          lo.Title,
			Store:          strings.TrimSpace(lo.Store),
			Link:           lo.Link,
			PromoCode:      lo.Promo,
			Price:          lo.Price,
			Shipping:       lo.Shipping,
			TaxEstimate:    lo.Tax,
			Discount:       lo.Discount,
			DimensionsText: lo.Dimensions,
			Specs:          lo.Specs,
			Notes:          lo.Notes,
			Selected:       lo.Selected,
		}
		repairOption(&o)
		g.Options = append(g.Options, o)
		storeNames = append(storeNames, o.Store)
	}

	for i, lm := range doc.Measurements {
		m := domain.Measurement{
			Base:       domain.Base{ID: id.Synthetic(domain.KindMeasurement, fmt.Sprintf("legacy:%d:%s:%s", i, lm.Room, lm.Label)), SyncState: domain.SyncDirty},
			Room:       roomFor(lm.Room),
			Label:      lm.Label,
			Confidence: domain.ParseConfidence(lm.Confidence),
			Notes:      lm.Notes,
		}
		if lm.Value != nil {
			unit, err := domain.ParseUnit(lm.Unit)
			if err != nil {
				g.Warnings = append(g.Warnings, fmt.Sprintf("measurement %q: %v, assuming inches", lm.Label, err))
				unit = domain.UnitInches
			}
			v := domain.ToInches(*lm.Value, unit)
			m.ValueIn = &v
		}
		g.Measurements = append(g.Measurements, m)
	}

	seenStores := make(map[string]bool)
	for _, name := range storeNames {
		key := domain.NormalizeKey(name)
		if key == "" || seenStores[key] {
			continue
		}
		seenStores[key] = true
		g.Stores = append(g.Stores, domain.Store{
			Base: domain.Base{ID: id.Synthetic(domain.KindStore, key), SyncState: domain.SyncDirty},
			Name: name,
		})
	}

	enforceSelection(g)
	return g
}

func legacyHome(doc *LegacyDoc) json.RawMessage {
	var notes []string
	for _, raw := range doc.Notes {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				notes = append(notes, s)
			}
			continue
		}
		var obj struct {
			Text string `json:"text"`
			Body string `json:"body"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			if t := strings.TrimSpace(obj.Text + obj.Body); t != "" {
				notes = append(notes, t)
			}
		}
	}
	home := map[string]any{"name": doc.Title}
	if len(notes) > 0 {
		home["notes"] = strings.Join(notes, "\n\n")
	}
	data, err := json.Marshal(home)
	if err != nil {
		return nil
	}
	return data
}

// dimensionsFromSpecs reads the flattened width_in/depth_in/height_in keys.
func dimensionsFromSpecs(specs domain.Specs) *domain.Dimensions {
	d := &domain.Dimensions{
		WIn: specNumber(specs, "width_in"),
		DIn: specNumber(specs, "depth_in"),
		HIn: specNumber(specs, "height_in"),
	}
	if d.IsZero() {
		return nil
	}
	return d
}

func specNumber(specs domain.Specs, key string) *float64 {
	v, ok := specs.Get(key)
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), `"`)), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}
