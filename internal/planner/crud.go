package planner

import (
	"fmt"
	"strings"

	"github.com/lherron/homeplan/internal/diff"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/store"
	"go.uber.org/zap"
)

// Rooms

// CreateRoom adds a room. Names are unique among live rooms by normalized key.
func (p *Planner) CreateRoom(r domain.Room) (*domain.Room, error) {
	r.Name = strings.TrimSpace(r.Name)
	return create(p, p.store.Rooms, &r)
}

// UpdateRoom applies patch to a live room.
func (p *Planner) UpdateRoom(roomID string, patch func(*domain.Room) error) (*domain.Room, error) {
	r, _, err := update(p, p.store.Rooms, roomID, diff.Rooms, func(r *domain.Room) error {
		if err := patch(r); err != nil {
			return err
		}
		r.Name = strings.TrimSpace(r.Name)
		return nil
	})
	return r, err
}

// DeleteRoom tombstones a room. A room that still holds live items or
// measurements needs a destination room; its children are moved there in
// the same transaction.
func (p *Planner) DeleteRoom(roomID, dest string) error {
	room, err := p.store.Rooms.GetLive(roomID)
	if err != nil {
		return err
	}
	items, err := p.store.Items.ListByParent(roomID)
	if err != nil {
		return err
	}
	measurements, err := p.store.Measurements.ListByParent(roomID)
	if err != nil {
		return err
	}
	if len(items)+len(measurements) > 0 {
		if dest == "" {
			return fmt.Errorf("room %q: %w", room.Name, domain.ErrRoomNotEmpty)
		}
		if dest == roomID {
			return fmt.Errorf("room %q cannot receive its own children", room.Name)
		}
		if _, err := p.store.Rooms.GetLive(dest); err != nil {
			return fmt.Errorf("destination room: %w", err)
		}
	}

	now := p.millis()
	moved := []diff.Change{{Field: "room", From: roomID, To: dest}}
	return p.store.WithTx(func(tx *store.Tx) error {
		for i := range items {
			items[i].Room = dest
			p.stampEdit(&items[i].Base, moved, now)
			if err := write(p, tx, p.store.Items, &items[i], "moved", moved); err != nil {
				return err
			}
		}
		for i := range measurements {
			measurements[i].Room = dest
			p.stampEdit(&measurements[i].Base, moved, now)
			if err := write(p, tx, p.store.Measurements, &measurements[i], "moved", moved); err != nil {
				return err
			}
		}
		p.stampDeleted(&room.Base, now)
		return write(p, tx, p.store.Rooms, room, "deleted", map[string]any{"movedTo": dest})
	})
}

// Measurements

// CreateMeasurement adds a measurement to a live room.
func (p *Planner) CreateMeasurement(m domain.Measurement) (*domain.Measurement, error) {
	if _, err := p.store.Rooms.GetLive(m.Room); err != nil {
		return nil, fmt.Errorf("measurement room: %w", err)
	}
	return create(p, p.store.Measurements, &m)
}

// UpdateMeasurement applies patch to a live measurement.
func (p *Planner) UpdateMeasurement(measurementID string, patch func(*domain.Measurement) error) (*domain.Measurement, error) {
	m, _, err := update(p, p.store.Measurements, measurementID, diff.Measurements, func(m *domain.Measurement) error {
		before := m.Room
		if err := patch(m); err != nil {
			return err
		}
		if m.Room != before {
			if _, err := p.store.Rooms.GetLive(m.Room); err != nil {
				return fmt.Errorf("measurement room: %w", err)
			}
		}
		return nil
	})
	return m, err
}

// DeleteMeasurement tombstones a measurement.
func (p *Planner) DeleteMeasurement(measurementID string) error {
	m, err := p.store.Measurements.GetLive(measurementID)
	if err != nil {
		return err
	}
	p.stampDeleted(&m.Base, p.millis())
	return p.store.WithTx(func(tx *store.Tx) error {
		return write(p, tx, p.store.Measurements, m, "deleted", nil)
	})
}

// Items

// CreateItem adds an item to a live room. New items start without a
// selection.
func (p *Planner) CreateItem(it domain.Item) (*domain.Item, error) {
	if _, err := p.store.Rooms.GetLive(it.Room); err != nil {
		return nil, fmt.Errorf("item room: %w", err)
	}
	if it.Qty < 1 {
		it.Qty = 1
	}
	if it.Status == "" {
		it.Status = domain.StatusIdea
	}
	it.SelectedOptionID = ""
	return create(p, p.store.Items, &it)
}

// UpdateItem applies patch to a live item. The selection is changed through
// SelectOption only.
func (p *Planner) UpdateItem(itemID string, patch func(*domain.Item) error) (*domain.Item, error) {
	it, _, err := update(p, p.store.Items, itemID, diff.Items, func(it *domain.Item) error {
		room, selected := it.Room, it.SelectedOptionID
		if err := patch(it); err != nil {
			return err
		}
		it.SelectedOptionID = selected
		if it.Room != room {
			if _, err := p.store.Rooms.GetLive(it.Room); err != nil {
				return fmt.Errorf("item room: %w", err)
			}
		}
		return nil
	})
	return it, err
}

// DeleteItem tombstones an item together with its options.
func (p *Planner) DeleteItem(itemID string) error {
	it, err := p.store.Items.GetLive(itemID)
	if err != nil {
		return err
	}
	options, err := p.store.Options.ListByParent(itemID)
	if err != nil {
		return err
	}
	now := p.millis()
	return p.store.WithTx(func(tx *store.Tx) error {
		return p.tombstoneItem(tx, it, options, now, "deleted")
	})
}

func (p *Planner) tombstoneItem(tx *store.Tx, it *domain.Item, options []domain.Option, now int64, eventType string) error {
	for i := range options {
		options[i].Selected = false
		p.stampDeleted(&options[i].Base, now)
		if err := write(p, tx, p.store.Options, &options[i], "deleted", map[string]string{"item": it.ID}); err != nil {
			return err
		}
	}
	it.SelectedOptionID = ""
	p.stampDeleted(&it.Base, now)
	return write(p, tx, p.store.Items, it, eventType, nil)
}

// Options

// CreateOption adds an option to a live item. A selected option becomes the
// item's only selection.
func (p *Planner) CreateOption(o domain.Option) (*domain.Option, error) {
	it, err := p.store.Items.GetLive(o.ItemID)
	if err != nil {
		return nil, fmt.Errorf("option item: %w", err)
	}
	siblings, err := p.store.Options.ListByParent(o.ItemID)
	if err != nil {
		return nil, err
	}
	now := p.millis()
	p.stampNew(p.store.Options.Kind(), &o.Base, now)

	err = p.store.WithTx(func(tx *store.Tx) error {
		if err := write(p, tx, p.store.Options, &o, "created", &o); err != nil {
			return err
		}
		if !o.Selected {
			return nil
		}
		return p.writeSelection(tx, it, siblings, o.ID, now)
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOption applies patch to a live option. The owning item and the
// selected flag are left alone; use SelectOption for the latter.
func (p *Planner) UpdateOption(optionID string, patch func(*domain.Option) error) (*domain.Option, error) {
	o, _, err := update(p, p.store.Options, optionID, diff.Options, func(o *domain.Option) error {
		itemID, selected, source := o.ItemID, o.Selected, o.SourceItemID
		if err := patch(o); err != nil {
			return err
		}
		o.ItemID, o.Selected, o.SourceItemID = itemID, selected, source
		return nil
	})
	return o, err
}

// DeleteOption tombstones an option. Deleting the selected option clears the
// item's selection.
func (p *Planner) DeleteOption(optionID string) error {
	o, err := p.store.Options.GetLive(optionID)
	if err != nil {
		return err
	}
	var it *domain.Item
	if o.Selected {
		if it, err = p.store.Items.GetLive(o.ItemID); err != nil && !isNotFound(err) {
			return err
		}
	}
	now := p.millis()
	return p.store.WithTx(func(tx *store.Tx) error {
		o.Selected = false
		p.stampDeleted(&o.Base, now)
		if err := write(p, tx, p.store.Options, o, "deleted", nil); err != nil {
			return err
		}
		if it == nil || it.SelectedOptionID != optionID {
			return nil
		}
		changes := []diff.Change{{Field: "selectedOptionId", From: optionID, To: ""}}
		it.SelectedOptionID = ""
		p.stampEdit(&it.Base, changes, now)
		return write(p, tx, p.store.Items, it, "updated", changes)
	})
}

// SelectOption makes optionID the only selected option of an item. An empty
// optionID clears the selection.
func (p *Planner) SelectOption(itemID, optionID string) error {
	it, err := p.store.Items.GetLive(itemID)
	if err != nil {
		return err
	}
	if optionID != "" {
		o, err := p.store.Options.GetLive(optionID)
		if err != nil {
			return err
		}
		if o.ItemID != itemID {
			return fmt.Errorf("option %s belongs to item %s, not %s", optionID, o.ItemID, itemID)
		}
	}
	options, err := p.store.Options.ListByParent(itemID)
	if err != nil {
		return err
	}
	now := p.millis()
	return p.store.WithTx(func(tx *store.Tx) error {
		return p.writeSelection(tx, it, options, optionID, now)
	})
}

// writeSelection flips the selected flag of every option and points the
// item at optionID. Records that already agree are not written.
func (p *Planner) writeSelection(tx *store.Tx, it *domain.Item, options []domain.Option, optionID string, now int64) error {
	for i := range options {
		o := &options[i]
		want := o.ID == optionID
		if o.Selected == want {
			continue
		}
		changes := []diff.Change{{Field: "selected", From: o.Selected, To: want}}
		o.Selected = want
		p.stampEdit(&o.Base, changes, now)
		if err := write(p, tx, p.store.Options, o, "updated", changes); err != nil {
			return err
		}
	}
	if it.SelectedOptionID == optionID {
		return nil
	}
	changes := []diff.Change{{Field: "selectedOptionId", From: it.SelectedOptionID, To: optionID}}
	it.SelectedOptionID = optionID
	p.stampEdit(&it.Base, changes, now)
	return write(p, tx, p.store.Items, it, "selected", changes)
}

// Stores

// CreateStore adds a store. Names are unique among live stores by normalized
// key.
func (p *Planner) CreateStore(s domain.Store) (*domain.Store, error) {
	s.Name = strings.TrimSpace(s.Name)
	return create(p, p.store.Stores, &s)
}

// UpdateStore applies patch to a live store. A rename is carried over to
// every live item and option that referenced the old name.
func (p *Planner) UpdateStore(storeID string, patch func(*domain.Store) error) (*domain.Store, error) {
	cur, next, changes, err := edit(p.store.Stores, storeID, diff.Stores, func(s *domain.Store) error {
		if err := patch(s); err != nil {
			return err
		}
		s.Name = strings.TrimSpace(s.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	oldKey, newName := cur.Key(), next.Name
	var items []domain.Item
	var options []domain.Option
	if next.Key() != oldKey {
		if items, err = liveWithStore(p.store.Items, oldKey, func(it *domain.Item) *string { return &it.Store }); err != nil {
			return nil, err
		}
		if options, err = liveWithStore(p.store.Options, oldKey, func(o *domain.Option) *string { return &o.Store }); err != nil {
			return nil, err
		}
	}

	now := p.millis()
	if len(changes) == 0 {
		p.stampTouched(&next.Base, now)
	} else {
		p.stampEdit(&next.Base, changes, now)
	}
	err = p.store.WithTx(func(tx *store.Tx) error {
		if err := write(p, tx, p.store.Stores, next, "updated", changes); err != nil {
			return err
		}
		for i := range items {
			c := []diff.Change{{Field: "store", From: items[i].Store, To: newName}}
			items[i].Store = newName
			p.stampEdit(&items[i].Base, c, now)
			if err := write(p, tx, p.store.Items, &items[i], "updated", c); err != nil {
				return err
			}
		}
		for i := range options {
			c := []diff.Change{{Field: "store", From: options[i].Store, To: newName}}
			options[i].Store = newName
			p.stampEdit(&options[i].Base, c, now)
			if err := write(p, tx, p.store.Options, &options[i], "updated", c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(items)+len(options) > 0 {
		p.logger.Debug("store rename cascaded",
			zap.String("from", cur.Name), zap.String("to", newName),
			zap.Int("items", len(items)), zap.Int("options", len(options)))
	}
	return next, nil
}

// DeleteStore tombstones a store. Items keep their store name and fall back
// to an unknown store in the allocation.
func (p *Planner) DeleteStore(storeID string) error {
	s, err := p.store.Stores.GetLive(storeID)
	if err != nil {
		return err
	}
	p.stampDeleted(&s.Base, p.millis())
	return p.store.WithTx(func(tx *store.Tx) error {
		return write(p, tx, p.store.Stores, s, "deleted", nil)
	})
}

func liveWithStore[T any](t *store.Table[T], key string, field func(*T) *string) ([]T, error) {
	all, err := t.List()
	if err != nil {
		return nil, err
	}
	var out []T
	for i := range all {
		if base(&all[i]).IsDeleted() || domain.NormalizeKey(*field(&all[i])) != key {
			continue
		}
		out = append(out, all[i])
	}
	return out, nil
}
