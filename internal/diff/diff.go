// Package diff compares two versions of the same entity field by field.
//
// Each entity kind has a fixed, ordered list of domain fields. Bookkeeping
// (syncState, provenance, timestamps, remoteId) is never compared, so an
// empty result means the two versions carry the same user-visible data.
package diff

import (
	"bytes"
	"encoding/json"

	"github.com/lherron/homeplan/internal/domain"
)

// Change is one differing field.
type Change struct {
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

// Fields returns the changed field names in order.
func Fields(changes []Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Field
	}
	return out
}

type field[T any] struct {
	name string
	get  func(*T) any
}

var roomFields = []field[domain.Room]{
	{"name", func(r *domain.Room) any { return r.Name }},
	{"notes", func(r *domain.Room) any { return r.Notes }},
	{"sort", func(r *domain.Room) any { return r.Sort }},
}

var measurementFields = []field[domain.Measurement]{
	{"room", func(m *domain.Measurement) any { return m.Room }},
	{"label", func(m *domain.Measurement) any { return m.Label }},
	{"valueIn", func(m *domain.Measurement) any { return m.ValueIn }},
	{"confidence", func(m *domain.Measurement) any { return m.Confidence }},
	{"forCategory", func(m *domain.Measurement) any { return m.ForCategory }},
	{"forItemId", func(m *domain.Measurement) any { return m.ForItemID }},
	{"notes", func(m *domain.Measurement) any { return m.Notes }},
	{"sort", func(m *domain.Measurement) any { return m.Sort }},
}

var itemFields = []field[domain.Item]{
	{"name", func(i *domain.Item) any { return i.Name }},
	{"room", func(i *domain.Item) any { return i.Room }},
	{"category", func(i *domain.Item) any { return i.Category }},
	{"status", func(i *domain.Item) any { return i.Status }},
	{"selectedOptionId", func(i *domain.Item) any { return i.SelectedOptionID }},
	{"price", func(i *domain.Item) any { return i.Price }},
	{"discountType", func(i *domain.Item) any { return i.DiscountType }},
	{"discountValue", func(i *domain.Item) any { return i.DiscountValue }},
	{"qty", func(i *domain.Item) any { return i.Qty }},
	{"store", func(i *domain.Item) any { return i.Store }},
	{"link", func(i *domain.Item) any { return i.Link }},
	{"notes", func(i *domain.Item) any { return i.Notes }},
	{"priority", func(i *domain.Item) any { return i.Priority }},
	{"tags", func(i *domain.Item) any { return i.Tags }},
	{"dimensions", func(i *domain.Item) any { return i.Dimensions }},
	{"specs", func(i *domain.Item) any { return i.Specs }},
	{"sort", func(i *domain.Item) any { return i.Sort }},
}

var optionFields = []field[domain.Option]{
	{"itemId", func(o *domain.Option) any { return o.ItemID }},
	{"title", func(o *domain.Option) any { return o.Title }},
	{"store", func(o *domain.Option) any { return o.Store }},
	{"link", func(o *domain.Option) any { return o.Link }},
	{"promoCode", func(o *domain.Option) any { return o.PromoCode }},
	{"price", func(o *domain.Option) any { return o.Price }},
	{"shipping", func(o *domain.Option) any { return o.Shipping }},
	{"taxEstimate", func(o *domain.Option) any { return o.TaxEstimate }},
	{"discount", func(o *domain.Option) any { return o.Discount }},
	{"discountType", func(o *domain.Option) any { return o.DiscountType }},
	{"discountValue", func(o *domain.Option) any { return o.DiscountValue }},
	{"dimensionsText", func(o *domain.Option) any { return o.DimensionsText }},
	{"dimensions", func(o *domain.Option) any { return o.Dimensions }},
	{"specs", func(o *domain.Option) any { return o.Specs }},
	{"notes", func(o *domain.Option) any { return o.Notes }},
	{"priority", func(o *domain.Option) any { return o.Priority }},
	{"tags", func(o *domain.Option) any { return o.Tags }},
	{"selected", func(o *domain.Option) any { return o.Selected }},
	{"sourceItemId", func(o *domain.Option) any { return o.SourceItemID }},
	{"sort", func(o *domain.Option) any { return o.Sort }},
}

var storeFields = []field[domain.Store]{
	{"name", func(s *domain.Store) any { return s.Name }},
	{"discountType", func(s *domain.Store) any { return s.DiscountType }},
	{"discountValue", func(s *domain.Store) any { return s.DiscountValue }},
	{"shippingCost", func(s *domain.Store) any { return s.ShippingCost }},
	{"deliveryInfo", func(s *domain.Store) any { return s.DeliveryInfo }},
	{"extraWarranty", func(s *domain.Store) any { return s.ExtraWarranty }},
	{"extraWarrantyCost", func(s *domain.Store) any { return s.ExtraWarrantyCost }},
	{"trial", func(s *domain.Store) any { return s.Trial }},
	{"apr", func(s *domain.Store) any { return s.APR }},
	{"taxCost", func(s *domain.Store) any { return s.TaxCost }},
	{"notes", func(s *domain.Store) any { return s.Notes }},
	{"sort", func(s *domain.Store) any { return s.Sort }},
}

// Rooms diffs two versions of a room.
func Rooms(prev, next *domain.Room) []Change { return compare(roomFields, prev, next) }

// Measurements diffs two versions of a measurement.
func Measurements(prev, next *domain.Measurement) []Change {
	return compare(measurementFields, prev, next)
}

// Items diffs two versions of an item.
func Items(prev, next *domain.Item) []Change { return compare(itemFields, prev, next) }

// Options diffs two versions of an option.
func Options(prev, next *domain.Option) []Change { return compare(optionFields, prev, next) }

// Stores diffs two versions of a store.
func Stores(prev, next *domain.Store) []Change { return compare(storeFields, prev, next) }

// Entities dispatches on the dynamic type of prev/next, which must be
// pointers to the same entity type.
func Entities(prev, next domain.Entity) []Change {
	switch p := prev.(type) {
	case *domain.Room:
		return Rooms(p, next.(*domain.Room))
	case *domain.Measurement:
		return Measurements(p, next.(*domain.Measurement))
	case *domain.Item:
		return Items(p, next.(*domain.Item))
	case *domain.Option:
		return Options(p, next.(*domain.Option))
	case *domain.Store:
		return Stores(p, next.(*domain.Store))
	default:
		return nil
	}
}

func compare[T any](fields []field[T], prev, next *T) []Change {
	var changes []Change
	for _, f := range fields {
		a, b := f.get(prev), f.get(next)
		if Equal(a, b) {
			continue
		}
		changes = append(changes, Change{Field: f.name, From: plain(a), To: plain(b)})
	}
	return changes
}

// Equal compares two field values by their JSON encoding. Nil and empty
// collections are treated as the same value.
func Equal(a, b any) bool {
	return bytes.Equal(canonical(a), canonical(b))
}

func canonical(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	switch string(data) {
	case "[]", "{}", `""`:
		return []byte("null")
	}
	return data
}

// plain dereferences pointer scalars so change log entries hold values, not
// aliases into the record.
func plain(v any) any {
	switch p := v.(type) {
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	case *int:
		if p == nil {
			return nil
		}
		return *p
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *domain.Dimensions:
		if p.IsZero() {
			return nil
		}
		cp := *p
		return &cp
	case []string:
		if len(p) == 0 {
			return nil
		}
		return append([]string(nil), p...)
	case domain.Specs:
		if len(p) == 0 {
			return nil
		}
		return append(domain.Specs(nil), p...)
	}
	return v
}
