// Package views derives the read-only orderings shown to the user.
package views

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/pricing"
)

// lessSort orders by explicit sort value; unsorted records go last.
func lessSort(a, b *float64) (less, decided bool) {
	switch {
	case a != nil && b != nil && *a != *b:
		return *a < *b, true
	case a != nil && b == nil:
		return true, true
	case a == nil && b != nil:
		return false, true
	}
	return false, false
}

// OrderedRooms returns the live rooms by sort value, then creation time, then
// name.
func OrderedRooms(rooms []domain.Room) []domain.Room {
	out := make([]domain.Room, 0, len(rooms))
	for _, r := range rooms {
		if !r.IsDeleted() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if less, ok := lessSort(out[i].Sort, out[j].Sort); ok {
			return less
		}
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// OrderedStores returns the live stores by sort value, then name.
func OrderedStores(stores []domain.Store) []domain.Store {
	out := make([]domain.Store, 0, len(stores))
	for _, s := range stores {
		if !s.IsDeleted() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if less, ok := lessSort(out[i].Sort, out[j].Sort); ok {
			return less
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// OptionSort names an option ordering.
type OptionSort string

const (
	SortManual   OptionSort = "manual"
	SortPrice    OptionSort = "price"
	SortTitle    OptionSort = "title"
	SortPriority OptionSort = "priority"
	SortUpdated  OptionSort = "updated"
)

// ParseOptionSort validates a sort name. Empty means manual.
func ParseOptionSort(s string) (OptionSort, error) {
	switch OptionSort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortManual:
		return SortManual, nil
	case SortPrice:
		return SortPrice, nil
	case SortTitle:
		return SortTitle, nil
	case SortPriority:
		return SortPriority, nil
	case SortUpdated:
		return SortUpdated, nil
	default:
		return "", fmt.Errorf("unknown option sort %q (want manual, price, title, priority or updated)", s)
	}
}

// OptionFilter selects and orders options.
type OptionFilter struct {
	ItemID         string
	Store          string // matched by normalized key
	Query          string // terms matched by CompileQuery
	SelectedOnly   bool
	IncludeDeleted bool
	Sort           OptionSort
	Desc           bool
}

// EffectiveOptionPrice is the option's price after its own discount.
func EffectiveOptionPrice(o *domain.Option) float64 {
	dt, dv := o.EffectiveDiscount()
	return pricing.EffectivePrice(o.Price, dt, dv).InexactFloat64()
}

// SortAndFilterOptions returns the options matching f in the requested order.
// Options without a price sort after priced ones in either direction.
func SortAndFilterOptions(options []domain.Option, f OptionFilter) []domain.Option {
	storeKey := domain.NormalizeKey(f.Store)
	query := CompileQuery(f.Query)

	out := make([]domain.Option, 0, len(options))
	for _, o := range options {
		if o.IsDeleted() && !f.IncludeDeleted {
			continue
		}
		if f.ItemID != "" && o.ItemID != f.ItemID {
			continue
		}
		if storeKey != "" && domain.NormalizeKey(o.Store) != storeKey {
			continue
		}
		if f.SelectedOnly && !o.Selected {
			continue
		}
		if query != nil && !query.Match(&o) {
			continue
		}
		out = append(out, o)
	}

	sort.SliceStable(out, func(i, j int) bool {
		mi, ni, si := optionKey(&out[i], f.Sort)
		mj, nj, sj := optionKey(&out[j], f.Sort)
		if mi != mj {
			return mj
		}
		if !mi && (ni != nj || si != sj) {
			less := si < sj
			if ni != nj {
				less = ni < nj
			}
			if f.Desc {
				return !less
			}
			return less
		}
		return optionTieLess(&out[i], &out[j])
	})
	return out
}

// optionTieLess orders options with equal or missing sort keys by title,
// then id, in either direction.
func optionTieLess(a, b *domain.Option) bool {
	if ka, kb := domain.NormalizeKey(a.Title), domain.NormalizeKey(b.Title); ka != kb {
		return ka < kb
	}
	return a.ID < b.ID
}

// optionKey extracts the sort key. missing keys sort last in both directions.
func optionKey(o *domain.Option, s OptionSort) (missing bool, num float64, str string) {
	switch s {
	case SortPrice:
		if o.Price == nil {
			return true, 0, ""
		}
		return false, EffectiveOptionPrice(o), ""
	case SortTitle:
		return false, 0, strings.ToLower(o.Title)
	case SortPriority:
		if o.Priority == nil {
			return true, 0, ""
		}
		return false, float64(*o.Priority), ""
	case SortUpdated:
		// newest first
		return false, float64(-o.UpdatedAt), ""
	default:
		if o.Sort == nil {
			return true, 0, ""
		}
		return false, *o.Sort, ""
	}
}
