// Package pricing computes effective prices and splits store-level costs.
//
// All money arithmetic is done with decimals. Inputs are the float fields of
// the domain model; outputs stay decimal until rendered.
package pricing

import (
	"sort"

	"github.com/lherron/homeplan/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func dec(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

// DiscountAmount returns how much a discount takes off amount. The result is
// never more than amount.
func DiscountAmount(amount decimal.Decimal, dt domain.DiscountType, value *float64) decimal.Decimal {
	if value == nil || amount.Sign() <= 0 {
		return decimal.Zero
	}
	var off decimal.Decimal
	switch dt {
	case domain.DiscountPercent:
		off = amount.Mul(dec(value)).Div(hundred)
	case domain.DiscountAmount:
		off = dec(value)
	default:
		return decimal.Zero
	}
	if off.Sign() < 0 {
		return decimal.Zero
	}
	if off.GreaterThan(amount) {
		return amount
	}
	return off
}

// EffectivePrice applies a discount to a price, flooring at zero. A nil price
// is zero.
func EffectivePrice(price *float64, dt domain.DiscountType, value *float64) decimal.Decimal {
	p := dec(price)
	if p.Sign() <= 0 {
		return decimal.Zero
	}
	return p.Sub(DiscountAmount(p, dt, value))
}

// Line is what one item contributes to its store: the selected option when
// there is one, else the item itself.
type Line struct {
	ItemID   string          `json:"itemId"`
	OptionID string          `json:"optionId,omitempty"`
	Title    string          `json:"title"`
	Qty      int             `json:"qty"`
	Unit     decimal.Decimal `json:"unit"`
	Discount decimal.Decimal `json:"discount"`
	// Own holds per-line shipping and tax estimates of an option.
	Own    decimal.Decimal `json:"own"`
	Net    decimal.Decimal `json:"net"`
	Anchor bool            `json:"anchor,omitempty"`

	priority  *int
	updatedAt int64
	store     string
}

func (l *Line) recordID() string {
	if l.OptionID != "" {
		return l.OptionID
	}
	return l.ItemID
}

// StoreTotal is the allocation for one normalized store name.
type StoreTotal struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	// Known is false when no Store record matches; no shared costs apply.
	Known         bool            `json:"known"`
	Anchor        string          `json:"anchor,omitempty"`
	Lines         []Line          `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	StoreDiscount decimal.Decimal `json:"storeDiscount"`
	Shipping      decimal.Decimal `json:"shipping"`
	Warranty      decimal.Decimal `json:"warranty"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
}

// Allocation is the per-store breakdown of the current selections.
type Allocation struct {
	Stores []StoreTotal `json:"stores"`
	// ItemStore maps item id to the store key it was grouped under.
	ItemStore  map[string]string `json:"itemStore"`
	Unassigned []Line            `json:"unassigned,omitempty"`
	Total      decimal.Decimal   `json:"total"`
}

// Store returns the totals for a store key.
func (a *Allocation) Store(key string) (*StoreTotal, bool) {
	for i := range a.Stores {
		if a.Stores[i].Key == key {
			return &a.Stores[i], true
		}
	}
	return nil, false
}

// Allocate groups the live items by store and charges each store's shared
// costs to exactly one anchor line. selected maps item id to its selected
// option; stores maps normalized store names to store records.
func Allocate(items []domain.Item, selected map[string]*domain.Option, stores map[string]*domain.Store) *Allocation {
	a := &Allocation{ItemStore: make(map[string]string)}
	groups := make(map[string]*StoreTotal)

	for i := range items {
		it := &items[i]
		if it.IsDeleted() {
			continue
		}
		line := lineFor(it, selected[it.ID])
		key := domain.NormalizeKey(line.store)
		if key == "" {
			a.Unassigned = append(a.Unassigned, line)
			a.Total = a.Total.Add(line.Net)
			continue
		}
		a.ItemStore[it.ID] = key
		g, ok := groups[key]
		if !ok {
			g = &StoreTotal{Key: key, Name: line.store}
			if st, found := stores[key]; found {
				g.Known = true
				g.Name = st.Name
			}
			groups[key] = g
		}
		g.Lines = append(g.Lines, line)
	}

	for key, g := range groups {
		settle(g, stores[key])
		a.Total = a.Total.Add(g.Total)
		a.Stores = append(a.Stores, *g)
	}
	sort.Slice(a.Stores, func(i, j int) bool { return a.Stores[i].Key < a.Stores[j].Key })
	return a
}

func lineFor(it *domain.Item, o *domain.Option) Line {
	qty := it.Qty
	if qty < 1 {
		qty = 1
	}
	l := Line{ItemID: it.ID, Title: it.Name, Qty: qty}
	q := decimal.NewFromInt(int64(qty))

	if o != nil && !o.IsDeleted() {
		dt, dv := o.EffectiveDiscount()
		l.OptionID = o.ID
		if o.Title != "" {
			l.Title = o.Title
		}
		l.Unit = dec(o.Price)
		l.Discount = DiscountAmount(l.Unit, dt, dv).Mul(q)
		l.Own = dec(o.Shipping).Add(dec(o.TaxEstimate))
		l.store = o.Store
		if domain.NormalizeKey(l.store) == "" {
			l.store = it.Store
		}
		l.priority = o.Priority
		if l.priority == nil {
			l.priority = it.Priority
		}
		l.updatedAt = o.UpdatedAt
	} else {
		l.Unit = dec(it.Price)
		l.Discount = DiscountAmount(l.Unit, it.DiscountType, it.DiscountValue).Mul(q)
		l.store = it.Store
		l.priority = it.Priority
		l.updatedAt = it.UpdatedAt
	}
	l.Net = l.Unit.Mul(q).Sub(l.Discount).Add(l.Own)
	return l
}

// settle picks the anchor and fills the store totals.
func settle(g *StoreTotal, st *domain.Store) {
	for _, l := range g.Lines {
		g.Subtotal = g.Subtotal.Add(l.Net)
	}
	if st != nil {
		g.StoreDiscount = DiscountAmount(g.Subtotal, st.DiscountType, st.DiscountValue)
		g.Shipping = dec(st.ShippingCost)
		g.Warranty = dec(st.ExtraWarrantyCost)
		g.Tax = dec(st.TaxCost)
	}

	anchor := 0
	for i := 1; i < len(g.Lines); i++ {
		if outranks(&g.Lines[i], &g.Lines[anchor]) {
			anchor = i
		}
	}
	if len(g.Lines) > 0 {
		g.Lines[anchor].Anchor = true
		g.Anchor = g.Lines[anchor].ItemID
	}

	g.Total = g.Subtotal.Sub(g.StoreDiscount).Add(g.Shipping).Add(g.Warranty).Add(g.Tax)
}

// outranks orders anchor candidates: priority 1 is highest and an unset
// priority is lowest, then the most recently updated, then the smallest id.
func outranks(a, b *Line) bool {
	switch {
	case a.priority != nil && b.priority == nil:
		return true
	case a.priority == nil && b.priority != nil:
		return false
	case a.priority != nil && *a.priority != *b.priority:
		return *a.priority < *b.priority
	}
	if a.updatedAt != b.updatedAt {
		return a.updatedAt > b.updatedAt
	}
	return a.recordID() < b.recordID()
}
