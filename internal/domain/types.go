package domain

// Kind identifies an entity kind. The string value doubles as the table name
// and the bundle array key.
type Kind string

const (
	KindRoom        Kind = "rooms"
	KindMeasurement Kind = "measurements"
	KindItem        Kind = "items"
	KindOption      Kind = "options"
	KindStore       Kind = "stores"
)

// Kinds lists every entity kind in dependency order (parents first).
var Kinds = []Kind{KindRoom, KindStore, KindItem, KindOption, KindMeasurement}

// SyncState tracks a record's position relative to the remote.
type SyncState string

const (
	SyncClean   SyncState = "clean"
	SyncDirty   SyncState = "dirty"
	SyncDeleted SyncState = "deleted"
)

// ItemStatus represents the purchase lifecycle of an item
type ItemStatus string

const (
	StatusIdea      ItemStatus = "Idea"
	StatusShortlist ItemStatus = "Shortlist"
	StatusSelected  ItemStatus = "Selected"
	StatusOrdered   ItemStatus = "Ordered"
	StatusDelivered ItemStatus = "Delivered"
	StatusInstalled ItemStatus = "Installed"
)

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountNone    DiscountType = ""
	DiscountAmount  DiscountType = "amount"
	DiscountPercent DiscountType = "percent"
)

// Confidence is the trust level of a measurement
type Confidence string

const (
	ConfidenceLow  Confidence = "low"
	ConfidenceMed  Confidence = "med"
	ConfidenceHigh Confidence = "high"
)

// Base holds the bookkeeping fields shared by every entity.
type Base struct {
	ID         string     `json:"id"`
	RemoteID   *string    `json:"remoteId"`
	SyncState  SyncState  `json:"syncState"`
	CreatedAt  int64      `json:"createdAt"`
	UpdatedAt  int64      `json:"updatedAt"`
	Sort       *float64   `json:"sort"`
	Provenance Provenance `json:"provenance"`
}

// Meta returns the shared bookkeeping block.
func (b *Base) Meta() *Base { return b }

// IsDeleted reports whether the record is a tombstone.
func (b *Base) IsDeleted() bool { return b.SyncState == SyncDeleted }

// Entity is implemented by pointers to every entity type.
type Entity interface {
	Meta() *Base
}

// Dimensions holds optional width/depth/height in inches.
type Dimensions struct {
	WIn *float64 `json:"wIn,omitempty"`
	DIn *float64 `json:"dIn,omitempty"`
	HIn *float64 `json:"hIn,omitempty"`
}

// IsZero reports whether no dimension is set.
func (d *Dimensions) IsZero() bool {
	return d == nil || (d.WIn == nil && d.DIn == nil && d.HIn == nil)
}

// Room is a physical room in the home.
type Room struct {
	Base
	Name  string `json:"name" validate:"required"`
	Notes string `json:"notes,omitempty"`
}

// Key returns the normalized dedup key of the room name.
func (r *Room) Key() string { return NormalizeKey(r.Name) }

// Measurement is a single measured length, stored in inches.
type Measurement struct {
	Base
	Room        string     `json:"room"`
	Label       string     `json:"label"`
	ValueIn     *float64   `json:"valueIn"`
	Confidence  Confidence `json:"confidence,omitempty" validate:"omitempty,oneof=low med high"`
	ForCategory string     `json:"forCategory,omitempty"`
	ForItemID   string     `json:"forItemId,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// Item is a candidate purchase.
type Item struct {
	Base
	Name             string       `json:"name"`
	Room             string       `json:"room"`
	Category         string       `json:"category,omitempty"`
	Status           ItemStatus   `json:"status" validate:"oneof=Idea Shortlist Selected Ordered Delivered Installed"`
	SelectedOptionID string       `json:"selectedOptionId,omitempty"`
	Price            *float64     `json:"price"`
	DiscountType     DiscountType `json:"discountType,omitempty" validate:"omitempty,oneof=amount percent"`
	DiscountValue    *float64     `json:"discountValue"`
	Qty              int          `json:"qty" validate:"min=1"`
	Store            string       `json:"store,omitempty"`
	Link             string       `json:"link,omitempty"`
	Notes            string       `json:"notes,omitempty"`
	Priority         *int         `json:"priority" validate:"omitempty,min=1,max=5"`
	Tags             []string     `json:"tags,omitempty"`
	Dimensions       *Dimensions  `json:"dimensions,omitempty"`
	Specs            Specs        `json:"specs,omitempty"`
}

// Option is one way of buying an Item.
type Option struct {
	Base
	ItemID         string       `json:"itemId" validate:"required"`
	Title          string       `json:"title"`
	Store          string       `json:"store,omitempty"`
	Link           string       `json:"link,omitempty"`
	PromoCode      string       `json:"promoCode,omitempty"`
	Price          *float64     `json:"price"`
	Shipping       *float64     `json:"shipping"`
	TaxEstimate    *float64     `json:"taxEstimate"`
	Discount       *float64     `json:"discount"`
	DiscountType   DiscountType `json:"discountType,omitempty" validate:"omitempty,oneof=amount percent"`
	DiscountValue  *float64     `json:"discountValue"`
	DimensionsText string       `json:"dimensionsText,omitempty"`
	Dimensions     *Dimensions  `json:"dimensions,omitempty"`
	Specs          Specs        `json:"specs,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	Priority       *int         `json:"priority" validate:"omitempty,min=1,max=5"`
	Tags           []string     `json:"tags,omitempty"`
	Selected       bool         `json:"selected"`
	SourceItemID   string       `json:"sourceItemId,omitempty"`
}

// EffectiveDiscount returns the discount structure of the option, falling
// back to the legacy flat amount when no typed discount is set.
func (o *Option) EffectiveDiscount() (DiscountType, *float64) {
	if o.DiscountType != DiscountNone && o.DiscountValue != nil {
		return o.DiscountType, o.DiscountValue
	}
	if o.Discount != nil {
		return DiscountAmount, o.Discount
	}
	return DiscountNone, nil
}

// Store is a retailer with store-level pricing policies.
type Store struct {
	Base
	Name              string       `json:"name" validate:"required"`
	DiscountType      DiscountType `json:"discountType,omitempty" validate:"omitempty,oneof=amount percent"`
	DiscountValue     *float64     `json:"discountValue"`
	ShippingCost      *float64     `json:"shippingCost"`
	DeliveryInfo      string       `json:"deliveryInfo,omitempty"`
	ExtraWarranty     string       `json:"extraWarranty,omitempty"`
	ExtraWarrantyCost *float64     `json:"extraWarrantyCost"`
	Trial             string       `json:"trial,omitempty"`
	APR               *float64     `json:"apr"`
	TaxCost           *float64     `json:"taxCost"`
	Notes             string       `json:"notes,omitempty"`
}

// Key returns the normalized dedup key of the store name.
func (s *Store) Key() string { return NormalizeKey(s.Name) }

// Attachment is metadata for a file linked to an entity. The bytes live with
// the attachment collaborator.
type Attachment struct {
	ID         string `json:"id"`
	ParentKind Kind   `json:"-" db:"parent_kind"`
	ParentID   string `json:"-" db:"parent_id"`
	URL        string `json:"url"`
	Name       string `json:"name"`
	Mime       string `json:"mime,omitempty"`
	Size       int64  `json:"size"`
	CreatedAt  int64  `json:"createdAt" db:"created_at"`
	UpdatedAt  int64  `json:"updatedAt" db:"updated_at"`
}

// Snapshot is the full in-memory view of the local store.
type Snapshot struct {
	Rooms        []Room
	Measurements []Measurement
	Items        []Item
	Options      []Option
	Stores       []Store
}

// RoomByID returns the room with the given id.
func (s *Snapshot) RoomByID(id string) (*Room, bool) {
	for i := range s.Rooms {
		if s.Rooms[i].ID == id {
			return &s.Rooms[i], true
		}
	}
	return nil, false
}

// ItemByID returns the item with the given id.
func (s *Snapshot) ItemByID(id string) (*Item, bool) {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i], true
		}
	}
	return nil, false
}

// OptionsFor returns the options (including tombstones) belonging to an item.
func (s *Snapshot) OptionsFor(itemID string) []Option {
	var out []Option
	for _, o := range s.Options {
		if o.ItemID == itemID {
			out = append(out, o)
		}
	}
	return out
}

// SelectedOptions maps item id to its selected, non-deleted option.
func (s *Snapshot) SelectedOptions() map[string]*Option {
	out := make(map[string]*Option)
	for i := range s.Options {
		o := &s.Options[i]
		if o.IsDeleted() || !o.Selected {
			continue
		}
		out[o.ItemID] = o
	}
	return out
}

// StoresByKey maps normalized store names to non-deleted stores.
func (s *Snapshot) StoresByKey() map[string]*Store {
	out := make(map[string]*Store)
	for i := range s.Stores {
		st := &s.Stores[i]
		if st.IsDeleted() {
			continue
		}
		out[st.Key()] = st
	}
	return out
}

// Entities returns pointers to every record of kind, tombstones included.
func (s *Snapshot) Entities(kind Kind) []Entity {
	var out []Entity
	switch kind {
	case KindRoom:
		for i := range s.Rooms {
			out = append(out, &s.Rooms[i])
		}
	case KindMeasurement:
		for i := range s.Measurements {
			out = append(out, &s.Measurements[i])
		}
	case KindItem:
		for i := range s.Items {
			out = append(out, &s.Items[i])
		}
	case KindOption:
		for i := range s.Options {
			out = append(out, &s.Options[i])
		}
	case KindStore:
		for i := range s.Stores {
			out = append(out, &s.Stores[i])
		}
	}
	return out
}
