package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lherron/homeplan/internal/domain"
)

// Shape is the closed set of recognized bundle shapes.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeVersioned
	ShapeLegacy
)

func (s Shape) String() string {
	switch s {
	case ShapeVersioned:
		return "versioned"
	case ShapeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// ShapeError is returned when the input matches no known bundle shape.
type ShapeError struct {
	Keys   []string
	Reason string
}

func (e *ShapeError) Error() string {
	keys := "none"
	if len(e.Keys) > 0 {
		keys = strings.Join(e.Keys, ", ")
	}
	return fmt.Sprintf("unrecognized bundle shape: %s (top-level keys: %s)", e.Reason, keys)
}

// Classified is the tagged result of Classify. Exactly one of Versioned or
// Legacy is set, matching Shape.
type Classified struct {
	Shape     Shape
	Versioned *VersionedDoc
	Legacy    *LegacyDoc
}

// VersionedDoc is the typed form of a version 1/2 bundle.
type VersionedDoc struct {
	Version      int
	ExportMeta   json.RawMessage
	Home         json.RawMessage
	Planner      json.RawMessage
	Rooms        []RoomEntry
	Measurements []MeasurementEntry
	Items        []ItemEntry
	Options      []OptionEntry
	Stores       []StoreEntry
}

// LegacyDoc is the typed form of a legacy single-file bundle.
type LegacyDoc struct {
	Title        string
	Items        []LegacyItem
	Options      []LegacyOption
	Measurements []LegacyMeasurement
	Notes        []json.RawMessage
}

// LegacyItem uses the flattened legacy key names.
type LegacyItem struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Name       string             `json:"name"`
	Room       string             `json:"room"`
	Category   string             `json:"category"`
	Status     string             `json:"status"`
	Price      *float64           `json:"price"`
	Quantity   *int               `json:"quantity"`
	Store      string             `json:"store"`
	Link       string             `json:"link"`
	Notes      string             `json:"notes"`
	Priority   *int               `json:"priority"`
	Tags       []string           `json:"tags"`
	Specs      domain.Specs       `json:"specs"`
	Dimensions *domain.Dimensions `json:"dimensions"`
}

// LegacyOption is attached to an item by its parent title.
type LegacyOption struct {
	ParentTitle string       `json:"parentTitle"`
	Title       string       `json:"title"`
	Store       string       `json:"store"`
	Link        string       `json:"link"`
	Promo       string       `json:"promo"`
	Price       *float64     `json:"price"`
	Shipping    *float64     `json:"shipping"`
	Tax         *float64     `json:"tax"`
	Discount    *float64     `json:"discount"`
	Dimensions  string       `json:"dimensions"`
	Specs       domain.Specs `json:"specs"`
	Notes       string       `json:"notes"`
	Selected    bool         `json:"selected"`
}

// LegacyMeasurement carries a value in an explicit unit.
type LegacyMeasurement struct {
	Room       string   `json:"room"`
	Label      string   `json:"label"`
	Value      *float64 `json:"value"`
	Unit       string   `json:"unit"`
	Confidence string   `json:"confidence"`
	Notes      string   `json:"notes"`
}

// Classify decides which shape raw is and decodes it into that shape's typed
// document. No optional field is read before the shape is known.
func Classify(raw []byte) (*Classified, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, &ShapeError{Reason: "input is not a JSON object"}
	}

	keys := make([]string, 0, len(top))
	for k := range top {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if version, ok := versionOf(top); ok && isArray(top["items"]) && isArray(top["rooms"]) {
		if version != 1 && version != 2 {
			return nil, &ShapeError{Keys: keys, Reason: fmt.Sprintf("unsupported version %d", version)}
		}
		doc, err := decodeVersioned(top, version)
		if err != nil {
			return nil, err
		}
		return &Classified{Shape: ShapeVersioned, Versioned: doc}, nil
	}

	if _, hasRooms := top["rooms"]; !hasRooms && isString(top["title"]) &&
		(isArray(top["items"]) || isArray(top["measurements"])) {
		doc, err := decodeLegacy(top)
		if err != nil {
			return nil, err
		}
		return &Classified{Shape: ShapeLegacy, Legacy: doc}, nil
	}

	return nil, &ShapeError{Keys: keys, Reason: "expected a versioned bundle (version, rooms[], items[]) or a legacy bundle (title, items[])"}
}

func versionOf(top map[string]json.RawMessage) (int, bool) {
	raw, ok := top["version"]
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if n != float64(int(n)) {
		return 0, false
	}
	return int(n), true
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

func decodeVersioned(top map[string]json.RawMessage, version int) (*VersionedDoc, error) {
	doc := &VersionedDoc{
		Version:    version,
		ExportMeta: nonNull(top["exportMeta"]),
		Home:       nonNull(top["home"]),
		Planner:    nonNull(top["planner"]),
	}
	if err := decodeArray(top, "rooms", &doc.Rooms); err != nil {
		return nil, err
	}
	if err := decodeArray(top, "measurements", &doc.Measurements); err != nil {
		return nil, err
	}
	if err := decodeArray(top, "items", &doc.Items); err != nil {
		return nil, err
	}
	if err := decodeArray(top, "options", &doc.Options); err != nil {
		return nil, err
	}
	if err := decodeArray(top, "stores", &doc.Stores); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeLegacy(top map[string]json.RawMessage) (*LegacyDoc, error) {
	doc := &LegacyDoc{}
	if err := json.Unmarshal(top["title"], &doc.Title); err != nil {
		return nil, fmt.Errorf("failed to parse title: %w", err)
	}
	if err := decodeArray(top, "items", &doc.Items); err != nil {
		return nil, err
	}
	if err := decodeArray(top, "options", &doc.Options); err != nil {
		return nil, err
	}
	if err := decodeArray(top, "measurements", &doc.Measurements); err != nil {
		return nil, err
	}
	if err := decodeArray(top, "notes", &doc.Notes); err != nil {
		return nil, err
	}
	return doc, nil
}

// decodeArray decodes top[key] element by element so errors name the
// offending index. Missing or null keys leave dst empty.
func decodeArray[T any](top map[string]json.RawMessage, key string, dst *[]T) error {
	raw, ok := top[key]
	if !ok || len(nonNull(raw)) == 0 {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	out := make([]T, 0, len(elems))
	for i, elem := range elems {
		var v T
		if err := json.Unmarshal(elem, &v); err != nil {
			return fmt.Errorf("failed to parse %s[%d]: %w", key, i, err)
		}
		out = append(out, v)
	}
	*dst = out
	return nil
}

func nonNull(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}
