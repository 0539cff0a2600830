// Package bundle reads and writes exported planner bundles.
//
// Two input shapes are understood: the versioned export format (version 1 or
// 2) and the legacy single-file format. Every input is first classified into
// exactly one of those shapes, then normalized into a Graph. Normalization is
// complete before anything is persisted, so a bad file can never half-apply.
package bundle

import (
	"encoding/json"
	"strings"

	"github.com/lherron/homeplan/internal/domain"
)

// CurrentVersion is the version written by Export.
const CurrentVersion = 2

// Bundle is the versioned export document.
type Bundle struct {
	Version      int                `json:"version"`
	ExportedAt   string             `json:"exportedAt"`
	ExportMeta   json.RawMessage    `json:"exportMeta,omitempty"`
	Home         json.RawMessage    `json:"home,omitempty"`
	Planner      json.RawMessage    `json:"planner,omitempty"`
	Rooms        []RoomEntry        `json:"rooms"`
	Measurements []MeasurementEntry `json:"measurements"`
	Items        []ItemEntry        `json:"items"`
	Options      []OptionEntry      `json:"options"`
	Stores       []StoreEntry       `json:"stores"`
}

// RoomEntry is a room plus its attachment list.
type RoomEntry struct {
	domain.Room
	Attachments *[]domain.Attachment `json:"attachments,omitempty"`
}

// MeasurementEntry is a measurement plus its attachment list.
type MeasurementEntry struct {
	domain.Measurement
	Attachments *[]domain.Attachment `json:"attachments,omitempty"`
}

// ItemEntry is an item plus its attachment list.
type ItemEntry struct {
	domain.Item
	Attachments *[]domain.Attachment `json:"attachments,omitempty"`
}

// OptionEntry is an option plus its attachment list.
type OptionEntry struct {
	domain.Option
	Attachments *[]domain.Attachment `json:"attachments,omitempty"`
}

// StoreEntry is a store plus its attachment list.
type StoreEntry struct {
	domain.Store
	Attachments *[]domain.Attachment `json:"attachments,omitempty"`
}

// AttachmentSet is the full attachment list for one parent record, as found
// in the raw bundle. A present-but-empty set removes all attachments.
type AttachmentSet struct {
	ParentKind  domain.Kind
	ParentID    string
	Attachments []domain.Attachment
}

// Graph is a normalized, internally consistent entity graph.
type Graph struct {
	Shape        Shape
	Version      int
	ExportMeta   json.RawMessage
	Home         json.RawMessage
	Planner      json.RawMessage
	Rooms        []domain.Room
	Measurements []domain.Measurement
	Items        []domain.Item
	Options      []domain.Option
	Stores       []domain.Store
	Attachments  []AttachmentSet
	Warnings     []string
	// Placeholders holds the ids of rooms invented for dangling references.
	Placeholders map[string]bool
	// Dangling lists references to items the bundle does not carry.
	Dangling []ItemRef
}

// ItemRef is a reference from a bundle record to an item missing from the
// bundle. Normalize drops such an option and clears such a measurement
// scope; a merge restores them when the item exists locally.
type ItemRef struct {
	Kind domain.Kind
	// Option is the dropped option, for Kind option.
	Option *domain.Option
	// Attachments belong to the dropped option, if the bundle listed any.
	Attachments *AttachmentSet
	// MeasurementID names the measurement whose scope was cleared.
	MeasurementID string
	ItemID        string
	// Warning is the message Normalize added to Warnings for this reference.
	Warning string
}

// Snapshot returns the entity slices as a domain snapshot.
func (g *Graph) Snapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Rooms:        g.Rooms,
		Measurements: g.Measurements,
		Items:        g.Items,
		Options:      g.Options,
		Stores:       g.Stores,
	}
}

// Count returns the number of entity records in the graph.
func (g *Graph) Count() int {
	return len(g.Rooms) + len(g.Measurements) + len(g.Items) + len(g.Options) + len(g.Stores)
}

// SignalsAI reports whether the bundle declares AI authorship, either through
// an explicit export flag or a record whose provenance names ai.
func (g *Graph) SignalsAI() bool {
	if exportMetaSignalsAI(g.ExportMeta) {
		return true
	}
	for i := range g.Rooms {
		if g.Rooms[i].Provenance.Mentions(domain.ActorAI) {
			return true
		}
	}
	for i := range g.Measurements {
		if g.Measurements[i].Provenance.Mentions(domain.ActorAI) {
			return true
		}
	}
	for i := range g.Items {
		if g.Items[i].Provenance.Mentions(domain.ActorAI) {
			return true
		}
	}
	for i := range g.Options {
		if g.Options[i].Provenance.Mentions(domain.ActorAI) {
			return true
		}
	}
	for i := range g.Stores {
		if g.Stores[i].Provenance.Mentions(domain.ActorAI) {
			return true
		}
	}
	return false
}

func exportMetaSignalsAI(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return false
	}
	for _, key := range []string{"ai", "aiAssisted", "aiGenerated"} {
		if b, ok := meta[key].(bool); ok && b {
			return true
		}
	}
	for _, key := range []string{"source", "author", "by", "editedBy"} {
		if s, ok := meta[key].(string); ok && strings.EqualFold(strings.TrimSpace(s), "ai") {
			return true
		}
	}
	return false
}
