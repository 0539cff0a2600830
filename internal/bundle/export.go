package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lherron/homeplan/internal/domain"
)

// AttachmentKey identifies the attachment list of one parent record.
func AttachmentKey(kind domain.Kind, parentID string) string {
	return string(kind) + "/" + parentID
}

// ExportOptions controls Build.
type ExportOptions struct {
	Now         time.Time
	Home        json.RawMessage
	Planner     json.RawMessage
	ExportMeta  json.RawMessage
	Attachments map[string][]domain.Attachment // keyed by AttachmentKey
}

// Build assembles a current-version bundle from a snapshot. Tombstones are
// exported so a receiving device learns about deletions.
func Build(snap *domain.Snapshot, opts ExportOptions) *Bundle {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	attachmentsFor := func(kind domain.Kind, parentID string) *[]domain.Attachment {
		list := append([]domain.Attachment{}, opts.Attachments[AttachmentKey(kind, parentID)]...)
		return &list
	}

	b := &Bundle{
		Version:      CurrentVersion,
		ExportedAt:   now.UTC().Format(time.RFC3339),
		ExportMeta:   opts.ExportMeta,
		Home:         opts.Home,
		Planner:      opts.Planner,
		Rooms:        make([]RoomEntry, 0, len(snap.Rooms)),
		Measurements: make([]MeasurementEntry, 0, len(snap.Measurements)),
		Items:        make([]ItemEntry, 0, len(snap.Items)),
		Options:      make([]OptionEntry, 0, len(snap.Options)),
		Stores:       make([]StoreEntry, 0, len(snap.Stores)),
	}
	for _, r := range snap.Rooms {
		b.Rooms = append(b.Rooms, RoomEntry{Room: r, Attachments: attachmentsFor(domain.KindRoom, r.ID)})
	}
	for _, m := range snap.Measurements {
		b.Measurements = append(b.Measurements, MeasurementEntry{Measurement: m, Attachments: attachmentsFor(domain.KindMeasurement, m.ID)})
	}
	for _, it := range snap.Items {
		b.Items = append(b.Items, ItemEntry{Item: it, Attachments: attachmentsFor(domain.KindItem, it.ID)})
	}
	for _, o := range snap.Options {
		b.Options = append(b.Options, OptionEntry{Option: o, Attachments: attachmentsFor(domain.KindOption, o.ID)})
	}
	for _, s := range snap.Stores {
		b.Stores = append(b.Stores, StoreEntry{Store: s, Attachments: attachmentsFor(domain.KindStore, s.ID)})
	}
	return b
}

// Marshal renders the bundle as indented JSON.
func (b *Bundle) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile writes the bundle to path, creating parent directories.
func (b *Bundle) WriteFile(path string) error {
	data, err := b.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create bundle directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	return nil
}
