package planner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lherron/homeplan/internal/attach"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/id"
	"github.com/lherron/homeplan/internal/pricing"
	"github.com/lherron/homeplan/internal/store"
	"github.com/lherron/homeplan/internal/views"
)

// OrderedRooms returns the live rooms in display order.
func (p *Planner) OrderedRooms() ([]domain.Room, error) {
	rooms, err := p.store.Rooms.List()
	if err != nil {
		return nil, err
	}
	return views.OrderedRooms(rooms), nil
}

// OrderedStores returns the live stores in display order.
func (p *Planner) OrderedStores() ([]domain.Store, error) {
	stores, err := p.store.Stores.List()
	if err != nil {
		return nil, err
	}
	return views.OrderedStores(stores), nil
}

// SortAndFilterOptions returns the options matching f.
func (p *Planner) SortAndFilterOptions(f views.OptionFilter) ([]domain.Option, error) {
	var (
		options []domain.Option
		err     error
	)
	if f.ItemID != "" && !f.IncludeDeleted {
		options, err = p.store.Options.ListByParent(f.ItemID)
	} else {
		options, err = p.store.Options.List()
	}
	if err != nil {
		return nil, err
	}
	return views.SortAndFilterOptions(options, f), nil
}

// Allocation computes the per-store cost breakdown of the current selections.
func (p *Planner) Allocation() (*pricing.Allocation, error) {
	snap, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return pricing.Allocate(snap.Items, snap.SelectedOptions(), snap.StoresByKey()), nil
}

// requireLive checks that a record of kind exists and is not a tombstone.
func (p *Planner) requireLive(kind domain.Kind, recordID string) error {
	var err error
	switch kind {
	case domain.KindRoom:
		_, err = p.store.Rooms.GetLive(recordID)
	case domain.KindMeasurement:
		_, err = p.store.Measurements.GetLive(recordID)
	case domain.KindItem:
		_, err = p.store.Items.GetLive(recordID)
	case domain.KindOption:
		_, err = p.store.Options.GetLive(recordID)
	case domain.KindStore:
		_, err = p.store.Stores.GetLive(recordID)
	default:
		err = fmt.Errorf("unknown kind %q", kind)
	}
	return err
}

// AttachFile copies src into the attachment directory and links it to a
// record. name overrides the stored file name.
func (p *Planner) AttachFile(kind domain.Kind, parentID, src, name string) (*domain.Attachment, error) {
	if p.attach.AttachDir == "" {
		return nil, fmt.Errorf("attachment directory is not configured")
	}
	if err := p.requireLive(kind, parentID); err != nil {
		return nil, err
	}
	if src != "-" {
		size, err := attach.GetFileSize(src)
		if err != nil {
			return nil, err
		}
		if err := attach.ValidateSize(size, p.attach.MaxMB); err != nil {
			return nil, err
		}
	}
	if name == "" {
		if src == "-" {
			return nil, fmt.Errorf("a file name is required when reading from stdin")
		}
		name = filepath.Base(src)
	}

	rel := attach.RelativePath(kind, parentID, name)
	dst := attach.AbsolutePath(p.attach.AttachDir, rel)
	size, _, err := attach.CopyFile(src, dst)
	if err != nil {
		return nil, err
	}
	if err := attach.ValidateSize(size, p.attach.MaxMB); err != nil {
		os.Remove(dst)
		return nil, err
	}

	now := p.millis()
	a := &domain.Attachment{
		ID:         id.NewAttachment(),
		ParentKind: kind,
		ParentID:   parentID,
		URL:        attach.URL(rel),
		Name:       name,
		Mime:       attach.DetectMimeType(name),
		Size:       size,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = p.store.WithTx(func(tx *store.Tx) error {
		if err := p.store.Attachments.Add(tx, a); err != nil {
			return err
		}
		return tx.Events.LogEntity(tx.Tx, p.actor, kind, parentID, "attached", a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAttachments returns the attachments of one record.
func (p *Planner) ListAttachments(kind domain.Kind, parentID string) ([]domain.Attachment, error) {
	return p.store.Attachments.ListFor(kind, parentID)
}
