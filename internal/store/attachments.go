package store

import (
	"fmt"

	"github.com/lherron/homeplan/internal/bundle"
	"github.com/lherron/homeplan/internal/domain"
)

// AttachmentStore handles attachment metadata persistence.
type AttachmentStore struct {
	store *Store
}

const attachmentColumns = "id, parent_kind, parent_id, url, name, mime, size, created_at, updated_at"

// ListFor returns the attachments of one parent record.
func (as *AttachmentStore) ListFor(kind domain.Kind, parentID string) ([]domain.Attachment, error) {
	var out []domain.Attachment
	err := as.store.db.Select(&out,
		"SELECT "+attachmentColumns+" FROM attachments WHERE parent_kind = ? AND parent_id = ? ORDER BY rowid",
		kind, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return out, nil
}

// Index returns all attachments keyed by bundle.AttachmentKey.
func (as *AttachmentStore) Index() (map[string][]domain.Attachment, error) {
	var all []domain.Attachment
	if err := as.store.db.Select(&all, "SELECT "+attachmentColumns+" FROM attachments ORDER BY rowid"); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	out := make(map[string][]domain.Attachment)
	for _, a := range all {
		key := bundle.AttachmentKey(a.ParentKind, a.ParentID)
		out[key] = append(out[key], a)
	}
	return out, nil
}

// ReplaceSet makes list the complete attachment set of the parent record.
func (as *AttachmentStore) ReplaceSet(tx *Tx, kind domain.Kind, parentID string, list []domain.Attachment) error {
	if _, err := tx.Exec("DELETE FROM attachments WHERE parent_kind = ? AND parent_id = ?", kind, parentID); err != nil {
		return fmt.Errorf("failed to clear attachments of %s %s: %w", kind, parentID, err)
	}
	for _, a := range list {
		a.ParentKind = kind
		a.ParentID = parentID
		if err := as.Add(tx, &a); err != nil {
			return err
		}
	}
	return nil
}

// Add inserts or replaces one attachment.
func (as *AttachmentStore) Add(tx *Tx, a *domain.Attachment) error {
	_, err := tx.NamedExec(`
		INSERT OR REPLACE INTO attachments (`+attachmentColumns+`)
		VALUES (:id, :parent_kind, :parent_id, :url, :name, :mime, :size, :created_at, :updated_at)
	`, a)
	if err != nil {
		return fmt.Errorf("failed to write attachment %s: %w", a.ID, err)
	}
	return nil
}

// Relink moves every attachment from one parent record to another. It
// returns the number of attachments moved.
func (as *AttachmentStore) Relink(tx *Tx, fromKind domain.Kind, fromID string, toKind domain.Kind, toID string) (int64, error) {
	res, err := tx.Exec(
		"UPDATE attachments SET parent_kind = ?, parent_id = ? WHERE parent_kind = ? AND parent_id = ?",
		toKind, toID, fromKind, fromID)
	if err != nil {
		return 0, fmt.Errorf("failed to relink attachments: %w", err)
	}
	return res.RowsAffected()
}

// DeleteFor removes the attachments of one parent record.
func (as *AttachmentStore) DeleteFor(tx *Tx, kind domain.Kind, parentID string) error {
	if _, err := tx.Exec("DELETE FROM attachments WHERE parent_kind = ? AND parent_id = ?", kind, parentID); err != nil {
		return fmt.Errorf("failed to delete attachments: %w", err)
	}
	return nil
}
