package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/lherron/homeplan/internal/domain"
)

// FileDoc is the on-disk layout of a FileClient.
type FileDoc struct {
	Records []Record `json:"records"`
	// Views maps a view name to the kinds it shows.
	Views map[string][]domain.Kind `json:"views,omitempty"`
}

// FileClient is a Client backed by a JSON file. It stands in for the hosted
// record service in the CLI and in tests.
type FileClient struct {
	path string
	mu   sync.Mutex
}

// NewFileClient returns a client for the file at path. A missing file is an
// empty remote.
func NewFileClient(path string) *FileClient {
	return &FileClient{path: path}
}

// Path returns the backing file.
func (c *FileClient) Path() string { return c.path }

func (c *FileClient) load() (*FileDoc, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return &FileDoc{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read remote file: %w", err)
	}
	var doc FileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse remote file %s: %w", c.path, err)
	}
	return &doc, nil
}

func (c *FileClient) save(doc *FileDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode remote file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create remote directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write remote file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace remote file: %w", err)
	}
	return nil
}

// Pull returns the records visible through view.
func (c *FileClient) Pull(ctx context.Context, view string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.load()
	if err != nil {
		return nil, err
	}
	if view == "" {
		return doc.Records, nil
	}
	kinds, ok := doc.Views[view]
	if !ok {
		return nil, fmt.Errorf("unknown remote view %q", view)
	}
	visible := make(map[domain.Kind]bool, len(kinds))
	for _, k := range kinds {
		visible[k] = true
	}
	var out []Record
	for _, rec := range doc.Records {
		if visible[rec.Kind] {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Push upserts records. Records without an id are created; deleted records
// are removed. The local id in each record's metadata is echoed back.
func (c *FileClient) Push(ctx context.Context, records []Record) ([]Ack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.load()
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(doc.Records))
	for i, rec := range doc.Records {
		idx[rec.ID] = i
	}

	acks := make([]Ack, 0, len(records))
	var removed []string
	for _, rec := range records {
		_, m := DecodeNotes(rec.Notes)
		if m == nil {
			return nil, fmt.Errorf("pushed %s record %q carries no local id", rec.Kind, rec.Title)
		}
		if rec.Deleted {
			if rec.ID != "" {
				removed = append(removed, rec.ID)
			}
			acks = append(acks, Ack{RemoteID: rec.ID, RecordID: m.LocalID})
			continue
		}
		if rec.ID == "" {
			rec.ID = "rec_" + uuid.NewString()
		}
		if i, ok := idx[rec.ID]; ok {
			doc.Records[i] = rec
		} else {
			idx[rec.ID] = len(doc.Records)
			doc.Records = append(doc.Records, rec)
		}
		acks = append(acks, Ack{RemoteID: rec.ID, RecordID: m.LocalID})
	}

	if len(removed) > 0 {
		gone := make(map[string]bool, len(removed))
		for _, id := range removed {
			gone[id] = true
		}
		kept := doc.Records[:0]
		for _, rec := range doc.Records {
			if !gone[rec.ID] {
				kept = append(kept, rec)
			}
		}
		doc.Records = kept
	}

	if err := c.save(doc); err != nil {
		return nil, err
	}
	return acks, nil
}
