// Package cursor encodes opaque keyset pagination cursors for the event log.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor marks the position after the last row of a page. Pages run from
// newest to oldest, so the next page holds ids below BeforeID.
type Cursor struct {
	BeforeID int64 `json:"before_id"`
	// Resource pins the cursor to the filter it was issued for.
	Resource string `json:"resource,omitempty"`
}

// Encode serializes the cursor to an opaque base64 string
func (c *Cursor) Encode() (string, error) {
	if c.BeforeID <= 0 {
		return "", fmt.Errorf("cursor position must be positive")
	}
	jsonData, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(jsonData), nil
}

// Decode deserializes a cursor from an opaque base64 string
func Decode(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty cursor string")
	}

	jsonData, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(jsonData, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}
	if c.BeforeID <= 0 {
		return nil, fmt.Errorf("cursor missing position")
	}
	return &c, nil
}

// Resume decodes encoded and checks that it was issued for resource. An
// empty string starts from the newest row.
func Resume(encoded, resource string) (*Cursor, error) {
	if encoded == "" {
		return &Cursor{Resource: resource}, nil
	}
	c, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	if c.Resource != resource {
		return nil, fmt.Errorf("cursor was issued for a different filter")
	}
	return c, nil
}

// Next returns the encoded cursor following a page whose oldest row has
// lastID, or "" when the page was not full.
func Next(lastID int64, resource string, pageLen, limit int) (string, error) {
	if pageLen < limit || lastID <= 0 {
		return "", nil
	}
	c := &Cursor{BeforeID: lastID, Resource: resource}
	return c.Encode()
}
