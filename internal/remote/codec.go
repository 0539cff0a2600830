package remote

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lherron/homeplan/internal/domain"
)

// The metadata block sits in the remote notes field between these two lines:
//
//	user prose ...
//
//	--- homeplan:meta ---
//	{"localId":"itm_...","parentLocalId":"room_...","record":{...}}
//	--- /homeplan:meta ---
//
// Anything before or after the block is the user's notes.
const (
	MetaStart = "--- homeplan:meta ---"
	MetaEnd   = "--- /homeplan:meta ---"
)

// Meta is the structured part hidden in the notes field.
type Meta struct {
	LocalID       string          `json:"localId"`
	ParentLocalID string          `json:"parentLocalId,omitempty"`
	Kind          domain.Kind     `json:"kind,omitempty"`
	Record        json.RawMessage `json:"record,omitempty"`
}

// EncodeNotes appends the metadata block to the user's notes.
func EncodeNotes(notes string, m *Meta) (string, error) {
	notes = strings.TrimSpace(notes)
	if m == nil {
		return notes, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode remote metadata: %w", err)
	}
	var b strings.Builder
	if notes != "" {
		b.WriteString(notes)
		b.WriteString("\n\n")
	}
	b.WriteString(MetaStart)
	b.WriteByte('\n')
	b.Write(data)
	b.WriteByte('\n')
	b.WriteString(MetaEnd)
	return b.String(), nil
}

// DecodeNotes splits a notes field into prose and metadata. The last
// delimiter pair wins. A missing or malformed block yields the whole field
// as notes and nil metadata; it never fails.
func DecodeNotes(field string) (string, *Meta) {
	end := strings.LastIndex(field, MetaEnd)
	if end < 0 {
		return strings.TrimSpace(field), nil
	}
	start := strings.LastIndex(field[:end], MetaStart)
	if start < 0 {
		return strings.TrimSpace(field), nil
	}

	body := strings.TrimSpace(field[start+len(MetaStart) : end])
	var m Meta
	if err := json.Unmarshal([]byte(body), &m); err != nil || m.LocalID == "" {
		return strings.TrimSpace(field), nil
	}

	before := strings.TrimSpace(field[:start])
	after := strings.TrimSpace(field[end+len(MetaEnd):])
	switch {
	case before == "":
		return after, &m
	case after == "":
		return before, &m
	default:
		return before + "\n\n" + after, &m
	}
}
