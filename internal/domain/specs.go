package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SpecEntry is one key/value pair of a Specs map.
type SpecEntry struct {
	Key   string
	Value any // string, float64, bool or nil
}

// Specs is a string-keyed map of scalar values that preserves insertion
// order through JSON round-trips.
type Specs []SpecEntry

// Get returns the value stored under key.
func (s Specs) Get(key string) (any, bool) {
	for _, e := range s {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key, or appends a new entry.
func (s *Specs) Set(key string, value any) {
	for i := range *s {
		if (*s)[i].Key == key {
			(*s)[i].Value = value
			return
		}
	}
	*s = append(*s, SpecEntry{Key: key, Value: value})
}

// Delete removes key if present.
func (s *Specs) Delete(key string) {
	out := (*s)[:0]
	for _, e := range *s {
		if e.Key != key {
			out = append(out, e)
		}
	}
	*s = out
}

// Keys returns the keys in order.
func (s Specs) Keys() []string {
	keys := make([]string, len(s))
	for i, e := range s {
		keys[i] = e.Key
	}
	return keys
}

// MarshalJSON writes the entries as a JSON object in insertion order.
func (s Specs) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("spec %q: %w", e.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping key order. Non-scalar values are
// kept as their compact JSON text.
func (s *Specs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("specs: expected object, got %v", tok)
	}

	out := Specs{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("specs: expected string key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("specs %q: %w", key, err)
		}
		out.Set(key, scalarFromJSON(raw))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

func scalarFromJSON(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	switch v.(type) {
	case nil, string, float64, bool:
		return v
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return string(raw)
		}
		return buf.String()
	}
}
