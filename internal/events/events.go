package events

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lherron/homeplan/internal/domain"
)

// Event is one row of the event log.
type Event struct {
	ID           int64   `db:"id" json:"id"`
	Timestamp    string  `db:"timestamp" json:"timestamp"`
	Actor        string  `db:"actor" json:"actor"`
	ResourceType string  `db:"resource_type" json:"resource_type"`
	ResourceID   *string `db:"resource_id" json:"resource_id,omitempty"`
	EventType    string  `db:"event_type" json:"event_type"`
	SessionID    *string `db:"session_id" json:"session_id,omitempty"`
	Payload      *string `db:"payload" json:"payload,omitempty"`
}

// Writer handles writing events to the event log
type Writer struct {
	db *sqlx.DB
}

// NewWriter creates a new event writer
func NewWriter(db *sqlx.DB) *Writer {
	return &Writer{db: db}
}

// LogEvent writes an event to the event log
func (w *Writer) LogEvent(tx *sqlx.Tx, event *Event) error {
	query := `
		INSERT INTO event_log (actor, resource_type, resource_id, event_type, session_id, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := w.getExecutor(tx).Exec(query, event.Actor, event.ResourceType, event.ResourceID, event.EventType, event.SessionID, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogEntity logs a create/update/delete of one entity record. Payload is
// marshalled to JSON when non-nil.
func (w *Writer) LogEntity(tx *sqlx.Tx, actor domain.Actor, kind domain.Kind, id, eventType string, payload any) error {
	event := &Event{
		Actor:        string(actor),
		ResourceType: string(kind),
		ResourceID:   &id,
		EventType:    string(kind) + "." + eventType,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		s := string(data)
		event.Payload = &s
	}
	return w.LogEvent(tx, event)
}

// LogImport records a bundle import session.
func (w *Writer) LogImport(tx *sqlx.Tx, actor domain.Actor, sessionID string, summary any) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	payload := string(data)
	return w.LogEvent(tx, &Event{
		Actor:        string(actor),
		ResourceType: "bundle",
		EventType:    "bundle.imported",
		SessionID:    &sessionID,
		Payload:      &payload,
	})
}

// Recent returns up to limit events, newest first.
func (w *Writer) Recent(limit int) ([]Event, error) {
	var out []Event
	err := w.db.Select(&out, `
		SELECT id, timestamp, actor, resource_type, resource_id, event_type, session_id, payload
		FROM event_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return out, nil
}

// Since returns events with an id greater than afterID, oldest first.
func (w *Writer) Since(afterID int64, limit int) ([]Event, error) {
	var out []Event
	err := w.db.Select(&out, `
		SELECT id, timestamp, actor, resource_type, resource_id, event_type, session_id, payload
		FROM event_log WHERE id > ? ORDER BY id ASC LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return out, nil
}

// getExecutor returns the appropriate executor (tx or db)
// Before returns up to limit entries with ids below beforeID, newest first.
// beforeID <= 0 starts at the newest entry. A non-empty resourceID keeps only
// entries about that record.
func (w *Writer) Before(beforeID int64, resourceID string, limit int) ([]Event, error) {
	query := `
		SELECT id, timestamp, actor, resource_type, resource_id, event_type, session_id, payload
		FROM event_log WHERE 1=1`
	var args []any
	if beforeID > 0 {
		query += " AND id < ?"
		args = append(args, beforeID)
	}
	if resourceID != "" {
		query += " AND resource_id = ?"
		args = append(args, resourceID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	var out []Event
	if err := w.db.Select(&out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return out, nil
}

func (w *Writer) getExecutor(tx *sqlx.Tx) interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
} {
	if tx != nil {
		return tx
	}
	return w.db
}
