// Package merge applies a normalized bundle to the current local snapshot.
//
// Plan is pure: it computes every record that has to be written and reports
// what changed, but never touches storage. The caller persists the result in
// one transaction.
package merge

import (
	"encoding/json"
	"fmt"

	"github.com/lherron/homeplan/internal/bundle"
	"github.com/lherron/homeplan/internal/diff"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/id"
)

// Mode selects how an import treats existing data.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeMerge   Mode = "merge"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReplace, ModeMerge:
		return Mode(s), nil
	case "":
		return ModeMerge, nil
	default:
		return "", fmt.Errorf("unknown import mode %q (want replace or merge)", s)
	}
}

// Options controls Plan.
type Options struct {
	Mode      Mode
	Now       int64 // epoch millis stamped on written records
	SessionID string
	// AIAuthored overrides authorship inference when set.
	AIAuthored *bool
}

// Op is what happened to one incoming record.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpSkip   Op = "skip"
)

// RecordChange reports the outcome for one record.
type RecordChange struct {
	Kind    domain.Kind   `json:"kind"`
	ID      string        `json:"id"`
	Op      Op            `json:"op"`
	Changes []diff.Change `json:"changes,omitempty"`
}

// Result is a fully computed import. Wipe is set in replace mode: local
// state is cleared before Writes are persisted.
type Result struct {
	Mode        Mode
	SessionID   string
	Actor       domain.Actor
	Wipe        bool
	Writes      domain.Snapshot
	Attachments []bundle.AttachmentSet
	Home        json.RawMessage
	Planner     json.RawMessage
	ExportMeta  json.RawMessage
	Changes     []RecordChange
	Warnings    []string
}

// Count returns how many records had the given outcome.
func (r *Result) Count(op Op) int {
	n := 0
	for _, c := range r.Changes {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Summary is a compact, loggable description of the result.
func (r *Result) Summary() map[string]any {
	return map[string]any{
		"mode":     r.Mode,
		"actor":    r.Actor,
		"inserted": r.Count(OpInsert),
		"updated":  r.Count(OpUpdate),
		"skipped":  r.Count(OpSkip),
		"warnings": len(r.Warnings),
	}
}

// Plan computes the writes needed to apply g over current.
func Plan(current *domain.Snapshot, g *bundle.Graph, opts Options) (*Result, error) {
	if opts.SessionID == "" {
		opts.SessionID = id.NewSession()
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}

	actor := domain.ActorImport
	ai := g.SignalsAI()
	if opts.AIAuthored != nil {
		ai = *opts.AIAuthored
	}
	if ai {
		actor = domain.ActorAI
	}

	res := &Result{
		Mode:       mode,
		SessionID:  opts.SessionID,
		Actor:      actor,
		Home:       g.Home,
		Planner:    g.Planner,
		ExportMeta: g.ExportMeta,
		Warnings:   append([]string(nil), g.Warnings...),
	}

	if mode == ModeReplace {
		planReplace(res, g, opts.Now)
	} else {
		p := &planner{res: res, now: opts.Now, actor: actor, session: opts.SessionID}
		p.planMerge(current, g)
	}

	if err := validateWrites(&res.Writes); err != nil {
		return nil, err
	}
	return res, nil
}

func planReplace(res *Result, g *bundle.Graph, now int64) {
	res.Wipe = true
	res.Writes = domain.Snapshot{
		Rooms:        append([]domain.Room(nil), g.Rooms...),
		Measurements: append([]domain.Measurement(nil), g.Measurements...),
		Items:        append([]domain.Item(nil), g.Items...),
		Options:      append([]domain.Option(nil), g.Options...),
		Stores:       append([]domain.Store(nil), g.Stores...),
	}
	restamp := func(kind domain.Kind, b *domain.Base) {
		b.RemoteID = nil
		if b.SyncState != domain.SyncDeleted {
			b.SyncState = domain.SyncDirty
		}
		if b.CreatedAt == 0 {
			b.CreatedAt = now
		}
		if b.UpdatedAt == 0 {
			b.UpdatedAt = now
		}
		res.Changes = append(res.Changes, RecordChange{Kind: kind, ID: b.ID, Op: OpInsert})
	}
	w := &res.Writes
	for i := range w.Rooms {
		restamp(domain.KindRoom, &w.Rooms[i].Base)
	}
	for i := range w.Stores {
		restamp(domain.KindStore, &w.Stores[i].Base)
	}
	for i := range w.Items {
		restamp(domain.KindItem, &w.Items[i].Base)
	}
	for i := range w.Options {
		restamp(domain.KindOption, &w.Options[i].Base)
	}
	for i := range w.Measurements {
		restamp(domain.KindMeasurement, &w.Measurements[i].Base)
	}
	res.Attachments = append(res.Attachments, g.Attachments...)
}

func validateWrites(w *domain.Snapshot) error {
	check := func(kind domain.Kind, e domain.Entity) error {
		if err := domain.Validate(kind, e); err != nil {
			return fmt.Errorf("import rejected: %w", err)
		}
		return nil
	}
	for i := range w.Rooms {
		if err := check(domain.KindRoom, &w.Rooms[i]); err != nil {
			return err
		}
	}
	for i := range w.Measurements {
		if err := check(domain.KindMeasurement, &w.Measurements[i]); err != nil {
			return err
		}
	}
	for i := range w.Items {
		if err := check(domain.KindItem, &w.Items[i]); err != nil {
			return err
		}
	}
	for i := range w.Options {
		if err := check(domain.KindOption, &w.Options[i]); err != nil {
			return err
		}
	}
	for i := range w.Stores {
		if err := check(domain.KindStore, &w.Stores[i]); err != nil {
			return err
		}
	}
	return nil
}
