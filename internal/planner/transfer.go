package planner

import (
	"encoding/json"
	"fmt"

	"github.com/lherron/homeplan/internal/attach"
	"github.com/lherron/homeplan/internal/bundle"
	"github.com/lherron/homeplan/internal/events"
	"github.com/lherron/homeplan/internal/merge"
	"github.com/lherron/homeplan/internal/store"
	"go.uber.org/zap"
)

// ExportBundle builds a current-version bundle of the whole local state,
// tombstones and attachment lists included.
func (p *Planner) ExportBundle() (*bundle.Bundle, error) {
	snap, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}
	index, err := p.store.Attachments.Index()
	if err != nil {
		return nil, err
	}
	home, err := p.store.Meta.GetRaw(store.MetaHome)
	if err != nil {
		return nil, err
	}
	plannerMeta, err := p.store.Meta.GetRaw(store.MetaPlanner)
	if err != nil {
		return nil, err
	}
	exportMeta, err := json.Marshal(map[string]string{"app": "homeplan", "source": string(p.actor)})
	if err != nil {
		return nil, err
	}

	b := bundle.Build(snap, bundle.ExportOptions{
		Now:         p.now(),
		Home:        home,
		Planner:     plannerMeta,
		ExportMeta:  exportMeta,
		Attachments: index,
	})
	p.logger.Info("bundle exported",
		zap.Int("rooms", len(b.Rooms)),
		zap.Int("items", len(b.Items)),
		zap.Int("options", len(b.Options)),
	)
	return b, nil
}

// ImportOptions controls ImportBundle.
type ImportOptions struct {
	Mode merge.Mode
	// AIAuthored forces the authorship decision instead of inferring it.
	AIAuthored *bool
	// DryRun computes the result without writing anything.
	DryRun bool
}

// ImportBundle normalizes raw, plans it against the local state and persists
// the result in one transaction. A bundle that cannot be classified or
// validated changes nothing.
func (p *Planner) ImportBundle(raw []byte, opts ImportOptions) (*merge.Result, error) {
	g, err := bundle.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("import rejected: %w", err)
	}
	current, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}
	res, err := merge.Plan(current, g, merge.Options{
		Mode:       opts.Mode,
		Now:        p.millis(),
		AIAuthored: opts.AIAuthored,
	})
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return res, nil
	}

	err = p.store.WithTx(func(tx *store.Tx) error {
		if res.Wipe {
			if err := p.store.Wipe(tx); err != nil {
				return err
			}
		}
		if err := p.store.PutSnapshot(tx, &res.Writes); err != nil {
			return err
		}
		for _, set := range res.Attachments {
			if err := p.store.Attachments.ReplaceSet(tx, set.ParentKind, set.ParentID, set.Attachments); err != nil {
				return err
			}
		}
		for key, raw := range map[string]json.RawMessage{
			store.MetaHome:       res.Home,
			store.MetaPlanner:    res.Planner,
			store.MetaExportMeta: res.ExportMeta,
		} {
			if raw == nil {
				continue
			}
			if err := p.store.Meta.SetRaw(tx, key, raw); err != nil {
				return err
			}
		}
		return tx.Events.LogImport(tx.Tx, res.Actor, res.SessionID, res.Summary())
	})
	if err != nil {
		return nil, err
	}

	for _, w := range res.Warnings {
		p.logger.Warn("import warning", zap.String("session", res.SessionID), zap.String("warning", w))
	}
	p.logger.Info("bundle imported",
		zap.String("session", res.SessionID),
		zap.String("mode", string(res.Mode)),
		zap.String("actor", string(res.Actor)),
		zap.Int("inserted", res.Count(merge.OpInsert)),
		zap.Int("updated", res.Count(merge.OpUpdate)),
		zap.Int("skipped", res.Count(merge.OpSkip)),
	)
	return res, nil
}

// ResetLocal removes every record, attachment and metadata key, and deletes
// the attachment files.
func (p *Planner) ResetLocal() error {
	if err := p.store.WithTx(func(tx *store.Tx) error {
		if err := p.store.Wipe(tx); err != nil {
			return err
		}
		return tx.Events.LogEvent(tx.Tx, &events.Event{
			Actor:        string(p.actor),
			ResourceType: "store",
			EventType:    "store.reset",
		})
	}); err != nil {
		return err
	}
	if p.attach.AttachDir != "" {
		if err := attach.RemoveAll(p.attach.AttachDir); err != nil {
			return err
		}
	}
	p.logger.Info("local data reset")
	return nil
}
