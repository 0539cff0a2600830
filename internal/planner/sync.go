package planner

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/events"
	"github.com/lherron/homeplan/internal/remote"
	"github.com/lherron/homeplan/internal/store"
	"go.uber.org/zap"
)

// ErrNoRemote is returned by Pull and Push when no remote is configured.
var ErrNoRemote = errors.New("no remote configured")

// PullResult reports a completed pull.
type PullResult struct {
	remote.PullStats
	Records   int      `json:"records"`
	Refetched bool     `json:"refetched"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Pull fetches the remote records and merges them into the local store.
// Records with unpushed local edits are kept. A failed fetch leaves the
// local store untouched.
func (p *Planner) Pull(ctx context.Context) (*PullResult, error) {
	if p.reconciler == nil {
		return nil, ErrNoRemote
	}
	pulled, err := p.reconciler.Pull(ctx, p.view)
	if err != nil {
		return nil, err
	}
	current, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}
	now := p.millis()
	writes, stats, err := remote.MergePull(current, pulled.Graph, now)
	if err != nil {
		return nil, err
	}
	res := &PullResult{
		PullStats: *stats,
		Records:   pulled.Records,
		Refetched: pulled.Refetched,
		Warnings:  pulled.Graph.Warnings,
	}

	err = p.store.WithTx(func(tx *store.Tx) error {
		if err := p.store.PutSnapshot(tx, writes); err != nil {
			return err
		}
		if err := p.store.Meta.Set(tx, store.MetaLastPull, map[string]any{"at": now, "records": res.Records}); err != nil {
			return err
		}
		return logSync(tx, p.actor, "remote.pulled", res)
	})
	if err != nil {
		return nil, err
	}

	for _, c := range stats.Conflicts {
		p.logger.Warn("pull conflict", zap.String("conflict", c))
	}
	p.logger.Info("pull complete",
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("kept_local", stats.KeptLocal),
	)
	return res, nil
}

// PushResult reports a completed push.
type PushResult struct {
	Sent      int          `json:"sent"`
	Acked     int          `json:"acked"`
	Unmatched []remote.Ack `json:"unmatched,omitempty"`
}

// Push sends every dirty record and every tombstone the remote still knows
// about, then marks acknowledged records clean. A failed push leaves the
// local store untouched.
func (p *Planner) Push(ctx context.Context) (*PushResult, error) {
	if p.reconciler == nil {
		return nil, ErrNoRemote
	}
	snap, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}
	records, err := remote.BuildPush(snap)
	if err != nil {
		return nil, err
	}
	sent := remote.Versions(snap)
	res := &PushResult{Sent: len(records)}
	if len(records) == 0 {
		return res, nil
	}

	acks, err := p.reconciler.Push(ctx, records)
	if err != nil {
		return nil, err
	}
	res.Acked = len(acks)

	// records edited during the call stay dirty
	fresh, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}
	changed, unmatched := remote.ApplyAcks(fresh, acks, sent)
	res.Unmatched = unmatched

	now := p.millis()
	err = p.store.WithTx(func(tx *store.Tx) error {
		if err := p.store.PutSnapshot(tx, changed); err != nil {
			return err
		}
		if err := p.store.Meta.Set(tx, store.MetaLastPush, map[string]any{"at": now, "sent": res.Sent}); err != nil {
			return err
		}
		return logSync(tx, p.actor, "remote.pushed", res)
	})
	if err != nil {
		return nil, err
	}

	for _, a := range unmatched {
		p.logger.Warn("push acknowledged an unknown record",
			zap.String("record", a.RecordID), zap.String("remote_id", a.RemoteID))
	}
	p.logger.Info("push complete", zap.Int("sent", res.Sent), zap.Int("acked", res.Acked))
	return res, nil
}

func logSync(tx *store.Tx, actor domain.Actor, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s := string(data)
	return tx.Events.LogEvent(tx.Tx, &events.Event{
		Actor:        string(actor),
		ResourceType: "remote",
		EventType:    eventType,
		Payload:      &s,
	})
}
