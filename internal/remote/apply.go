package remote

import (
	"fmt"

	"github.com/lherron/homeplan/internal/bundle"
	"github.com/lherron/homeplan/internal/diff"
	"github.com/lherron/homeplan/internal/domain"
)

// PullStats counts what a pull did to the local store.
type PullStats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	// KeptLocal counts records not overwritten because they have unpushed
	// local edits or are local tombstones.
	KeptLocal int      `json:"keptLocal"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// MergePull computes the writes that bring current up to date with a pulled
// graph. Local records with unpushed edits are never overwritten.
func MergePull(current *domain.Snapshot, g *bundle.Graph, now int64) (*domain.Snapshot, *PullStats, error) {
	stats := &PullStats{}
	w := &domain.Snapshot{}

	existingRooms := make(map[string]bool, len(current.Rooms))
	for _, r := range current.Rooms {
		existingRooms[r.ID] = true
	}
	var rooms []domain.Room
	for _, r := range g.Rooms {
		if g.Placeholders[r.ID] && existingRooms[r.ID] {
			continue
		}
		rooms = append(rooms, r)
	}

	w.Rooms = mergePulled(stats, domain.KindRoom, current.Rooms, rooms, now, diff.Rooms, func(r *domain.Room) string { return r.Key() })
	w.Stores = mergePulled(stats, domain.KindStore, current.Stores, g.Stores, now, diff.Stores, func(s *domain.Store) string { return s.Key() })
	w.Items = mergePulled(stats, domain.KindItem, current.Items, g.Items, now, diff.Items, nil)
	w.Options = mergePulled(stats, domain.KindOption, current.Options, g.Options, now, diff.Options, nil)
	w.Measurements = mergePulled(stats, domain.KindMeasurement, current.Measurements, g.Measurements, now, diff.Measurements, nil)

	if err := validateAll(w); err != nil {
		return nil, nil, fmt.Errorf("pull rejected: %w", err)
	}
	return w, stats, nil
}

func base[T any](v *T) *domain.Base {
	return any(v).(domain.Entity).Meta()
}

// mergePulled applies pulled records of one kind. key, when set, guards the
// live-name uniqueness rule: a pulled record that would take a name held by a
// different live local record is reported as a conflict.
func mergePulled[T any](stats *PullStats, kind domain.Kind, existing, pulled []T, now int64, cmp func(a, b *T) []diff.Change, key func(*T) string) []T {
	idx := make(map[string]int, len(existing))
	names := make(map[string]string)
	for i := range existing {
		b := base(&existing[i])
		idx[b.ID] = i
		if key != nil && !b.IsDeleted() {
			names[key(&existing[i])] = b.ID
		}
	}

	var writes []T
	for _, in := range pulled {
		rec := in
		rb := base(&rec)

		if key != nil && !rb.IsDeleted() {
			if holder, ok := names[key(&rec)]; ok && holder != rb.ID {
				stats.Conflicts = append(stats.Conflicts, fmt.Sprintf("%s %s: name already used by %s", kind, rb.ID, holder))
				continue
			}
		}

		i, ok := idx[rb.ID]
		if !ok {
			if rb.CreatedAt == 0 {
				rb.CreatedAt = now
			}
			if rb.UpdatedAt == 0 {
				rb.UpdatedAt = now
			}
			stats.Inserted++
			writes = append(writes, rec)
			if key != nil && !rb.IsDeleted() {
				names[key(&rec)] = rb.ID
			}
			continue
		}

		cur := &existing[i]
		cb := base(cur)
		if cb.SyncState != domain.SyncClean {
			stats.KeptLocal++
			continue
		}
		sameRemote := (cb.RemoteID == nil) == (rb.RemoteID == nil) && (cb.RemoteID == nil || *cb.RemoteID == *rb.RemoteID)
		if len(cmp(cur, &rec)) == 0 && sameRemote && rb.SyncState == cb.SyncState {
			stats.Unchanged++
			continue
		}
		rb.CreatedAt = cb.CreatedAt
		if rb.UpdatedAt == 0 {
			rb.UpdatedAt = now
		}
		if key != nil {
			delete(names, key(cur))
			if !rb.IsDeleted() {
				names[key(&rec)] = rb.ID
			}
		}
		stats.Updated++
		writes = append(writes, rec)
	}
	return writes
}

func validateAll(w *domain.Snapshot) error {
	for i := range w.Rooms {
		if err := domain.Validate(domain.KindRoom, &w.Rooms[i]); err != nil {
			return err
		}
	}
	for i := range w.Stores {
		if err := domain.Validate(domain.KindStore, &w.Stores[i]); err != nil {
			return err
		}
	}
	for i := range w.Items {
		if err := domain.Validate(domain.KindItem, &w.Items[i]); err != nil {
			return err
		}
	}
	for i := range w.Options {
		if err := domain.Validate(domain.KindOption, &w.Options[i]); err != nil {
			return err
		}
	}
	for i := range w.Measurements {
		if err := domain.Validate(domain.KindMeasurement, &w.Measurements[i]); err != nil {
			return err
		}
	}
	return nil
}
