package planner

import (
	"fmt"
	"strings"

	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/store"
)

// ParseReviewStatus validates a review status name.
func ParseReviewStatus(s string) (domain.ReviewStatus, error) {
	switch rs := domain.ReviewStatus(strings.ToLower(strings.TrimSpace(s))); rs {
	case domain.ReviewNeedsReview, domain.ReviewVerified, domain.ReviewAIModified:
		return rs, nil
	default:
		return "", fmt.Errorf("unknown review status %q (want needs_review, verified or ai_modified)", s)
	}
}

// SetReviewStatus moves one live record to a review status. Verifying clears
// the record's edit history.
func (p *Planner) SetReviewStatus(kind domain.Kind, recordID string, status domain.ReviewStatus) error {
	if _, err := ParseReviewStatus(string(status)); err != nil {
		return err
	}
	now := p.millis()
	switch kind {
	case domain.KindRoom:
		return setReview(p, p.store.Rooms, recordID, status, now)
	case domain.KindMeasurement:
		return setReview(p, p.store.Measurements, recordID, status, now)
	case domain.KindItem:
		return setReview(p, p.store.Items, recordID, status, now)
	case domain.KindOption:
		return setReview(p, p.store.Options, recordID, status, now)
	case domain.KindStore:
		return setReview(p, p.store.Stores, recordID, status, now)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
}

func setReview[T any](p *Planner, t *store.Table[T], recordID string, status domain.ReviewStatus, now int64) error {
	v, err := t.GetLive(recordID)
	if err != nil {
		return err
	}
	b := base(v)
	from := b.Provenance.ReviewStatus
	if from == status && status != domain.ReviewVerified {
		return nil
	}
	b.Provenance.SetReviewStatus(status, p.actor, now)
	b.SyncState = domain.SyncDirty
	b.UpdatedAt = now
	return p.store.WithTx(func(tx *store.Tx) error {
		return write(p, tx, t, v, "reviewed", map[string]domain.ReviewStatus{"from": from, "to": status})
	})
}

// VerifyPending verifies every live record that awaits review or was changed
// by an AI edit. It returns how many records were verified.
func (p *Planner) VerifyPending() (int, error) {
	snap, err := p.store.Snapshot()
	if err != nil {
		return 0, err
	}
	now := p.millis()
	n := 0
	err = p.store.WithTx(func(tx *store.Tx) error {
		var err error
		count := func(c int, e error) {
			n += c
			if err == nil {
				err = e
			}
		}
		count(verifyAll(p, tx, p.store.Rooms, snap.Rooms, now))
		count(verifyAll(p, tx, p.store.Stores, snap.Stores, now))
		count(verifyAll(p, tx, p.store.Items, snap.Items, now))
		count(verifyAll(p, tx, p.store.Options, snap.Options, now))
		count(verifyAll(p, tx, p.store.Measurements, snap.Measurements, now))
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func verifyAll[T any](p *Planner, tx *store.Tx, t *store.Table[T], list []T, now int64) (int, error) {
	n := 0
	for i := range list {
		b := base(&list[i])
		if b.IsDeleted() {
			continue
		}
		if rs := b.Provenance.ReviewStatus; rs != domain.ReviewNeedsReview && rs != domain.ReviewAIModified {
			continue
		}
		from := b.Provenance.ReviewStatus
		b.Provenance.SetReviewStatus(domain.ReviewVerified, p.actor, now)
		b.SyncState = domain.SyncDirty
		b.UpdatedAt = now
		if err := write(p, tx, t, &list[i], "reviewed", map[string]domain.ReviewStatus{"from": from, "to": domain.ReviewVerified}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
