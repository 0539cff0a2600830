package planner

import (
	"fmt"

	"github.com/lherron/homeplan/internal/attach"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/store"
	"go.uber.org/zap"
)

// ConvertItemToOption turns a standalone item into an option of target. The
// source item and its own options become tombstones and the new option
// remembers the source in SourceItemID. An item can be converted once.
//
// Attachments follow the new option on a best-effort basis: a failed move is
// logged and the conversion still stands.
func (p *Planner) ConvertItemToOption(itemID, targetItemID string) (*domain.Option, error) {
	all, err := p.store.Options.List()
	if err != nil {
		return nil, err
	}
	for _, o := range all {
		if o.SourceItemID == itemID && !o.IsDeleted() {
			return nil, fmt.Errorf("item %s (option %s): %w", itemID, o.ID, domain.ErrDuplicateConversion)
		}
	}

	src, err := p.store.Items.GetLive(itemID)
	if err != nil {
		return nil, err
	}
	if targetItemID == itemID {
		return nil, fmt.Errorf("item %s cannot become an option of itself", itemID)
	}
	if _, err := p.store.Items.GetLive(targetItemID); err != nil {
		return nil, fmt.Errorf("target item: %w", err)
	}
	srcOptions, err := p.store.Options.ListByParent(itemID)
	if err != nil {
		return nil, err
	}
	files, err := p.store.Attachments.ListFor(domain.KindItem, itemID)
	if err != nil {
		return nil, err
	}

	opt := optionFromItem(src, targetItemID)
	now := p.millis()
	p.stampNew(domain.KindOption, &opt.Base, now)

	err = p.store.WithTx(func(tx *store.Tx) error {
		if err := write(p, tx, p.store.Options, opt, "created", map[string]string{"sourceItemId": itemID}); err != nil {
			return err
		}
		return p.tombstoneItem(tx, src, srcOptions, now, "converted")
	})
	if err != nil {
		return nil, err
	}

	if len(files) > 0 {
		if err := p.relinkAttachments(files, itemID, opt.ID); err != nil {
			p.logger.Warn("attachments were not moved to the converted option",
				zap.String("item", itemID),
				zap.String("option", opt.ID),
				zap.Int("attachments", len(files)),
				zap.Error(err),
			)
		}
	}
	return opt, nil
}

func optionFromItem(it *domain.Item, targetItemID string) *domain.Option {
	return &domain.Option{
		Base: domain.Base{
			Sort: it.Sort,
			Provenance: domain.Provenance{
				DataSource: it.Provenance.DataSource,
				SourceRef:  it.Provenance.SourceRef,
			},
		},
		ItemID:        targetItemID,
		Title:         it.Name,
		Store:         it.Store,
		Link:          it.Link,
		Price:         it.Price,
		DiscountType:  it.DiscountType,
		DiscountValue: it.DiscountValue,
		Dimensions:    it.Dimensions,
		Specs:         it.Specs,
		Notes:         it.Notes,
		Priority:      it.Priority,
		Tags:          it.Tags,
		SourceItemID:  it.ID,
	}
}

// relinkAttachments moves the attachment files and metadata of an item to an
// option.
func (p *Planner) relinkAttachments(files []domain.Attachment, itemID, optionID string) error {
	rewrite := func(url string) string { return url }
	if p.attach.AttachDir != "" {
		var err error
		rewrite, err = attach.MoveParent(p.attach.AttachDir, domain.KindItem, itemID, domain.KindOption, optionID)
		if err != nil {
			return err
		}
	}
	now := p.millis()
	return p.store.WithTx(func(tx *store.Tx) error {
		if _, err := p.store.Attachments.Relink(tx, domain.KindItem, itemID, domain.KindOption, optionID); err != nil {
			return err
		}
		for i := range files {
			a := files[i]
			url := rewrite(a.URL)
			if url == a.URL {
				continue
			}
			a.ParentKind, a.ParentID, a.URL, a.UpdatedAt = domain.KindOption, optionID, url, now
			if err := p.store.Attachments.Add(tx, &a); err != nil {
				return err
			}
		}
		return nil
	})
}
