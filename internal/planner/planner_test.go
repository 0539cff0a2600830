package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lherron/homeplan/internal/attach"
	"github.com/lherron/homeplan/internal/bundle"
	"github.com/lherron/homeplan/internal/diff"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/merge"
	"github.com/lherron/homeplan/internal/remote"
	"github.com/lherron/homeplan/internal/store"
	"github.com/lherron/homeplan/internal/testutil"
	"github.com/lherron/homeplan/internal/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }
func prio(v int) *int      { return &v }

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newPlanner(t *testing.T, opts ...Option) *Planner {
	t.Helper()
	database, _ := testutil.TempDB(t)
	c := &clock{t: time.UnixMilli(1_700_000_000_000)}
	return New(store.New(database, nil), append([]Option{WithClock(c.now)}, opts...)...)
}

type fixture struct {
	room  *domain.Room
	store *domain.Store
	sofa  *domain.Item
	lamp  *domain.Item
	opt   *domain.Option
	wall  *domain.Measurement
}

func seed(t *testing.T, p *Planner) fixture {
	t.Helper()
	var fx fixture
	var err error
	fx.room, err = p.CreateRoom(domain.Room{Name: "Living Room"})
	require.NoError(t, err)
	fx.store, err = p.CreateStore(domain.Store{Name: "IKEA", ShippingCost: f(49)})
	require.NoError(t, err)
	fx.sofa, err = p.CreateItem(domain.Item{Name: "Sofa", Room: fx.room.ID, Price: f(1000), Store: "IKEA", Notes: "deep seat\nlinen"})
	require.NoError(t, err)
	fx.lamp, err = p.CreateItem(domain.Item{Name: "Lamp", Room: fx.room.ID, Price: f(80), Store: "ikea", Priority: prio(1)})
	require.NoError(t, err)
	fx.opt, err = p.CreateOption(domain.Option{ItemID: fx.sofa.ID, Title: "Sofa, green", Store: "IKEA", Price: f(900), Selected: true})
	require.NoError(t, err)
	fx.wall, err = p.CreateMeasurement(domain.Measurement{Room: fx.room.ID, Label: "North wall", ValueIn: f(144)})
	require.NoError(t, err)
	return fx
}

func TestCreate_StampsBookkeeping(t *testing.T) {
	p := newPlanner(t)
	r, err := p.CreateRoom(domain.Room{Name: "  Den "})
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "Den", r.Name)
	assert.Equal(t, domain.SyncDirty, r.SyncState)
	assert.Nil(t, r.RemoteID)
	assert.NotZero(t, r.CreatedAt)
	assert.Equal(t, domain.ActorHuman, r.Provenance.CreatedBy)

	got, err := p.Store().Rooms.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Name, got.Name)

	hist, err := p.History(10)
	require.NoError(t, err)
	require.NotEmpty(t, hist)
	assert.Equal(t, "rooms.created", hist[0].EventType)
}

func TestCreateRoom_NameTaken(t *testing.T) {
	p := newPlanner(t)
	_, err := p.CreateRoom(domain.Room{Name: "Living Room"})
	require.NoError(t, err)

	_, err = p.CreateRoom(domain.Room{Name: " living   ROOM"})
	assert.ErrorIs(t, err, domain.ErrRoomNameTaken)
}

func TestCreateItem_RequiresLiveRoom(t *testing.T) {
	p := newPlanner(t)
	_, err := p.CreateItem(domain.Item{Name: "Rug", Room: "room_missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateItem_RejectsInvalidPriority(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)
	_, err := p.CreateItem(domain.Item{Name: "Rug", Room: fx.room.ID, Priority: prio(9)})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdate_RecordsChanges(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)

	it, err := p.UpdateItem(fx.lamp.ID, func(it *domain.Item) error {
		it.Price = f(95)
		it.Status = domain.StatusShortlist
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, it.UpdatedAt, fx.lamp.UpdatedAt)
	assert.Equal(t, fx.lamp.CreatedAt, it.CreatedAt)
	assert.Equal(t, []string{"status", "price"}, it.Provenance.ModifiedFields)
	require.Len(t, it.Provenance.ChangeLog, 2)
	assert.Equal(t, domain.ActorHuman, it.Provenance.ChangeLog[0].By)
	assert.Equal(t, domain.ReviewNone, it.Provenance.ReviewStatus)
}

func TestUpdate_IdenticalPatchMarksDirty(t *testing.T) {
	p := newPlanner(t)
	r, err := p.CreateRoom(domain.Room{Name: "Den"})
	require.NoError(t, err)
	remoteID := "rec_den"
	r.RemoteID = &remoteID
	r.SyncState = domain.SyncClean
	require.NoError(t, p.Store().WithTx(func(tx *store.Tx) error {
		return p.Store().Rooms.Put(tx, r)
	}))

	got, err := p.UpdateRoom(r.ID, func(r *domain.Room) error {
		r.Name = "Den"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SyncDirty, got.SyncState)
	assert.Greater(t, got.UpdatedAt, r.UpdatedAt)
	assert.Empty(t, got.Provenance.ChangeLog)
	assert.Empty(t, got.Provenance.ModifiedFields)

	stored, err := p.Store().Rooms.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncDirty, stored.SyncState)
	require.NotNil(t, stored.RemoteID)
	assert.Equal(t, remoteID, *stored.RemoteID)
}

func TestUpdateStore_IdenticalPatchMarksDirty(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)
	s := *fx.store
	s.SyncState = domain.SyncClean
	require.NoError(t, p.Store().WithTx(func(tx *store.Tx) error {
		return p.Store().Stores.Put(tx, &s)
	}))

	got, err := p.UpdateStore(s.ID, func(s *domain.Store) error {
		s.Name = "IKEA "
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SyncDirty, got.SyncState)
	assert.Empty(t, got.Provenance.ChangeLog)

	sofa, err := p.Store().Items.Get(fx.sofa.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.sofa.UpdatedAt, sofa.UpdatedAt)
}

func TestUpdate_BookkeepingIsNotPatchable(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)
	remoteID := "rec_x"
	r, err := p.UpdateRoom(fx.room.ID, func(r *domain.Room) error {
		r.ID = "room_other"
		r.RemoteID = &remoteID
		r.Notes = "south facing"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, fx.room.ID, r.ID)
	assert.Nil(t, r.RemoteID)
}

func TestAIEdit_MarksModifiedAndVerifyClears(t *testing.T) {
	database, _ := testutil.TempDB(t)
	st := store.New(database, nil)
	human := New(st)
	ai := New(st, WithActor(domain.ActorAI))
	fx := seed(t, human)

	it, err := ai.UpdateItem(fx.sofa.ID, func(it *domain.Item) error {
		it.Category = "seating"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewAIModified, it.Provenance.ReviewStatus)
	assert.Equal(t, domain.ActorAI, it.Provenance.LastEditedBy)
	assert.Contains(t, it.Provenance.ModifiedFields, "category")

	require.NoError(t, human.SetReviewStatus(domain.KindItem, fx.sofa.ID, domain.ReviewVerified))
	got, err := st.Items.Get(fx.sofa.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewVerified, got.Provenance.ReviewStatus)
	assert.Empty(t, got.Provenance.ModifiedFields)
	assert.Empty(t, got.Provenance.ChangeLog)
	assert.Equal(t, domain.ActorHuman, got.Provenance.VerifiedBy)
	assert.NotZero(t, got.Provenance.VerifiedAt)
}

func TestVerifyPending(t *testing.T) {
	p := newPlanner(t, WithActor(domain.ActorAI))
	seed(t, p)

	n, err := p.VerifyPending()
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = p.VerifyPending()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSetReviewStatus_UnknownStatus(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)
	assert.Error(t, p.SetReviewStatus(domain.KindRoom, fx.room.ID, "approved"))
}

func TestDeleteRoom(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)

	err := p.DeleteRoom(fx.room.ID, "")
	assert.ErrorIs(t, err, domain.ErrRoomNotEmpty)

	bedroom, err := p.CreateRoom(domain.Room{Name: "Bedroom"})
	require.NoError(t, err)
	require.NoError(t, p.DeleteRoom(fx.room.ID, bedroom.ID))

	gone, err := p.Store().Rooms.Get(fx.room.ID)
	require.NoError(t, err)
	assert.True(t, gone.IsDeleted())
	_, err = p.Store().Rooms.GetLive(fx.room.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	sofa, err := p.Store().Items.Get(fx.sofa.ID)
	require.NoError(t, err)
	assert.Equal(t, bedroom.ID, sofa.Room)
	wall, err := p.Store().Measurements.Get(fx.wall.ID)
	require.NoError(t, err)
	assert.Equal(t, bedroom.ID, wall.Room)

	// the name is free again once the room is a tombstone
	_, err = p.CreateRoom(domain.Room{Name: "Living Room"})
	assert.NoError(t, err)
}

func TestDeleteItem_TombstonesOptions(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)
	require.NoError(t, p.DeleteItem(fx.sofa.ID))

	o, err := p.Store().Options.Get(fx.opt.ID)
	require.NoError(t, err)
	assert.True(t, o.IsDeleted())
	assert.False(t, o.Selected)

	it, err := p.Store().Items.Get(fx.sofa.ID)
	require.NoError(t, err)
	assert.True(t, it.IsDeleted())
}

// assertSelection checks that an item has at most one selected live option
// and that its selectedOptionId names it.
func assertSelection(t *testing.T, p *Planner, itemID, want string) {
	t.Helper()
	it, err := p.Store().Items.Get(itemID)
	require.NoError(t, err)
	assert.Equal(t, want, it.SelectedOptionID)

	options, err := p.Store().Options.ListByParent(itemID)
	require.NoError(t, err)
	var selected []string
	for _, o := range options {
		if o.Selected {
			selected = append(selected, o.ID)
		}
	}
	if want == "" {
		assert.Empty(t, selected)
	} else {
		assert.Equal(t, []string{want}, selected)
	}
}

func TestSelectionInvariant(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)
	assertSelection(t, p, fx.sofa.ID, fx.opt.ID)

	b, err := p.CreateOption(domain.Option{ItemID: fx.sofa.ID, Title: "Sofa, grey", Price: f(950)})
	require.NoError(t, err)
	assertSelection(t, p, fx.sofa.ID, fx.opt.ID)

	c, err := p.CreateOption(domain.Option{ItemID: fx.sofa.ID, Title: "Sofa, blue", Price: f(990), Selected: true})
	require.NoError(t, err)
	assertSelection(t, p, fx.sofa.ID, c.ID)

	require.NoError(t, p.SelectOption(fx.sofa.ID, b.ID))
	assertSelection(t, p, fx.sofa.ID, b.ID)

	// patches cannot flip the flag behind the item's back
	_, err = p.UpdateOption(c.ID, func(o *domain.Option) error {
		o.Selected = true
		o.Notes = "velvet"
		return nil
	})
	require.NoError(t, err)
	assertSelection(t, p, fx.sofa.ID, b.ID)

	require.NoError(t, p.DeleteOption(b.ID))
	assertSelection(t, p, fx.sofa.ID, "")

	require.NoError(t, p.SelectOption(fx.sofa.ID, c.ID))
	require.NoError(t, p.SelectOption(fx.sofa.ID, ""))
	assertSelection(t, p, fx.sofa.ID, "")

	err = p.SelectOption(fx.lamp.ID, c.ID)
	assert.Error(t, err)
}

func TestUpdateStore_RenameCascades(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)
	_, err := p.CreateStore(domain.Store{Name: "CB2"})
	require.NoError(t, err)

	s, err := p.UpdateStore(fx.store.ID, func(s *domain.Store) error {
		s.Name = "IKEA Home"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "IKEA Home", s.Name)

	for _, id := range []string{fx.sofa.ID, fx.lamp.ID} {
		it, err := p.Store().Items.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "IKEA Home", it.Store)
	}
	o, err := p.Store().Options.Get(fx.opt.ID)
	require.NoError(t, err)
	assert.Equal(t, "IKEA Home", o.Store)

	_, err = p.UpdateStore(fx.store.ID, func(s *domain.Store) error {
		s.Name = "cb2"
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrStoreNameTaken)
	it, err := p.Store().Items.Get(fx.sofa.ID)
	require.NoError(t, err)
	assert.Equal(t, "IKEA Home", it.Store)
}

func TestConvertItemToOption(t *testing.T) {
	attachDir := t.TempDir()
	p := newPlanner(t, WithAttach(attach.Config{AttachDir: attachDir}))
	fx := seed(t, p)

	chair, err := p.CreateItem(domain.Item{Name: "Accent chair", Room: fx.room.ID, Price: f(300), Store: "CB2", Tags: []string{"velvet"}})
	require.NoError(t, err)
	src := testutil.WriteFile(t, t.TempDir(), "photo.png", "png-bytes")
	a, err := p.AttachFile(domain.KindItem, chair.ID, src, "")
	require.NoError(t, err)
	assert.Equal(t, "file:items/"+chair.ID+"/photo.png", a.URL)

	opt, err := p.ConvertItemToOption(chair.ID, fx.sofa.ID)
	require.NoError(t, err)
	assert.Equal(t, chair.ID, opt.SourceItemID)
	assert.Equal(t, fx.sofa.ID, opt.ItemID)
	assert.Equal(t, "Accent chair", opt.Title)
	assert.Equal(t, []string{"velvet"}, opt.Tags)
	assert.False(t, opt.Selected)

	gone, err := p.Store().Items.Get(chair.ID)
	require.NoError(t, err)
	assert.True(t, gone.IsDeleted())

	all, err := p.Store().Options.List()
	require.NoError(t, err)
	converted := 0
	for _, o := range all {
		if o.SourceItemID == chair.ID {
			converted++
		}
	}
	assert.Equal(t, 1, converted)

	files, err := p.ListAttachments(domain.KindOption, opt.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "file:options/"+opt.ID+"/photo.png", files[0].URL)
	_, err = os.Stat(filepath.Join(attachDir, "options", opt.ID, "photo.png"))
	assert.NoError(t, err)

	_, err = p.ConvertItemToOption(chair.ID, fx.sofa.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateConversion)
}

func TestConvertItemToOption_RelinkFailureIsNotFatal(t *testing.T) {
	attachDir := t.TempDir()
	p := newPlanner(t, WithAttach(attach.Config{AttachDir: attachDir}))
	fx := seed(t, p)
	src := testutil.WriteFile(t, t.TempDir(), "spec.pdf", "pdf")
	_, err := p.AttachFile(domain.KindItem, fx.lamp.ID, src, "")
	require.NoError(t, err)

	// a plain file where the options directory should go makes the move fail
	require.NoError(t, os.WriteFile(filepath.Join(attachDir, "options"), []byte("x"), 0644))

	opt, err := p.ConvertItemToOption(fx.lamp.ID, fx.sofa.ID)
	require.NoError(t, err)
	lamp, err := p.Store().Items.Get(fx.lamp.ID)
	require.NoError(t, err)
	assert.True(t, lamp.IsDeleted())
	assert.Equal(t, fx.lamp.ID, opt.SourceItemID)
}

func TestAllocation(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)

	a, err := p.Allocation()
	require.NoError(t, err)
	st, ok := a.Store("ikea")
	require.True(t, ok)
	// sofa through its selected option (900) + lamp (80) + shipping once
	assert.Equal(t, "1029", st.Total.String())
	assert.Equal(t, fx.lamp.ID, st.Anchor)
	assert.Equal(t, "ikea", a.ItemStore[fx.sofa.ID])
}

func TestHistoryPage(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)
	_, err := p.UpdateItem(fx.sofa.ID, func(it *domain.Item) error {
		it.Notes = "velvet"
		return nil
	})
	require.NoError(t, err)

	var seen []int64
	token := ""
	for {
		page, next, err := p.HistoryPage("", token, 2)
		require.NoError(t, err)
		for _, e := range page {
			seen = append(seen, e.ID)
		}
		if next == "" {
			break
		}
		token = next
	}
	all, err := p.History(1000)
	require.NoError(t, err)
	require.Len(t, seen, len(all))
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i-1], seen[i])
	}

	sofa, next, err := p.HistoryPage(fx.sofa.ID, "", 50)
	require.NoError(t, err)
	assert.Empty(t, next)
	require.NotEmpty(t, sofa)
	for _, e := range sofa {
		assert.Equal(t, fx.sofa.ID, *e.ResourceID)
	}

	_, first, err := p.HistoryPage("", "", 1)
	require.NoError(t, err)
	_, _, err = p.HistoryPage(fx.sofa.ID, first, 1)
	assert.Error(t, err, "cursor from another filter")
}

func TestReadViews(t *testing.T) {
	p := newPlanner(t)
	fx := seed(t, p)
	_, err := p.CreateOption(domain.Option{ItemID: fx.sofa.ID, Title: "Sofa, cheap", Price: f(400)})
	require.NoError(t, err)

	rooms, err := p.OrderedRooms()
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	stores, err := p.OrderedStores()
	require.NoError(t, err)
	require.Len(t, stores, 1)

	options, err := p.SortAndFilterOptions(views.OptionFilter{ItemID: fx.sofa.ID, Sort: views.SortPrice})
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "Sofa, cheap", options[0].Title)
}

// sameDomainData checks that b holds the same user data as a for every
// record, comparing domain fields only.
func sameDomainData(t *testing.T, a, b *domain.Snapshot) {
	t.Helper()
	require.Len(t, b.Rooms, len(a.Rooms))
	require.Len(t, b.Items, len(a.Items))
	require.Len(t, b.Options, len(a.Options))
	require.Len(t, b.Stores, len(a.Stores))
	require.Len(t, b.Measurements, len(a.Measurements))
	for i := range a.Rooms {
		got, ok := b.RoomByID(a.Rooms[i].ID)
		require.True(t, ok)
		assert.Empty(t, diff.Rooms(&a.Rooms[i], got))
	}
	for i := range a.Items {
		got, ok := b.ItemByID(a.Items[i].ID)
		require.True(t, ok)
		assert.Empty(t, diff.Items(&a.Items[i], got))
	}
	for i := range a.Options {
		assert.Empty(t, diff.Options(&a.Options[i], &b.Options[i]))
	}
	for i := range a.Stores {
		assert.Empty(t, diff.Stores(&a.Stores[i], &b.Stores[i]))
	}
	for i := range a.Measurements {
		assert.Empty(t, diff.Measurements(&a.Measurements[i], &b.Measurements[i]))
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := newPlanner(t)
	fx := seed(t, src)
	require.NoError(t, src.SetHome([]byte(`{"name":"Maple St"}`)))
	require.NoError(t, src.DeleteItem(fx.lamp.ID))

	b, err := src.ExportBundle()
	require.NoError(t, err)
	raw, err := b.Marshal()
	require.NoError(t, err)

	dst := newPlanner(t)
	res, err := dst.ImportBundle(raw, ImportOptions{Mode: merge.ModeReplace})
	require.NoError(t, err)
	assert.True(t, res.Wipe)

	want, err := src.Snapshot()
	require.NoError(t, err)
	got, err := dst.Snapshot()
	require.NoError(t, err)
	sameDomainData(t, want, got)

	lamp, ok := got.ItemByID(fx.lamp.ID)
	require.True(t, ok)
	assert.True(t, lamp.IsDeleted())
	for _, it := range got.Items {
		assert.Nil(t, it.RemoteID)
	}

	home, err := dst.Home()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Maple St"}`, string(home))
}

func TestImport_MergeIsIdempotent(t *testing.T) {
	src := newPlanner(t)
	seed(t, src)
	b, err := src.ExportBundle()
	require.NoError(t, err)
	raw, err := b.Marshal()
	require.NoError(t, err)

	dst := newPlanner(t)
	first, err := dst.ImportBundle(raw, ImportOptions{Mode: merge.ModeMerge})
	require.NoError(t, err)
	assert.Equal(t, 6, first.Count(merge.OpInsert))
	afterFirst, err := dst.Snapshot()
	require.NoError(t, err)

	second, err := dst.ImportBundle(raw, ImportOptions{Mode: merge.ModeMerge})
	require.NoError(t, err)
	assert.Zero(t, second.Count(merge.OpInsert))
	assert.Zero(t, second.Count(merge.OpUpdate))

	afterSecond, err := dst.Snapshot()
	require.NoError(t, err)
	for i := range afterFirst.Items {
		assert.Equal(t, afterFirst.Items[i].UpdatedAt, afterSecond.Items[i].UpdatedAt)
	}
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	src := newPlanner(t)
	seed(t, src)
	b, err := src.ExportBundle()
	require.NoError(t, err)
	raw, err := b.Marshal()
	require.NoError(t, err)

	dst := newPlanner(t)
	res, err := dst.ImportBundle(raw, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Count(merge.OpInsert))
	n, err := dst.Store().Rooms.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImport_UnknownShapeChangesNothing(t *testing.T) {
	p := newPlanner(t)
	seed(t, p)

	_, err := p.ImportBundle([]byte(`{"foo": 1, "bar": []}`), ImportOptions{Mode: merge.ModeReplace})
	var shapeErr *bundle.ShapeError
	require.ErrorAs(t, err, &shapeErr)

	n, err := p.Store().Items.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImport_LegacyBundle(t *testing.T) {
	p := newPlanner(t)
	raw := []byte(`{
		"title": "Old plan",
		"items": [{"title": "Desk", "room": "Office", "price": 250, "quantity": 2}],
		"measurements": [{"label": "Alcove", "value": 100, "unit": "cm", "room": "Office"}]
	}`)
	res, err := p.ImportBundle(raw, ImportOptions{Mode: merge.ModeMerge})
	require.NoError(t, err)
	assert.NotZero(t, res.Count(merge.OpInsert))

	rooms, err := p.OrderedRooms()
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Office", rooms[0].Name)
}

func TestResetLocal(t *testing.T) {
	attachDir := t.TempDir()
	p := newPlanner(t, WithAttach(attach.Config{AttachDir: attachDir}))
	fx := seed(t, p)
	src := testutil.WriteFile(t, t.TempDir(), "a.txt", "a")
	_, err := p.AttachFile(domain.KindRoom, fx.room.ID, src, "")
	require.NoError(t, err)

	require.NoError(t, p.ResetLocal())

	snap, err := p.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Rooms)
	assert.Empty(t, snap.Items)
	_, err = os.Stat(filepath.Join(attachDir, "rooms"))
	assert.True(t, os.IsNotExist(err))
}

func TestAttachFile_SizeLimit(t *testing.T) {
	p := newPlanner(t, WithAttach(attach.Config{AttachDir: t.TempDir(), MaxMB: 1}))
	fx := seed(t, p)
	big := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(big, make([]byte, 2*1024*1024), 0644))

	_, err := p.AttachFile(domain.KindItem, fx.sofa.ID, big, "")
	assert.Error(t, err)
}

func TestPullPush_FileRemote(t *testing.T) {
	remotePath := filepath.Join(t.TempDir(), "remote.json")

	a := newPlanner(t, WithRemote(remote.NewFileClient(remotePath), ""))
	fx := seed(t, a)

	pushed, err := a.Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, pushed.Sent)
	assert.Equal(t, 6, pushed.Acked)
	assert.Empty(t, pushed.Unmatched)

	snap, err := a.Snapshot()
	require.NoError(t, err)
	for _, it := range snap.Items {
		assert.Equal(t, domain.SyncClean, it.SyncState)
		require.NotNil(t, it.RemoteID)
	}

	again, err := a.Push(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Sent)

	b := newPlanner(t, WithRemote(remote.NewFileClient(remotePath), ""))
	pulled, err := b.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, pulled.Inserted)

	sofa, err := b.Store().Items.Get(fx.sofa.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.room.ID, sofa.Room)
	assert.Equal(t, "deep seat\nlinen", sofa.Notes)
	assert.Equal(t, fx.opt.ID, sofa.SelectedOptionID)
	assert.Equal(t, domain.SyncClean, sofa.SyncState)

	_, err = a.UpdateItem(fx.sofa.ID, func(it *domain.Item) error {
		it.Price = f(1100)
		return nil
	})
	require.NoError(t, err)
	_, err = a.Push(context.Background())
	require.NoError(t, err)

	pulled, err = b.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pulled.Updated)
	sofa, err = b.Store().Items.Get(fx.sofa.ID)
	require.NoError(t, err)
	assert.Equal(t, 1100.0, *sofa.Price)

	var last map[string]any
	ok, err := b.Store().Meta.Get(store.MetaLastPull, &last)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPull_KeepsUnpushedLocalEdits(t *testing.T) {
	remotePath := filepath.Join(t.TempDir(), "remote.json")
	a := newPlanner(t, WithRemote(remote.NewFileClient(remotePath), ""))
	fx := seed(t, a)
	_, err := a.Push(context.Background())
	require.NoError(t, err)

	_, err = a.UpdateItem(fx.lamp.ID, func(it *domain.Item) error {
		it.Name = "Floor lamp"
		return nil
	})
	require.NoError(t, err)

	res, err := a.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.KeptLocal)
	lamp, err := a.Store().Items.Get(fx.lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Floor lamp", lamp.Name)
	assert.Equal(t, domain.SyncDirty, lamp.SyncState)
}

func TestPushTombstone(t *testing.T) {
	remotePath := filepath.Join(t.TempDir(), "remote.json")
	p := newPlanner(t, WithRemote(remote.NewFileClient(remotePath), ""))
	fx := seed(t, p)
	_, err := p.Push(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.DeleteMeasurement(fx.wall.ID))
	res, err := p.Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	wall, err := p.Store().Measurements.Get(fx.wall.ID)
	require.NoError(t, err)
	assert.True(t, wall.IsDeleted())
	assert.Nil(t, wall.RemoteID)

	res, err = p.Push(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
}

func TestPullPush_NoRemote(t *testing.T) {
	p := newPlanner(t)
	_, err := p.Pull(context.Background())
	assert.ErrorIs(t, err, ErrNoRemote)
	_, err = p.Push(context.Background())
	assert.ErrorIs(t, err, ErrNoRemote)
}

func TestLive_ReloadsUntilClosed(t *testing.T) {
	p := newPlanner(t)
	calls := 0
	live, err := p.Live(func(*domain.Snapshot) { calls++ })
	require.NoError(t, err)
	assert.Empty(t, live.Snapshot().Rooms)

	_, err = p.CreateRoom(domain.Room{Name: "Hall"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, live.Snapshot().Rooms, 1)
	assert.NoError(t, live.Err())

	live.Close()
	live.Close()
	_, err = p.CreateRoom(domain.Room{Name: "Study"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, p.Store().Bus().Len())
}
