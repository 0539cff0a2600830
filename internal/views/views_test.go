package views

import (
	"testing"

	"github.com/lherron/homeplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }
func p(v int) *int         { return &v }

func ids[T any](list []T, id func(*T) string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = id(&list[i])
	}
	return out
}

func optionIDs(list []domain.Option) []string {
	return ids(list, func(o *domain.Option) string { return o.ID })
}

func TestOrderedRooms(t *testing.T) {
	rooms := []domain.Room{
		{Base: domain.Base{ID: "unsorted_old", CreatedAt: 1}, Name: "Zed"},
		{Base: domain.Base{ID: "second", Sort: f(2)}, Name: "B"},
		{Base: domain.Base{ID: "gone", Sort: f(0), SyncState: domain.SyncDeleted}, Name: "Gone"},
		{Base: domain.Base{ID: "first", Sort: f(1)}, Name: "A"},
		{Base: domain.Base{ID: "unsorted_new", CreatedAt: 9}, Name: "Alpha"},
	}
	got := OrderedRooms(rooms)
	assert.Equal(t, []string{"first", "second", "unsorted_old", "unsorted_new"},
		ids(got, func(r *domain.Room) string { return r.ID }))
}

func TestOrderedStores(t *testing.T) {
	stores := []domain.Store{
		{Base: domain.Base{ID: "w"}, Name: "west elm"},
		{Base: domain.Base{ID: "c"}, Name: "CB2"},
		{Base: domain.Base{ID: "i", Sort: f(1)}, Name: "IKEA"},
		{Base: domain.Base{ID: "x", SyncState: domain.SyncDeleted}, Name: "Closed"},
	}
	got := OrderedStores(stores)
	assert.Equal(t, []string{"i", "c", "w"}, ids(got, func(s *domain.Store) string { return s.ID }))
}

func options() []domain.Option {
	return []domain.Option{
		{Base: domain.Base{ID: "a", UpdatedAt: 1, Sort: f(3)}, ItemID: "itm_1", Title: "Walnut", Store: "CB2", Price: f(500), Priority: p(2)},
		{Base: domain.Base{ID: "b", UpdatedAt: 3, Sort: f(1)}, ItemID: "itm_1", Title: "oak", Store: "IKEA", Price: f(600),
			DiscountType: domain.DiscountPercent, DiscountValue: f(50), Selected: true},
		{Base: domain.Base{ID: "c", UpdatedAt: 2}, ItemID: "itm_1", Title: "Birch", Store: "ikea", Notes: "quote pending", Priority: p(1)},
		{Base: domain.Base{ID: "d", SyncState: domain.SyncDeleted}, ItemID: "itm_1", Title: "Pine", Price: f(1)},
		{Base: domain.Base{ID: "e"}, ItemID: "itm_2", Title: "Other", Price: f(10)},
	}
}

func TestSortAndFilterOptions(t *testing.T) {
	tests := []struct {
		name   string
		filter OptionFilter
		want   []string
	}{
		{"manual", OptionFilter{ItemID: "itm_1"}, []string{"b", "a", "c"}},
		{"price asc uses effective price", OptionFilter{ItemID: "itm_1", Sort: SortPrice}, []string{"b", "a", "c"}},
		{"price desc keeps unpriced last", OptionFilter{ItemID: "itm_1", Sort: SortPrice, Desc: true}, []string{"a", "b", "c"}},
		{"title", OptionFilter{ItemID: "itm_1", Sort: SortTitle}, []string{"c", "b", "a"}},
		{"priority", OptionFilter{ItemID: "itm_1", Sort: SortPriority}, []string{"c", "a", "b"}},
		{"updated", OptionFilter{ItemID: "itm_1", Sort: SortUpdated}, []string{"b", "c", "a"}},
		{"store by key", OptionFilter{Store: " IKEA "}, []string{"b", "c"}},
		{"query hits notes", OptionFilter{Query: "PENDING"}, []string{"c"}},
		{"query terms in any order", OptionFilter{Query: "pending birch"}, []string{"c"}},
		{"query needs every term", OptionFilter{Query: "birch walnut"}, []string{}},
		{"query ignores stopwords", OptionFilter{Query: "the oak"}, []string{"b"}},
		{"selected only", OptionFilter{SelectedOnly: true}, []string{"b"}},
		{"include deleted", OptionFilter{ItemID: "itm_1", IncludeDeleted: true, Sort: SortTitle}, []string{"c", "b", "d", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, optionIDs(SortAndFilterOptions(options(), tt.filter)))
		})
	}
}

func TestSortAndFilterOptions_Ties(t *testing.T) {
	list := []domain.Option{
		{Base: domain.Base{ID: "z2"}, Title: "Walnut"},
		{Base: domain.Base{ID: "y", Sort: f(1)}, Title: "Teak", Price: f(100)},
		{Base: domain.Base{ID: "z1"}, Title: " walnut"},
		{Base: domain.Base{ID: "x", Sort: f(1)}, Title: "Ash", Price: f(100)},
		{Base: domain.Base{ID: "w"}, Title: "Birch"},
	}
	assert.Equal(t, []string{"x", "y", "w", "z1", "z2"}, optionIDs(SortAndFilterOptions(list, OptionFilter{})))
	assert.Equal(t, []string{"x", "y", "w", "z1", "z2"},
		optionIDs(SortAndFilterOptions(list, OptionFilter{Sort: SortPrice, Desc: true})))
}

func TestCompileQuery(t *testing.T) {
	assert.Nil(t, CompileQuery("   "))
	assert.Equal(t, []string{"green", "sofa"}, CompileQuery("Green, the SOFA green").Terms())
	// only stopwords: keep them rather than match everything
	assert.Equal(t, []string{"the"}, CompileQuery("the").Terms())

	q := CompileQuery("linen 84")
	o := domain.Option{Title: "Sofa", Tags: []string{"linen"}, Specs: domain.Specs{{Key: "width", Value: "84 in"}}}
	assert.True(t, q.Match(&o))
	o.Tags = nil
	assert.False(t, q.Match(&o))
}

func TestParseOptionSort(t *testing.T) {
	s, err := ParseOptionSort("")
	require.NoError(t, err)
	assert.Equal(t, SortManual, s)

	s, err = ParseOptionSort(" Price ")
	require.NoError(t, err)
	assert.Equal(t, SortPrice, s)

	_, err = ParseOptionSort("cheapest")
	assert.Error(t, err)
}
