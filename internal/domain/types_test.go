package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecs_PreservesOrder(t *testing.T) {
	raw := `{"zeta":1,"alpha":"oak","mid":true,"nested":{"a":1},"none":null}`

	var s Specs
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Equal(t, []string{"zeta", "alpha", "mid", "nested", "none"}, s.Keys())

	v, ok := s.Get("nested")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, v)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"oak","mid":true,"nested":"{\"a\":1}","none":null}`, string(out))
}

func TestSpecs_SetAndDelete(t *testing.T) {
	var s Specs
	s.Set("width_in", 30.0)
	s.Set("finish", "walnut")
	s.Set("width_in", 32.0)
	s.Delete("finish")

	assert.Equal(t, []string{"width_in"}, s.Keys())
	v, _ := s.Get("width_in")
	assert.Equal(t, 32.0, v)
}

func TestSpecs_RejectsNonObject(t *testing.T) {
	var s Specs
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &s))
}

func TestUnitRoundTrip(t *testing.T) {
	values := []float64{0, 1, 2.54, 17.25, 96, 1e-9, 12345.678, -3.5}
	for _, v := range values {
		got := CmToInches(InchesToCm(v))
		if math.Abs(got-v) > 1e-6 {
			t.Errorf("round trip of %v gave %v", v, got)
		}
	}
}

func TestToInches(t *testing.T) {
	assert.InDelta(t, 10.0, ToInches(25.4, UnitCm), 1e-9)
	assert.InDelta(t, 25.4, ToInches(25.4, UnitInches), 1e-9)
	assert.Equal(t, "25.40 cm", FormatLength(ptr(10.0), UnitCm))
	assert.Equal(t, "", FormatLength(nil, UnitCm))
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		in      string
		want    Unit
		wantErr bool
	}{
		{"", UnitInches, false},
		{"inches", UnitInches, false},
		{"CM", UnitCm, false},
		{"furlong", "", true},
	}
	for _, tt := range tests {
		got, err := ParseUnit(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSnapshot_SelectedOptions(t *testing.T) {
	snap := &Snapshot{
		Options: []Option{
			{Base: Base{ID: "o1"}, ItemID: "i1", Selected: true},
			{Base: Base{ID: "o2"}, ItemID: "i1"},
			{Base: Base{ID: "o3", SyncState: SyncDeleted}, ItemID: "i2", Selected: true},
		},
	}
	sel := snap.SelectedOptions()
	require.Len(t, sel, 1)
	assert.Equal(t, "o1", sel["i1"].ID)
}

func TestOption_EffectiveDiscount(t *testing.T) {
	o := Option{Discount: ptr(5.0)}
	dt, v := o.EffectiveDiscount()
	assert.Equal(t, DiscountAmount, dt)
	assert.Equal(t, 5.0, *v)

	o.DiscountType = DiscountPercent
	o.DiscountValue = ptr(10.0)
	dt, v = o.EffectiveDiscount()
	assert.Equal(t, DiscountPercent, dt)
	assert.Equal(t, 10.0, *v)
}

func ptr[T any](v T) *T { return &v }

func TestSnapshot_EntitiesPointIntoSnapshot(t *testing.T) {
	snap := &Snapshot{
		Rooms: []Room{{Base: Base{ID: "r1"}}, {Base: Base{ID: "r2"}}},
		Items: []Item{{Base: Base{ID: "i1"}}},
	}
	rooms := snap.Entities(KindRoom)
	require.Len(t, rooms, 2)
	rooms[1].Meta().SyncState = SyncDeleted
	assert.True(t, snap.Rooms[1].IsDeleted())

	assert.Len(t, snap.Entities(KindItem), 1)
	assert.Empty(t, snap.Entities(KindStore))
}
