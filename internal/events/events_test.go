package events_test

import (
	"sync"
	"testing"

	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/events"
	"github.com/lherron/homeplan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_LogEntityAndRecent(t *testing.T) {
	database, _ := testutil.TempDB(t)
	w := events.NewWriter(database.DB)

	tx, err := database.Beginx()
	require.NoError(t, err)
	require.NoError(t, w.LogEntity(tx, domain.ActorHuman, domain.KindItem, "itm_1", "created", map[string]string{"name": "Sofa"}))
	require.NoError(t, tx.Commit())

	require.NoError(t, w.LogImport(nil, domain.ActorImport, "sess-1", map[string]int{"created": 3}))

	got, err := w.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "bundle.imported", got[0].EventType)
	require.NotNil(t, got[0].SessionID)
	assert.Equal(t, "sess-1", *got[0].SessionID)

	assert.Equal(t, "items.created", got[1].EventType)
	assert.Equal(t, "human", got[1].Actor)
	require.NotNil(t, got[1].Payload)
	assert.JSONEq(t, `{"name":"Sofa"}`, *got[1].Payload)
}

func TestWriter_RolledBackEventIsDiscarded(t *testing.T) {
	database, _ := testutil.TempDB(t)
	w := events.NewWriter(database.DB)

	tx, err := database.Beginx()
	require.NoError(t, err)
	require.NoError(t, w.LogEntity(tx, domain.ActorHuman, domain.KindRoom, "room_1", "deleted", nil))
	require.NoError(t, tx.Rollback())

	got, err := w.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriter_Since(t *testing.T) {
	database, _ := testutil.TempDB(t)
	w := events.NewWriter(database.DB)

	for _, id := range []string{"room_1", "room_2", "room_3"} {
		require.NoError(t, w.LogEntity(nil, domain.ActorHuman, domain.KindRoom, id, "created", nil))
	}
	all, err := w.Since(0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Less(t, all[0].ID, all[2].ID)

	rest, err := w.Since(all[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, all[1].ID, rest[0].ID)
}

func TestWriter_Before(t *testing.T) {
	database, _ := testutil.TempDB(t)
	w := events.NewWriter(database.DB)

	for _, id := range []string{"room_1", "room_2", "room_1", "room_3"} {
		require.NoError(t, w.LogEntity(nil, domain.ActorHuman, domain.KindRoom, id, "updated", nil))
	}

	page, err := w.Before(0, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Greater(t, page[0].ID, page[1].ID)
	assert.Equal(t, "room_3", *page[0].ResourceID)

	rest, err := w.Before(page[1].ID, "", 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Less(t, rest[0].ID, page[1].ID)

	room1, err := w.Before(0, "room_1", 10)
	require.NoError(t, err)
	require.Len(t, room1, 2)
	for _, e := range room1 {
		assert.Equal(t, "room_1", *e.ResourceID)
	}
}

func TestBus_SubscribeUnsubscribe(t *testing.T) {
	var bus events.Bus
	var got []events.Change

	unsub := bus.Subscribe(func(c events.Change) { got = append(got, c) })
	assert.Equal(t, 1, bus.Len())

	bus.Publish(events.Change{Kind: domain.KindItem, IDs: []string{"a"}, Op: "update"})
	unsub()
	unsub()
	bus.Publish(events.Change{Kind: domain.KindItem})

	require.Len(t, got, 1)
	assert.Equal(t, []string{"a"}, got[0].IDs)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_ChannelCoalescesAndCloses(t *testing.T) {
	var bus events.Bus
	ch, unsub := bus.SubscribeChan(1)

	bus.Publish(events.Change{Kind: domain.KindRoom})
	bus.Publish(events.Change{Kind: domain.KindItem})

	first := <-ch
	assert.Equal(t, domain.KindRoom, first.Kind)
	select {
	case c := <-ch:
		t.Fatalf("expected second change to be dropped, got %+v", c)
	default:
	}

	unsub()
	_, open := <-ch
	assert.False(t, open)

	// publishing after close must not panic
	bus.Publish(events.Change{})
}

func TestBus_ConcurrentPublish(t *testing.T) {
	var bus events.Bus
	var mu sync.Mutex
	count := 0
	unsub := bus.Subscribe(func(events.Change) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	defer unsub()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(events.Change{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, count)
}
