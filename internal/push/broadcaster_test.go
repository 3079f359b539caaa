package push

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/storage"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

type recordingSink struct {
	mu       sync.Mutex
	messages [][]byte
}

func (s *recordingSink) Broadcast(message []byte) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *recordingSink) last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	return s.messages[len(s.messages)-1]
}

func newTestBroadcaster(t *testing.T) (*Broadcaster, *storage.MemoryStore, *recordingSink) {
	t.Helper()

	store := storage.NewMemoryStore()
	sink := &recordingSink{}
	b := NewBroadcaster(store, sink, time.UTC, zerolog.Nop())
	b.now = func() time.Time { return time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC) }
	return b, store, sink
}

func TestSnapshotDateUsesConfiguredLocation(t *testing.T) {
	store := storage.NewMemoryStore()
	loc := time.FixedZone("UTC+14", 14*3600)
	b := NewBroadcaster(store, &recordingSink{}, loc, zerolog.Nop())

	data, err := b.SnapshotJSON(context.Background())
	require.NoError(t, err)

	var snap types.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, time.Now().In(loc).Format("2006-01-02"), snap.Date,
		"snapshot date must match the engine's calendar, not the host zone")
}

func TestSnapshotJSONEmptyState(t *testing.T) {
	b, _, _ := newTestBroadcaster(t)

	data, err := b.SnapshotJSON(context.Background())
	require.NoError(t, err)

	var snap types.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, "2024-01-10", snap.Date)
	assert.NotNil(t, snap.Agents)
	assert.NotNil(t, snap.Slots)
	assert.Nil(t, snap.LastEvent)
}

func TestSnapshotJSONCarriesState(t *testing.T) {
	b, store, _ := newTestBroadcaster(t)
	ctx := context.Background()

	tx := storage.NewTx().
		PutAgent(types.Agent{ID: "a1", Name: "Agent a1"}).
		PutSlot(types.DailyBreakSlot{ID: "s1_0700-1500_20240110_0", Date: "2024-01-10", Status: types.StatusScheduled}).
		PutLastEvent(types.LastBreakEvent{AgentName: "Agent a1", Action: "active"})
	require.NoError(t, store.Commit(ctx, tx))

	data, err := b.SnapshotJSON(ctx)
	require.NoError(t, err)

	var snap types.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Len(t, snap.Agents, 1)
	assert.Equal(t, "a1", snap.Agents[0].ID)
	require.Len(t, snap.Slots, 1)
	require.NotNil(t, snap.LastEvent)
	assert.Equal(t, "active", snap.LastEvent.Action)
}

func TestNotifyNeverBlocks(t *testing.T) {
	b, _, _ := newTestBroadcaster(t)

	// No running loop draining the channel; repeated calls must coalesce
	// instead of blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Notify()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked")
	}
}

func TestRunBroadcastsOnNotify(t *testing.T) {
	b, _, sink := newTestBroadcaster(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.Notify()

	require.Eventually(t, func() bool { return sink.count() >= 1 }, time.Second, 5*time.Millisecond)

	var snap types.Snapshot
	require.NoError(t, json.Unmarshal(sink.last(), &snap))
	assert.Equal(t, "snapshot", snap.Type)
}
