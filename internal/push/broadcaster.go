// Package push rebuilds the full-state snapshot after every committed
// mutation and fans it out over the websocket hub.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/metrics"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/schedule"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/storage"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

// Sink receives marshaled snapshot documents
type Sink interface {
	Broadcast(message []byte)
}

// Broadcaster turns engine commit notifications into snapshot broadcasts.
// Notifications are coalesced: bursts of commits produce one rebuild with
// the latest state, never a queue of stale snapshots.
type Broadcaster struct {
	store  storage.Store
	sink   Sink
	logger zerolog.Logger
	notify chan struct{}

	now func() time.Time
}

// NewBroadcaster creates a broadcaster reading from the store and writing to
// the sink. Snapshot dates are computed in loc, the same location the engine
// keys its slot records by.
func NewBroadcaster(store storage.Store, sink Sink, loc *time.Location, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		store:  store,
		sink:   sink,
		logger: logger.With().Str("component", "push").Logger(),
		notify: make(chan struct{}, 1),
		now:    func() time.Time { return time.Now().In(loc) },
	}
}

// Notify wakes the broadcast loop. Safe to call from any goroutine; never blocks.
func (b *Broadcaster) Notify() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Run drives the broadcast loop until the context is canceled
func (b *Broadcaster) Run(ctx context.Context) {
	m := metrics.Get()
	b.logger.Info().Msg("snapshot broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("snapshot broadcaster stopped")
			return

		case <-b.notify:
			start := time.Now()
			data, err := b.SnapshotJSON(ctx)
			if err != nil {
				m.RecordSnapshotError()
				b.logger.Error().Err(err).Msg("failed to build snapshot")
				continue
			}

			b.sink.Broadcast(data)
			m.RecordSnapshotBroadcast(time.Since(start))

			b.logger.Debug().
				Int("bytes", len(data)).
				Msg("snapshot broadcasted")
		}
	}
}

// SnapshotJSON builds and marshals the current full-state document
func (b *Broadcaster) SnapshotJSON(ctx context.Context) ([]byte, error) {
	snap, err := b.build(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

func (b *Broadcaster) build(ctx context.Context) (types.Snapshot, error) {
	date := b.now().Format(schedule.DateFormat)

	agents, err := b.store.ListAgents(ctx)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to list agents: %w", err)
	}
	if agents == nil {
		agents = []types.Agent{}
	}
	metrics.Get().UpdateAgentStats(agents)

	slots, err := b.store.ListSlots(ctx, date)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to list slots: %w", err)
	}
	if slots == nil {
		slots = []types.DailyBreakSlot{}
	}

	snap := types.Snapshot{
		Type:      "snapshot",
		Date:      date,
		Timestamp: b.now(),
		Agents:    agents,
		Slots:     slots,
	}

	event, err := b.store.GetLastEvent(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return types.Snapshot{}, fmt.Errorf("failed to load last event: %w", err)
	}
	if err == nil {
		snap.LastEvent = &event
	}

	return snap, nil
}
