// Package engine implements the break assignment and lifecycle core: the
// assignment coordinator, the status transition manager and the daily reset.
// The engine holds no locks of its own; every multi-record mutation is staged
// into a single storage transaction and committed atomically.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/catalog"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/metrics"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/schedule"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/storage"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

// Notifier is told after every committed mutation so subscribers receive a
// fresh snapshot. A nil notifier is allowed.
type Notifier interface {
	Notify()
}

// Engine coordinates assignments, status transitions and the daily reset
type Engine struct {
	store    storage.Store
	catalog  *catalog.Catalog
	notifier Notifier
	logger   zerolog.Logger

	// now is swapped out in tests
	now func() time.Time
}

// New creates an engine on top of the given store and catalog. Every
// calendar-day key the engine produces derives from clocks read in loc, so
// assignments, resets and snapshots agree on what day it is regardless of
// the host zone.
func New(store storage.Store, cat *catalog.Catalog, notifier Notifier, loc *time.Location, logger zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		catalog:  cat,
		notifier: notifier,
		logger:   logger.With().Str("component", "engine").Logger(),
		now:      func() time.Time { return time.Now().In(loc) },
	}
}

// Today returns the engine's current calendar-day key
func (e *Engine) Today() string {
	return e.now().Format(schedule.DateFormat)
}

func (e *Engine) notify() {
	if e.notifier != nil {
		e.notifier.Notify()
	}
}

// EnsureSchedule returns the slots for the given date, generating and
// persisting the full day in one commit if none exist yet.
func (e *Engine) EnsureSchedule(ctx context.Context, date string) ([]types.DailyBreakSlot, error) {
	slots, err := e.store.ListSlots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots for %s: %w", date, err)
	}
	if len(slots) > 0 {
		return slots, nil
	}

	generated, err := schedule.Generate(e.catalog, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScheduleNotFound, err)
	}

	tx := storage.NewTx()
	for _, slot := range generated {
		tx.PutSlot(slot)
	}
	if err := e.store.Commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to persist schedule for %s: %w", date, err)
	}

	metrics.Get().RecordScheduleGenerated()
	e.logger.Info().Str("date", date).Int("slots", len(generated)).Msg("schedule created")
	e.notify()
	return generated, nil
}

func (e *Engine) getAgent(ctx context.Context, agentID string) (types.Agent, error) {
	agent, err := e.store.GetAgent(ctx, agentID)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Agent{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if err != nil {
		return types.Agent{}, fmt.Errorf("failed to load agent %s: %w", agentID, err)
	}
	return agent, nil
}
