package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/schedule"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/storage"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

// resetAgentName is the author of the banner event written by a reset
const resetAgentName = "system"

// CheckAndReset runs the daily reset once per calendar day. The reset marker
// makes concurrent checks idempotent: if the marker already names today the
// call does nothing. Returns whether a reset was performed.
func (e *Engine) CheckAndReset(ctx context.Context, today string) (bool, error) {
	marker, err := e.store.GetResetMarker(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("failed to read reset marker: %w", err)
	}
	if err == nil && marker.LastResetDate == today {
		return false, nil
	}

	if err := e.Reset(ctx, today); err != nil {
		return false, err
	}
	return true, nil
}

// Reset atomically clears every agent's live break state and assignments,
// deletes stale slot records, writes the reset banner event and updates the
// marker, all in one commit. The marker is staged last, so a partial
// failure leaves it unset and the next check retries the whole reset. This
// is the only operation that deletes slot records.
func (e *Engine) Reset(ctx context.Context, today string) error {
	tx := storage.NewTx()

	agents, err := e.store.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}
	for _, agent := range agents {
		agent.IsOnBreak = false
		agent.CurrentBreakStartTime = nil
		agent.CurrentBreakID = ""
		agent.CurrentShiftID = ""
		agent.AssignedBreaks = nil
		agent.TotalBreakDurationToday = 0
		tx.PutAgent(agent)
	}

	// Slot records from the previous day must not survive the rollover. The
	// sweep covers today (manual mid-day reset), the preceding calendar day
	// (first rollover, before any marker exists) and the marker date (missed
	// rollovers).
	dates := []string{today}
	if prev, err := previousDay(today); err == nil {
		dates = append(dates, prev)
	}
	marker, err := e.store.GetResetMarker(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read reset marker: %w", err)
	}
	if err == nil && marker.LastResetDate != "" {
		dates = appendUnique(dates, marker.LastResetDate)
	}

	deleted := 0
	for _, date := range dates {
		slots, err := e.store.ListSlots(ctx, date)
		if err != nil {
			return fmt.Errorf("failed to list slots for %s: %w", date, err)
		}
		for _, slot := range slots {
			tx.DeleteSlot(date, slot.ID)
			deleted++
		}
	}

	tx.PutLastEvent(types.LastBreakEvent{
		AgentName: resetAgentName,
		Action:    "reset",
		Timestamp: e.now(),
	})
	tx.PutResetMarker(types.ResetMarker{LastResetDate: today})

	if err := e.store.Commit(ctx, tx); err != nil {
		return fmt.Errorf("failed to commit daily reset: %w", err)
	}

	e.logger.Info().
		Str("date", today).
		Int("agents_cleared", len(agents)).
		Int("slots_deleted", deleted).
		Msg("daily reset performed")
	e.notify()
	return nil
}

func previousDay(date string) (string, error) {
	t, err := time.Parse(schedule.DateFormat, date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -1).Format(schedule.DateFormat), nil
}

func appendUnique(dates []string, date string) []string {
	for _, d := range dates {
		if d == date {
			return dates
		}
	}
	return append(dates, date)
}
