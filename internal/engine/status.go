package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/storage"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

// completedBreaksPerShift is how many done breaks release the agent's shift binding
const completedBreaksPerShift = 3

// SetStatus advances an agent's assignment to active or done, mutating the
// agent's live break state and the slot's actual times in one atomic commit
// together with the banner event. Repeating the current status is a no-op;
// moving backward from done is rejected.
func (e *Engine) SetStatus(ctx context.Context, req types.StatusChangeRequest) error {
	if req.NewStatus != types.StatusActive && req.NewStatus != types.StatusDone {
		return fmt.Errorf("%w: target status must be active or done, got %q", ErrInvalidTransition, req.NewStatus)
	}

	agent, err := e.getAgent(ctx, req.AgentID)
	if err != nil {
		return err
	}

	idx := agent.FindAssignment(req.ShiftID, req.TimeSlotID, req.BreakTypeIndex)
	if idx < 0 {
		return fmt.Errorf("%w: agent %s has no break at (%s, %s, %d)",
			ErrAssignmentNotFound, req.AgentID, req.ShiftID, req.TimeSlotID, req.BreakTypeIndex)
	}

	record := &agent.AssignedBreaks[idx]
	if record.Status == req.NewStatus {
		return nil
	}
	if record.Status == types.StatusDone {
		return fmt.Errorf("%w: break is already done", ErrInvalidTransition)
	}

	date := e.Today()
	slot, err := e.store.GetSlot(ctx, date, record.BreakSlotID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, record.BreakSlotID)
	}
	if err != nil {
		return fmt.Errorf("failed to load slot %s: %w", record.BreakSlotID, err)
	}

	now := e.now()
	record.Status = req.NewStatus
	slot.Status = req.NewStatus

	switch req.NewStatus {
	case types.StatusActive:
		agent.IsOnBreak = true
		agent.CurrentBreakStartTime = &now
		agent.CurrentBreakID = slot.ID
		slot.ActualStartTime = &now
		slot.ActualEndTime = nil

	case types.StatusDone:
		agent.IsOnBreak = false
		// Fall back to now when no start was recorded (e.g. scheduled went
		// straight to done), so the elapsed computation stays well-defined.
		start := now
		if agent.CurrentBreakStartTime != nil {
			start = *agent.CurrentBreakStartTime
		}
		elapsed := int64(now.Sub(start) / time.Second)
		if elapsed < 0 {
			elapsed = 0
		}
		agent.TotalBreakDurationToday += elapsed
		agent.CurrentBreakStartTime = nil
		agent.CurrentBreakID = ""
		slot.ActualEndTime = &now

		// The shift binding auto-releases after the third completed break.
		if agent.CurrentShiftID != "" && agent.CompletedBreaksInShift(agent.CurrentShiftID) >= completedBreaksPerShift {
			e.logger.Info().
				Str("agent_id", agent.ID).
				Str("shift_id", agent.CurrentShiftID).
				Msg("agent completed all breaks, releasing shift binding")
			agent.CurrentShiftID = ""
		}
	}

	tx := storage.NewTx().
		PutAgent(agent).
		PutSlot(slot).
		PutLastEvent(types.LastBreakEvent{
			AgentName: agent.Name,
			Action:    string(req.NewStatus),
			Timestamp: now,
		})
	if err := e.store.Commit(ctx, tx); err != nil {
		return fmt.Errorf("failed to commit status change: %w", err)
	}

	e.logger.Info().
		Str("agent_id", agent.ID).
		Str("slot_id", slot.ID).
		Str("status", string(req.NewStatus)).
		Msg("break status updated")
	e.notify()
	return nil
}
