package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/schedule"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/storage"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

// Assign places an agent into the break slot identified by the request
// coordinates, for today's date. Re-assigning an agent to the slot it is
// already in is a no-op. Assigning to a different time slot of the same
// shift and break type moves the agent: it is removed from the other slot in
// the same commit, so at most one slot per (agent, shift, break type) ever
// lists the agent.
func (e *Engine) Assign(ctx context.Context, req types.AssignRequest) error {
	agent, err := e.getAgent(ctx, req.AgentID)
	if err != nil {
		return err
	}

	if agent.FindAssignment(req.ShiftID, req.TimeSlotID, req.BreakTypeIndex) >= 0 {
		e.logger.Debug().
			Str("agent_id", req.AgentID).
			Str("shift_id", req.ShiftID).
			Int("break_type", req.BreakTypeIndex).
			Msg("agent already assigned to this break, no-op")
		return nil
	}

	date := e.Today()
	target, err := e.store.FindSlot(ctx, date, req.ShiftID, req.TimeSlotID, req.BreakTypeIndex)
	if errors.Is(err, storage.ErrNotFound) {
		target, err = e.newSlot(req, date)
		if err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("failed to resolve slot: %w", err)
	}

	if len(target.AssignedAgentIDs) >= target.MaxAgents && !target.HasAgent(agent.ID) {
		return fmt.Errorf("%w: slot %s has %d of %d agents", ErrSlotFull, target.ID, len(target.AssignedAgentIDs), target.MaxAgents)
	}

	tx := storage.NewTx()

	// Move semantics: pull the agent out of any other slot with the same
	// shift and break type before adding it to the target.
	slots, err := e.store.ListSlots(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to list slots for %s: %w", date, err)
	}
	for _, slot := range slots {
		if slot.ID == target.ID || slot.ShiftID != req.ShiftID || slot.BreakTypeIndex != req.BreakTypeIndex {
			continue
		}
		if !slot.RemoveAgent(agent.ID) {
			continue
		}
		if len(slot.AssignedAgentIDs) == 0 {
			slot.Status = types.StatusAvailable
			slot.ActualStartTime = nil
			slot.ActualEndTime = nil
		}
		tx.PutSlot(slot)
	}

	if !target.HasAgent(agent.ID) {
		target.AssignedAgentIDs = append(target.AssignedAgentIDs, agent.ID)
	}
	target.Status = types.StatusScheduled
	tx.PutSlot(target)

	// Replace any previous assignment record for the same shift and break
	// type, then append the new one.
	kept := agent.AssignedBreaks[:0:0]
	for _, b := range agent.AssignedBreaks {
		if b.ShiftID == req.ShiftID && b.BreakTypeIndex == req.BreakTypeIndex {
			continue
		}
		kept = append(kept, b)
	}
	agent.AssignedBreaks = append(kept, types.AssignedBreak{
		ShiftID:        req.ShiftID,
		TimeSlotID:     req.TimeSlotID,
		BreakTypeIndex: req.BreakTypeIndex,
		BreakSlotID:    target.ID,
		Status:         types.StatusScheduled,
	})
	if agent.CurrentShiftID == "" {
		agent.CurrentShiftID = req.ShiftID
	}
	tx.PutAgent(agent)

	if err := e.store.Commit(ctx, tx); err != nil {
		return fmt.Errorf("failed to commit assignment: %w", err)
	}

	e.logger.Info().
		Str("agent_id", agent.ID).
		Str("slot_id", target.ID).
		Str("shift_id", req.ShiftID).
		Int("break_type", req.BreakTypeIndex).
		Msg("agent assigned to break")
	e.notify()
	return nil
}

// newSlot lazily creates the slot for coordinates that have no record yet,
// with capacity and timing taken from the catalog.
func (e *Engine) newSlot(req types.AssignRequest, date string) (types.DailyBreakSlot, error) {
	slot, err := schedule.NewSlot(e.catalog, req.ShiftID, req.BreakTypeIndex, date)
	if err != nil {
		return types.DailyBreakSlot{}, fmt.Errorf("%w: %v", ErrSlotNotFound, err)
	}
	// Honor the requested scheduling window so the coordinates round-trip.
	// The window is part of the slot identity, so the id is rebuilt.
	slot.TimeSlotID = req.TimeSlotID
	slot.ID = types.SlotID(req.ShiftID, req.TimeSlotID, date, req.BreakTypeIndex)
	return slot, nil
}
