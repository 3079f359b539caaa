package storage

import (
	"context"
	"sync"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

// MemoryStore keeps all records in process memory behind one mutex. Commit
// applies the whole transaction under the lock, which gives the same
// all-or-nothing visibility the DynamoDB store gets from TransactWriteItems.
// It is the default mode and the test double.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]types.Agent
	slots  map[string]map[string]types.DailyBreakSlot // date -> slotID -> slot
	event  *types.LastBreakEvent
	marker *types.ResetMarker
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents: make(map[string]types.Agent),
		slots:  make(map[string]map[string]types.DailyBreakSlot),
	}
}

func (s *MemoryStore) GetAgent(_ context.Context, agentID string) (types.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[agentID]
	if !ok {
		return types.Agent{}, ErrNotFound
	}
	return copyAgent(agent), nil
}

func (s *MemoryStore) ListAgents(_ context.Context) ([]types.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]types.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, copyAgent(a))
	}
	return agents, nil
}

func (s *MemoryStore) GetSlot(_ context.Context, date, slotID string) (types.DailyBreakSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[date][slotID]
	if !ok {
		return types.DailyBreakSlot{}, ErrNotFound
	}
	return copySlot(slot), nil
}

func (s *MemoryStore) FindSlot(_ context.Context, date, shiftID, timeSlotID string, breakTypeIndex int) (types.DailyBreakSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, slot := range s.slots[date] {
		if slot.ShiftID == shiftID && slot.TimeSlotID == timeSlotID && slot.BreakTypeIndex == breakTypeIndex {
			return copySlot(slot), nil
		}
	}
	return types.DailyBreakSlot{}, ErrNotFound
}

func (s *MemoryStore) ListSlots(_ context.Context, date string) ([]types.DailyBreakSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := make([]types.DailyBreakSlot, 0, len(s.slots[date]))
	for _, slot := range s.slots[date] {
		slots = append(slots, copySlot(slot))
	}
	return slots, nil
}

func (s *MemoryStore) GetLastEvent(_ context.Context) (types.LastBreakEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.event == nil {
		return types.LastBreakEvent{}, ErrNotFound
	}
	return *s.event, nil
}

func (s *MemoryStore) GetResetMarker(_ context.Context) (types.ResetMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.marker == nil {
		return types.ResetMarker{}, ErrNotFound
	}
	return *s.marker, nil
}

func (s *MemoryStore) Commit(_ context.Context, tx *Tx) error {
	if tx == nil || tx.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range tx.ops {
		switch o.kind {
		case opPutAgent:
			s.agents[o.agent.ID] = copyAgent(o.agent)
		case opPutSlot:
			day, ok := s.slots[o.slot.Date]
			if !ok {
				day = make(map[string]types.DailyBreakSlot)
				s.slots[o.slot.Date] = day
			}
			day[o.slot.ID] = copySlot(o.slot)
		case opDeleteSlot:
			delete(s.slots[o.date], o.slotID)
		case opPutLastEvent:
			event := o.event
			s.event = &event
		case opPutResetMarker:
			marker := o.marker
			s.marker = &marker
		}
	}
	return nil
}

// copyAgent detaches slices and pointers so callers cannot mutate stored state
func copyAgent(a types.Agent) types.Agent {
	out := a
	if a.AssignedBreaks != nil {
		out.AssignedBreaks = append([]types.AssignedBreak(nil), a.AssignedBreaks...)
	}
	if a.CurrentBreakStartTime != nil {
		t := *a.CurrentBreakStartTime
		out.CurrentBreakStartTime = &t
	}
	return out
}

func copySlot(s types.DailyBreakSlot) types.DailyBreakSlot {
	out := s
	if s.AssignedAgentIDs != nil {
		out.AssignedAgentIDs = append([]string(nil), s.AssignedAgentIDs...)
	}
	if s.ActualStartTime != nil {
		t := *s.ActualStartTime
		out.ActualStartTime = &t
	}
	if s.ActualEndTime != nil {
		t := *s.ActualEndTime
		out.ActualEndTime = &t
	}
	return out
}
