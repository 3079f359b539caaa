package types

import (
	"fmt"
	"strings"
	"time"
)

// BreakStatus represents the lifecycle state of a break slot or assignment
type BreakStatus string

const (
	StatusAvailable BreakStatus = "available"
	StatusScheduled BreakStatus = "scheduled"
	StatusActive    BreakStatus = "active"
	StatusDone      BreakStatus = "done"
)

// Valid reports whether s is one of the defined lifecycle states
func (s BreakStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusScheduled, StatusActive, StatusDone:
		return true
	}
	return false
}

// AssignedBreak is one entry in an agent's ordered assignment list
type AssignedBreak struct {
	ShiftID        string      `json:"shiftId" dynamodbav:"ShiftID"`
	TimeSlotID     string      `json:"timeSlotId" dynamodbav:"TimeSlotID"`
	BreakTypeIndex int         `json:"breakTypeIndex" dynamodbav:"BreakTypeIndex"`
	BreakSlotID    string      `json:"breakSlotId" dynamodbav:"BreakSlotID"`
	Status         BreakStatus `json:"status" dynamodbav:"Status"`
}

// Matches reports whether the entry refers to the given coordinates
func (b AssignedBreak) Matches(shiftID, timeSlotID string, breakTypeIndex int) bool {
	return b.ShiftID == shiftID && b.TimeSlotID == timeSlotID && b.BreakTypeIndex == breakTypeIndex
}

// Agent is the persisted agent record, including live break state
type Agent struct {
	ID                      string          `json:"id" dynamodbav:"AgentID"`
	Name                    string          `json:"name" dynamodbav:"Name"`
	IsOnBreak               bool            `json:"isOnBreak" dynamodbav:"IsOnBreak"`
	CurrentBreakStartTime   *time.Time      `json:"currentBreakStartTime,omitempty" dynamodbav:"CurrentBreakStartTime,omitempty"`
	CurrentBreakID          string          `json:"currentBreakId,omitempty" dynamodbav:"CurrentBreakID,omitempty"`
	CurrentShiftID          string          `json:"currentShiftId,omitempty" dynamodbav:"CurrentShiftID,omitempty"`
	TotalBreakDurationToday int64           `json:"totalBreakDurationToday" dynamodbav:"TotalBreakDurationToday"` // seconds
	AssignedBreaks          []AssignedBreak `json:"assignedBreaks,omitempty" dynamodbav:"AssignedBreaks,omitempty"`
}

// FindAssignment returns the index of the assignment matching the coordinates, or -1
func (a *Agent) FindAssignment(shiftID, timeSlotID string, breakTypeIndex int) int {
	for i, b := range a.AssignedBreaks {
		if b.Matches(shiftID, timeSlotID, breakTypeIndex) {
			return i
		}
	}
	return -1
}

// CompletedBreaksInShift counts done assignments bound to the given shift
func (a *Agent) CompletedBreaksInShift(shiftID string) int {
	n := 0
	for _, b := range a.AssignedBreaks {
		if b.ShiftID == shiftID && b.Status == StatusDone {
			n++
		}
	}
	return n
}

// DailyBreakSlot is the date-bound realization of a (shift, time slot, break
// type) combination, holding live assignment state. Slots are stored as
// independently addressable records keyed by (Date, SlotID).
type DailyBreakSlot struct {
	ID                string      `json:"id" dynamodbav:"SlotID"`
	Date              string      `json:"date" dynamodbav:"Date"`
	ShiftID           string      `json:"shiftId" dynamodbav:"ShiftID"`
	TimeSlotID        string      `json:"timeSlotId" dynamodbav:"TimeSlotID"`
	BreakDefinitionID string      `json:"breakDefinitionId" dynamodbav:"BreakDefinitionID"`
	BreakTypeIndex    int         `json:"breakTypeIndex" dynamodbav:"BreakTypeIndex"`
	Name              string      `json:"name" dynamodbav:"Name"`
	StartTime         string      `json:"startTime" dynamodbav:"StartTime"` // scheduled, HH:MM
	EndTime           string      `json:"endTime" dynamodbav:"EndTime"`     // scheduled, HH:MM
	DurationMinutes   int         `json:"durationMinutes" dynamodbav:"DurationMinutes"`
	MaxAgents         int         `json:"maxAgents" dynamodbav:"MaxAgents"`
	AssignedAgentIDs  []string    `json:"assignedAgentIds" dynamodbav:"AssignedAgentIDs,omitempty"`
	Status            BreakStatus `json:"status" dynamodbav:"Status"`
	ActualStartTime   *time.Time  `json:"actualStartTime,omitempty" dynamodbav:"ActualStartTime,omitempty"`
	ActualEndTime     *time.Time  `json:"actualEndTime,omitempty" dynamodbav:"ActualEndTime,omitempty"`
}

// HasAgent reports whether the agent is in the slot's member set
func (s *DailyBreakSlot) HasAgent(agentID string) bool {
	for _, id := range s.AssignedAgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}

// RemoveAgent removes the agent from the member set and reports whether it was present
func (s *DailyBreakSlot) RemoveAgent(agentID string) bool {
	for i, id := range s.AssignedAgentIDs {
		if id == agentID {
			s.AssignedAgentIDs = append(s.AssignedAgentIDs[:i], s.AssignedAgentIDs[i+1:]...)
			return true
		}
	}
	return false
}

// SlotID builds the deterministic composite identity of a daily break slot.
// The time slot is part of the identity so distinct scheduling windows of the
// same shift never collide; repeated generation for the same coordinates
// yields the same id.
func SlotID(shiftID, timeSlotID, date string, breakTypeIndex int) string {
	return fmt.Sprintf("%s_%s_%s_%d", shiftID, timeSlotID, strings.ReplaceAll(date, "-", ""), breakTypeIndex)
}

// LastBreakEvent is the singleton banner record. Write-only broadcast, no
// history retained.
type LastBreakEvent struct {
	AgentName string    `json:"agentName" dynamodbav:"AgentName"`
	Action    string    `json:"action" dynamodbav:"Action"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"Timestamp"`
}

// ResetMarker guards idempotent execution of the daily reset
type ResetMarker struct {
	LastResetDate string `json:"lastResetDate" dynamodbav:"LastResetDate"`
}

// AssignRequest asks the coordinator to place an agent into a break slot
type AssignRequest struct {
	AgentID        string `json:"agentId"`
	ShiftID        string `json:"shiftId"`
	TimeSlotID     string `json:"timeSlotId"`
	BreakTypeIndex int    `json:"breakTypeIndex"`
}

// StatusChangeRequest advances an agent's assignment to active or done
type StatusChangeRequest struct {
	AgentID        string      `json:"agentId"`
	ShiftID        string      `json:"shiftId"`
	TimeSlotID     string      `json:"timeSlotId"`
	BreakTypeIndex int         `json:"breakTypeIndex"`
	NewStatus      BreakStatus `json:"newStatus"`
}

// Snapshot is the full current-value document pushed to subscribers on every
// commit. The UI derives all rendering from these, never from local echoes.
type Snapshot struct {
	Type      string           `json:"type"` // always "snapshot"
	Date      string           `json:"date"`
	Timestamp time.Time        `json:"timestamp"`
	Agents    []Agent          `json:"agents"`
	Slots     []DailyBreakSlot `json:"slots"`
	LastEvent *LastBreakEvent  `json:"lastEvent,omitempty"`
}
