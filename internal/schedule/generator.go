// Package schedule derives the concrete per-day break slot instances from the
// static catalog. Generation is pure: it never touches storage, and repeated
// runs for the same date produce identical slots.
package schedule

import (
	"fmt"
	"time"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/catalog"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

// DateFormat is the calendar-day key used throughout the system
const DateFormat = "2006-01-02"

// Generate produces one DailyBreakSlot per (shift x break definition) pair
// for the given date. Slots start out available with an empty member set.
func Generate(cat *catalog.Catalog, date string) ([]types.DailyBreakSlot, error) {
	if _, err := time.Parse(DateFormat, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	slots := make([]types.DailyBreakSlot, 0, len(cat.Shifts)*len(cat.BreakDefinitions))
	for _, shift := range cat.Shifts {
		for _, def := range cat.BreakDefinitions {
			slot, err := buildSlot(cat, shift, def, date)
			if err != nil {
				return nil, err
			}
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

// NewSlot builds the single slot for one (shift, break definition) pair. The
// coordinator uses it to create slots lazily on first assignment.
func NewSlot(cat *catalog.Catalog, shiftID string, breakTypeIndex int, date string) (types.DailyBreakSlot, error) {
	shift, ok := cat.ShiftByID(shiftID)
	if !ok {
		return types.DailyBreakSlot{}, fmt.Errorf("unknown shift %q", shiftID)
	}
	def, ok := cat.BreakDefinitionByIndex(breakTypeIndex)
	if !ok {
		return types.DailyBreakSlot{}, fmt.Errorf("unknown break type index %d", breakTypeIndex)
	}
	return buildSlot(cat, shift, def, date)
}

func buildSlot(cat *catalog.Catalog, shift catalog.Shift, def catalog.BreakDefinition, date string) (types.DailyBreakSlot, error) {
	start, err := scheduledStart(cat, shift, def)
	if err != nil {
		return types.DailyBreakSlot{}, err
	}

	return types.DailyBreakSlot{
		ID:                types.SlotID(shift.ID, shift.TimeSlotID(), date, def.BreakTypeIndex),
		Date:              date,
		ShiftID:           shift.ID,
		TimeSlotID:        shift.TimeSlotID(),
		BreakDefinitionID: def.ID,
		BreakTypeIndex:    def.BreakTypeIndex,
		Name:              fmt.Sprintf("%s - %s", shift.Name, def.Name),
		StartTime:         catalog.FormatTimeOfDay(start),
		EndTime:           catalog.FormatTimeOfDay(start + def.DurationMinutes),
		DurationMinutes:   def.DurationMinutes,
		MaxAgents:         def.MaxAgents,
		AssignedAgentIDs:  []string{},
		Status:            types.StatusAvailable,
	}, nil
}

// scheduledStart computes the break's start as minutes since midnight. A
// configured fixed time of day wins over the hours-from-shift-start offset;
// with no timing rule at all the break lands (breakTypeIndex+1) hours into
// the shift.
func scheduledStart(cat *catalog.Catalog, shift catalog.Shift, def catalog.BreakDefinition) (int, error) {
	shiftStart, err := catalog.ParseTimeOfDay(shift.StartTime)
	if err != nil {
		return 0, fmt.Errorf("shift %s: %w", shift.ID, err)
	}

	timing, ok := cat.TimingFor(def.ID)
	if ok && timing.SpecificTime != "" {
		return catalog.ParseTimeOfDay(timing.SpecificTime)
	}
	if ok && timing.HoursFromShiftStart > 0 {
		return shiftStart + int(timing.HoursFromShiftStart*60), nil
	}
	return shiftStart + (def.BreakTypeIndex+1)*60, nil
}
