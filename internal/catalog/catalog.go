package catalog

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BreakDefinition describes one break type: duration, capacity and display order
type BreakDefinition struct {
	ID              string `yaml:"id" json:"id"`
	Name            string `yaml:"name" json:"name"`
	DurationMinutes int    `yaml:"durationMinutes" json:"durationMinutes"`
	MaxAgents       int    `yaml:"maxAgents" json:"maxAgents"`
	BreakTypeIndex  int    `yaml:"breakTypeIndex" json:"breakTypeIndex"`
	Color           string `yaml:"color,omitempty" json:"color,omitempty"`
}

// Shift is a named work period with fixed start/end times of day
type Shift struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	StartTime string `yaml:"startTime" json:"startTime"` // HH:MM
	EndTime   string `yaml:"endTime" json:"endTime"`     // HH:MM
}

// TimeSlotID returns the shift's scheduling window label, e.g. "0700-1500"
func (s Shift) TimeSlotID() string {
	return compact(s.StartTime) + "-" + compact(s.EndTime)
}

func compact(hhmm string) string {
	out := make([]byte, 0, 4)
	for i := 0; i < len(hhmm); i++ {
		if hhmm[i] != ':' {
			out = append(out, hhmm[i])
		}
	}
	return string(out)
}

// BreakTiming places a break type inside a shift. A fixed time of day takes
// precedence over the hours-from-shift-start offset; with neither set the
// generator falls back to (breakTypeIndex+1) hours into the shift.
type BreakTiming struct {
	BreakDefinitionID   string  `yaml:"breakDefinitionId" json:"breakDefinitionId"`
	HoursFromShiftStart float64 `yaml:"hoursFromShiftStart,omitempty" json:"hoursFromShiftStart,omitempty"`
	SpecificTime        string  `yaml:"specificTime,omitempty" json:"specificTime,omitempty"` // HH:MM
}

// Catalog is the static shift/break configuration. Pure data, immutable at runtime.
type Catalog struct {
	Shifts           []Shift           `yaml:"shifts" json:"shifts"`
	BreakDefinitions []BreakDefinition `yaml:"breakDefinitions" json:"breakDefinitions"`
	BreakTimings     []BreakTiming     `yaml:"breakTimings,omitempty" json:"breakTimings,omitempty"`
}

// Default returns the built-in catalog: eight hourly-staggered shifts and
// three 15-minute break types with capacity 10.
func Default() *Catalog {
	return &Catalog{
		Shifts: []Shift{
			{ID: "s1", Name: "07:00 - 15:00", StartTime: "07:00", EndTime: "15:00"},
			{ID: "s2", Name: "08:00 - 16:00", StartTime: "08:00", EndTime: "16:00"},
			{ID: "s3", Name: "09:00 - 17:00", StartTime: "09:00", EndTime: "17:00"},
			{ID: "s4", Name: "10:00 - 18:00", StartTime: "10:00", EndTime: "18:00"},
			{ID: "s5", Name: "12:00 - 20:00", StartTime: "12:00", EndTime: "20:00"},
			{ID: "s6", Name: "14:00 - 22:00", StartTime: "14:00", EndTime: "22:00"},
			{ID: "s7", Name: "16:00 - 00:00", StartTime: "16:00", EndTime: "00:00"},
			{ID: "s8", Name: "17:00 - 01:00", StartTime: "17:00", EndTime: "01:00"},
		},
		BreakDefinitions: []BreakDefinition{
			{ID: "break-1", Name: "First break", DurationMinutes: 15, MaxAgents: 10, BreakTypeIndex: 0, Color: "#4CAF50"},
			{ID: "break-2", Name: "Second break", DurationMinutes: 15, MaxAgents: 10, BreakTypeIndex: 1, Color: "#2196F3"},
			{ID: "break-3", Name: "Third break", DurationMinutes: 15, MaxAgents: 10, BreakTypeIndex: 2, Color: "#FF9800"},
		},
		BreakTimings: []BreakTiming{
			{BreakDefinitionID: "break-1", HoursFromShiftStart: 2},
			{BreakDefinitionID: "break-2", HoursFromShiftStart: 5},
			{BreakDefinitionID: "break-3", HoursFromShiftStart: 7},
		},
	}
}

// Load reads a catalog from a YAML file and validates it
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &cat, nil
}

// Validate checks internal consistency of the catalog
func (c *Catalog) Validate() error {
	if len(c.Shifts) == 0 {
		return fmt.Errorf("catalog has no shifts")
	}
	if len(c.BreakDefinitions) == 0 {
		return fmt.Errorf("catalog has no break definitions")
	}

	shiftIDs := make(map[string]bool, len(c.Shifts))
	for _, s := range c.Shifts {
		if s.ID == "" {
			return fmt.Errorf("shift with empty id")
		}
		if shiftIDs[s.ID] {
			return fmt.Errorf("duplicate shift id %q", s.ID)
		}
		shiftIDs[s.ID] = true
		if _, err := ParseTimeOfDay(s.StartTime); err != nil {
			return fmt.Errorf("shift %s: invalid startTime: %w", s.ID, err)
		}
		if _, err := ParseTimeOfDay(s.EndTime); err != nil {
			return fmt.Errorf("shift %s: invalid endTime: %w", s.ID, err)
		}
	}

	defIDs := make(map[string]bool, len(c.BreakDefinitions))
	for i, d := range c.BreakDefinitions {
		if d.ID == "" {
			return fmt.Errorf("break definition with empty id")
		}
		if defIDs[d.ID] {
			return fmt.Errorf("duplicate break definition id %q", d.ID)
		}
		defIDs[d.ID] = true
		if d.DurationMinutes <= 0 {
			return fmt.Errorf("break definition %s: duration must be positive", d.ID)
		}
		if d.MaxAgents <= 0 {
			return fmt.Errorf("break definition %s: maxAgents must be positive", d.ID)
		}
		if d.BreakTypeIndex != i {
			return fmt.Errorf("break definition %s: breakTypeIndex %d does not match position %d", d.ID, d.BreakTypeIndex, i)
		}
	}

	for _, t := range c.BreakTimings {
		if !defIDs[t.BreakDefinitionID] {
			return fmt.Errorf("break timing refers to unknown definition %q", t.BreakDefinitionID)
		}
		if t.SpecificTime != "" {
			if _, err := ParseTimeOfDay(t.SpecificTime); err != nil {
				return fmt.Errorf("break timing for %s: invalid specificTime: %w", t.BreakDefinitionID, err)
			}
		}
	}
	return nil
}

// ShiftByID looks up a shift, returning false if it is not in the catalog
func (c *Catalog) ShiftByID(id string) (Shift, bool) {
	for _, s := range c.Shifts {
		if s.ID == id {
			return s, true
		}
	}
	return Shift{}, false
}

// BreakDefinitionByIndex looks up a break type by its display order index
func (c *Catalog) BreakDefinitionByIndex(index int) (BreakDefinition, bool) {
	for _, d := range c.BreakDefinitions {
		if d.BreakTypeIndex == index {
			return d, true
		}
	}
	return BreakDefinition{}, false
}

// BreakDefinitionByID looks up a break type by id
func (c *Catalog) BreakDefinitionByID(id string) (BreakDefinition, bool) {
	for _, d := range c.BreakDefinitions {
		if d.ID == id {
			return d, true
		}
	}
	return BreakDefinition{}, false
}

// TimingFor returns the timing rule for a break definition, if configured
func (c *Catalog) TimingFor(breakDefinitionID string) (BreakTiming, bool) {
	for _, t := range c.BreakTimings {
		if t.BreakDefinitionID == breakDefinitionID {
			return t, true
		}
	}
	return BreakTiming{}, false
}

// ParseTimeOfDay parses an HH:MM string into minutes since midnight
func ParseTimeOfDay(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatTimeOfDay renders minutes since midnight as HH:MM, wrapping at 24h
func FormatTimeOfDay(minutes int) string {
	minutes %= 24 * 60
	if minutes < 0 {
		minutes += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
