package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/engine"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/metrics"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/schedule"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/storage"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

// ScheduleHandler serves the daily schedule and the agent roster
type ScheduleHandler struct {
	engine *engine.Engine
	store  storage.Store
	logger zerolog.Logger
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(eng *engine.Engine, store storage.Store, logger zerolog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		engine: eng,
		store:  store,
		logger: logger.With().Str("component", "schedule_api").Logger(),
	}
}

// GetSchedule handles GET /api/schedule/{date}. Today's slots are generated
// on first access; any other day is served read-only, so stray dates never
// persist slot sets the daily reset would not sweep.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(schedule.DateFormat, date); err != nil {
		http.Error(w, `{"error":"date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	var slots []types.DailyBreakSlot
	var err error
	if date == h.engine.Today() {
		slots, err = h.engine.EnsureSchedule(r.Context(), date)
	} else {
		slots, err = h.store.ListSlots(r.Context(), date)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("date", date).Msg("failed to load schedule")
		writeEngineError(w, err)
		return
	}
	if slots == nil {
		slots = []types.DailyBreakSlot{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":  date,
		"slots": slots,
	})
}

// ListAgents handles GET /api/agents
func (h *ScheduleHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.store.ListAgents(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list agents")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if agents == nil {
		agents = []types.Agent{}
	}
	metrics.Get().UpdateAgentStats(agents)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": agents,
	})
}
