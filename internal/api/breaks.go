package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/engine"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/metrics"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

// BreaksHandler provides REST endpoints for break assignment and lifecycle
type BreaksHandler struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewBreaksHandler creates a new BreaksHandler
func NewBreaksHandler(eng *engine.Engine, logger zerolog.Logger) *BreaksHandler {
	return &BreaksHandler{
		engine: eng,
		logger: logger.With().Str("component", "breaks_api").Logger(),
	}
}

// Assign handles POST /api/breaks/assign
func (h *BreaksHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req types.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.AgentID == "" || req.ShiftID == "" || req.TimeSlotID == "" || req.BreakTypeIndex < 0 {
		http.Error(w, `{"error":"agentId, shiftId, timeSlotId and breakTypeIndex are required"}`, http.StatusBadRequest)
		return
	}

	if err := h.engine.Assign(r.Context(), req); err != nil {
		metrics.Get().RecordAssignmentRejected()
		h.logger.Warn().Err(err).
			Str("agent_id", req.AgentID).
			Str("shift_id", req.ShiftID).
			Msg("assignment rejected")
		writeEngineError(w, err)
		return
	}

	metrics.Get().RecordAssignment()
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "break assigned",
		"agentId": req.AgentID,
	})
}

// SetStatus handles POST /api/breaks/status
func (h *BreaksHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req types.StatusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.AgentID == "" || req.ShiftID == "" || req.TimeSlotID == "" || req.NewStatus == "" {
		http.Error(w, `{"error":"agentId, shiftId, timeSlotId and newStatus are required"}`, http.StatusBadRequest)
		return
	}

	if err := h.engine.SetStatus(r.Context(), req); err != nil {
		h.logger.Warn().Err(err).
			Str("agent_id", req.AgentID).
			Str("status", string(req.NewStatus)).
			Msg("status change rejected")
		writeEngineError(w, err)
		return
	}

	metrics.Get().RecordStatusChange()
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "break status updated",
		"agentId": req.AgentID,
		"status":  string(req.NewStatus),
	})
}
