package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/engine"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeEngineError maps the engine's error taxonomy to HTTP statuses:
// missing records are 404, capacity and lifecycle conflicts are 409,
// anything else is a 500.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrAgentNotFound),
		errors.Is(err, engine.ErrSlotNotFound),
		errors.Is(err, engine.ErrScheduleNotFound),
		errors.Is(err, engine.ErrAssignmentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrSlotFull),
		errors.Is(err, engine.ErrInvalidTransition):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
