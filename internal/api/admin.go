package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/auth"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/engine"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/metrics"
)

// AdminHandler handles operator actions
type AdminHandler struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(eng *engine.Engine, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		engine: eng,
		logger: logger.With().Str("component", "admin_api").Logger(),
	}
}

// RequireAdmin middleware allows only the admin role through
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, "admin") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Reset handles POST /api/reset, forcing a full state reset for the current
// day regardless of the rollover marker.
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	today := h.engine.Today()
	if err := h.engine.Reset(r.Context(), today); err != nil {
		h.logger.Error().Err(err).Str("date", today).Msg("manual reset failed")
		writeEngineError(w, err)
		return
	}

	metrics.Get().RecordReset()
	h.logger.Info().Str("date", today).Msg("manual reset performed via API")

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "daily state reset",
		"date":    today,
	})
}
