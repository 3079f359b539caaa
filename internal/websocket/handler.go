package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now
		// TODO: Implement proper origin checking based on config
		return true
	},
}

// SnapshotSource supplies the current full-state document for newly
// connected clients.
type SnapshotSource interface {
	SnapshotJSON(ctx context.Context) ([]byte, error)
}

// Handler handles WebSocket upgrade requests
type Handler struct {
	hub       *Hub
	config    *config.Config
	snapshots SnapshotSource
	logger    zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, cfg *config.Config, snapshots SnapshotSource, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:       hub,
		config:    cfg,
		snapshots: snapshots,
		logger:    logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	// Create new client
	client := NewClient(h.hub, conn, h.config, h.logger)

	// Register client with hub
	h.hub.register <- client

	// Queue the current snapshot so the client renders immediately instead
	// of waiting for the next committed mutation.
	if h.snapshots != nil {
		if data, err := h.snapshots.SnapshotJSON(r.Context()); err != nil {
			h.logger.Error().Err(err).Msg("failed to build initial snapshot")
		} else {
			client.send <- data
		}
	}

	// Start client pumps
	client.Start()
}
