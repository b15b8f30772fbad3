package handler

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-go-api/internal/service"
)

// MonitorHandler streams exam lifecycle events to connected admin clients
// over a websocket.
type MonitorHandler struct {
	events service.ExamEventPublisher
	logger zerolog.Logger
}

// NewMonitorHandler constructs a monitor handler.
func NewMonitorHandler(events service.ExamEventPublisher, logger zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		events: events,
		logger: logger.With().Str("component", "monitor_handler").Logger(),
	}
}

// Register binds the monitor websocket under the provided router group.
func (h *MonitorHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *MonitorHandler) handleConnection(conn *websocket.Conn) {
	events, cancel := h.events.Subscribe()
	defer cancel()

	h.logger.Info().Msg("monitor websocket connected")
	defer h.logger.Info().Msg("monitor websocket disconnected")

	// The reader goroutine exists to observe the close handshake; inbound
	// payloads are ignored.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn().Err(err).Msg("failed to encode exam event")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
