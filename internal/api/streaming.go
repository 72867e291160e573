package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/glinrdock-paas/supervisor/internal/registry"
)

// upgrader mirrors the platform's own permissive CheckOrigin; the
// surrounding web layer is responsible for access control.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamLogs fans out an app's live log lines over a WebSocket connection.
func (h *Handlers) StreamLogs(c *gin.Context) {
	name := c.Param("app")

	lines, unsubscribe, err := h.pipeline.SubscribeLogs(name, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade log stream to websocket")
		return
	}
	defer conn.Close()

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
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := conn.WriteJSON(line); err != nil {
				log.Debug().Err(err).Str("app", name).Msg("log stream write failed")
				return
			}
		}
	}
}

// statusEvent is one status transition pushed to event-stream subscribers.
type statusEvent struct {
	App       string    `json:"app"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamEvents fans out an app's status transitions over a WebSocket
// connection by polling the registry record at a short interval — the
// registry is the single source of truth and has no separate event bus.
func (h *Handlers) StreamEvents(c *gin.Context) {
	name := c.Param("app")

	if _, err := h.registry.Get(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade event stream to websocket")
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastStatus registry.Status
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			app, err := h.registry.Get(name)
			if err != nil {
				return
			}
			if app.Status == lastStatus {
				continue
			}
			lastStatus = app.Status

			event := statusEvent{App: name, Status: string(app.Status), Timestamp: time.Now()}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
