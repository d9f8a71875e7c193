// -----------------------------------------------------------------------
// WebSocket progress push - GET /ws/fetch/{id}
// -----------------------------------------------------------------------

package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ternarybob/fetchgateway/internal/app"
	"github.com/ternarybob/fetchgateway/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local/internal tool, no browser-origin concern
	},
}

// WSHandler pushes job-status frames to a connected client until the job
// reaches a terminal state or the client disconnects. The orchestrator
// has no native pub/sub hook, so this polls GetJob at a short interval -
// cheap since GetJob is an in-memory map read under the single mutex.
type WSHandler struct {
	app *app.App
}

func NewWSHandler(application *app.App) *WSHandler {
	return &WSHandler{app: application}
}

type jobFrame struct {
	Type string      `json:"type"`
	Job  *models.Job `json:"job"`
}

// HandleWebSocket handles GET /ws/fetch/{id}.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/ws/fetch/")
	if id == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.app.Logger.Warn().Err(err).Msg("ws: failed to upgrade connection")
		return
	}
	defer conn.Close()

	h.app.Logger.Info().Str("job_id", id).Msg("ws: client connected")

	// Drain client reads so a closed connection is detected promptly;
	// the client never needs to send anything.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastUpdatedAt time.Time
	for {
		select {
		case <-done:
			h.app.Logger.Info().Str("job_id", id).Msg("ws: client disconnected")
			return
		case <-ticker.C:
			job, ok := h.app.Orchestrator.GetJob(r.Context(), id)
			if !ok {
				conn.WriteJSON(jobFrame{Type: "error"})
				return
			}
			if job.UpdatedAt.Equal(lastUpdatedAt) {
				continue
			}
			lastUpdatedAt = job.UpdatedAt

			if err := conn.WriteJSON(jobFrame{Type: "update", Job: job}); err != nil {
				return
			}
			if job.IsTerminal() {
				data, _ := json.Marshal(jobFrame{Type: "done", Job: job})
				conn.WriteMessage(websocket.TextMessage, data)
				return
			}
		}
	}
}
