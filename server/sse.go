package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/assetflow/logger"
)

// KeepAliveInterval is how often an idle stream gets a comment line.
var KeepAliveInterval = 30 * time.Second

// ServeSSE streams hub messages to one client until the request ends or the
// hub stops.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request) {
	log := hub.log
	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("Streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// SSE connections are long-lived and must outlive the server's WriteTimeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("Could not disable write deadline", logger.Fields(logger.FieldError, err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := NewClient("browser:" + uuid.NewString())
	if !hub.Register(client) {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	writeEvent(w, newMessage(EventConnected, ConnectedEvent{ClientID: client.ID()}))
	flusher.Flush()

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug("Client disconnected", logger.Fields("client_id", client.ID()))
			return

		case msg, ok := <-client.Events():
			if !ok {
				return
			}
			writeEvent(w, msg)
			flusher.Flush()

		case <-keepAlive.C:
			// SSE comment line
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msg Message) {
	if msg.Event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}
