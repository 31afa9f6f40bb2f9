package report

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/de-tools/market-pulse/pkg/adapters"
	"github.com/de-tools/market-pulse/pkg/models/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin in dev.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamRun streams the progress of the generation running for the
// requested date as Server-Sent Events. When nothing is running the
// stream closes immediately. Dropping the connection never cancels the
// generation itself.
func (h *Handler) StreamRun(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	date, ok := h.streamDate(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := h.coord.Subscribe(date)
	defer cancel()

	logger.Debug().Str("date", date).Msg("progress stream attached")

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(adapters.MapDomainProgressToAPI(ev))
			if err != nil {
				logger.Error().Err(err).Msg("failed to encode progress event")
				continue
			}
			fmt.Fprintf(w, "event: %s\n", sseEventName(ev))
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			if ev.Terminal {
				return
			}
		case <-r.Context().Done():
			logger.Debug().Str("date", date).Msg("progress stream client disconnected")
			return
		}
	}
}

// StreamRunWS serves the same progress sequence over a WebSocket for
// the dashboard widget.
func (h *Handler) StreamRunWS(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	date, ok := h.streamDate(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reader goroutine only watches for the client going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events, cancel := h.coord.Subscribe(date)
	defer cancel()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(adapters.MapDomainProgressToAPI(ev)); err != nil {
				logger.Debug().Err(err).Msg("websocket write failed, dropping subscriber")
				return
			}
			if ev.Terminal {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) streamDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return h.now().Format(domain.DateLayout), true
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return "", false
	}
	return date, true
}

func sseEventName(ev domain.ProgressEvent) string {
	switch {
	case !ev.Terminal:
		return "progress"
	case ev.Err != "":
		return "failed"
	default:
		return "done"
	}
}
