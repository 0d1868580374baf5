package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/app"
	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/session"
)

// SourceWebSocket labels frames received on the ingest socket.
const SourceWebSocket = "websocket"

// Ack types sent back on the ingest socket.
const (
	AckRepetition = "repetition"
	AckError      = "error"
)

// FrameAck is written back for completed repetitions and rejected frames.
type FrameAck struct {
	Type   string               `json:"type"`
	Result *session.FrameResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// FrameHandler ingests pose frames for one session over a WebSocket. Each text
// message is one frame in the pose service's JSON format.
type FrameHandler struct {
	app *app.App
	now func() time.Time
}

// NewFrameHandler creates a FrameHandler feeding sessions of a.
func NewFrameHandler(a *app.App) *FrameHandler {
	return &FrameHandler{app: a, now: time.Now}
}

// ServeHTTP handles WebSocket upgrade requests on /api/sessions/{id}/frames.
func (h *FrameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.app.Session(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade error")
		return
	}
	defer conn.Close()

	logger := log.WithFields(log.Fields{"session": id, "remote": conn.RemoteAddr().String()})
	logger.Info("frame stream connected")
	defer logger.Info("frame stream disconnected")

	untracked := false
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var frame pose.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			if !h.write(conn, FrameAck{Type: AckError, Error: err.Error()}) {
				return
			}
			continue
		}
		if frame.Timestamp.IsZero() {
			frame.Timestamp = h.now()
		}

		res, err := h.app.ProcessFrame(id, frame, SourceWebSocket)
		switch {
		case errors.Is(err, session.ErrNoCounter):
			if untracked {
				continue
			}
			untracked = true
			if !h.write(conn, FrameAck{Type: AckError, Error: err.Error()}) {
				return
			}
			continue
		case errors.Is(err, app.ErrSessionNotFound), errors.Is(err, session.ErrClosed):
			h.write(conn, FrameAck{Type: AckError, Error: err.Error()})
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(writeWait))
			return
		case err != nil:
			if !h.write(conn, FrameAck{Type: AckError, Error: err.Error()}) {
				return
			}
			continue
		}
		untracked = false

		if res.Rep != nil {
			if !h.write(conn, FrameAck{Type: AckRepetition, Result: &res}) {
				return
			}
		}
	}
}

func (h *FrameHandler) write(conn *websocket.Conn, ack FrameAck) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ack); err != nil {
		log.WithError(err).Debug("failed to write frame ack")
		return false
	}
	return true
}
