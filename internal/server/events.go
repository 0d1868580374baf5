package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/coach"
	"github.com/ayusman/formcoach/internal/metrics"
)

const (
	listenerBuffer = 32
	writeWait      = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type listener struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// EventHub broadcasts feedback as CloudEvents to WebSocket listeners. It is a
// coach.Dispatcher: with no listener connected, or every listener backed up,
// Dispatch reports coach.ErrBusy and the session keeps its repetitions.
type EventHub struct {
	source  string
	metrics *metrics.Manager

	mu        sync.RWMutex
	listeners map[*listener]struct{}
	closed    bool
	wg        sync.WaitGroup
}

// NewEventHub creates a hub. m may be nil.
func NewEventHub(source string, m *metrics.Manager) *EventHub {
	if source == "" {
		source = coach.EventSource
	}
	return &EventHub{
		source:    source,
		metrics:   m,
		listeners: make(map[*listener]struct{}),
	}
}

// Listeners returns the number of connected listeners.
func (h *EventHub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Dispatch implements coach.Dispatcher.
func (h *EventHub) Dispatch(_ context.Context, msg coach.Message) error {
	event, err := coach.NewEvent(h.source, msg)
	if err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for l := range h.listeners {
		select {
		case l.send <- data:
			delivered++
		default:
			log.WithField("remote", l.conn.RemoteAddr().String()).Debug("event listener backed up, skipping")
		}
	}
	if delivered == 0 {
		return coach.ErrBusy
	}
	return nil
}

// ServeHTTP upgrades the request and streams events until the listener
// disconnects or the hub closes.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade error")
		return
	}

	l := &listener{
		conn: conn,
		send: make(chan []byte, listenerBuffer),
		done: make(chan struct{}),
	}
	if !h.register(l) {
		conn.Close()
		return
	}
	defer h.wg.Done()

	go l.writeLoop()

	// Listeners only receive; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(l)
	<-l.done
	conn.Close()
}

func (h *EventHub) register(l *listener) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.listeners[l] = struct{}{}
	h.wg.Add(1)
	if h.metrics != nil {
		h.metrics.GaugeEventListeners.Inc()
	}
	log.WithField("remote", l.conn.RemoteAddr().String()).Info("event listener connected")
	return true
}

func (h *EventHub) unregister(l *listener) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.listeners[l]; !ok {
		return
	}
	delete(h.listeners, l)
	close(l.send)
	if h.metrics != nil {
		h.metrics.GaugeEventListeners.Dec()
	}
	log.WithField("remote", l.conn.RemoteAddr().String()).Info("event listener disconnected")
}

func (l *listener) writeLoop() {
	defer close(l.done)
	for data := range l.send {
		l.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// Closing unblocks the read loop, which unregisters.
			l.conn.Close()
			for range l.send {
			}
			return
		}
	}
}

// Close disconnects every listener and waits for their handlers to return.
func (h *EventHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for l := range h.listeners {
		l.conn.Close()
	}
	h.mu.Unlock()

	h.wg.Wait()
}
