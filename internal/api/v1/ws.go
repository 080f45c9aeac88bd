package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vmunix/tvgrab/internal/events"
	"github.com/vmunix/tvgrab/internal/scheduler"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Events buffered per client before the bus starts dropping
	clientBuffer = 256
)

// EventSnapshot is the first message on a stream.
const EventSnapshot = "status.snapshot"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type snapshotMessage struct {
	Type   string             `json:"type"`
	Status scheduler.Snapshot `json:"status"`
}

// streamEvents pushes the current snapshot and then every bus event as a
// JSON text message. ?run=<id> limits the stream to one run.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	runFilter := r.URL.Query().Get("run")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	clientID := uuid.NewString()
	log := s.log.With("client", clientID)

	var sub <-chan events.Event
	if runFilter != "" {
		sub = s.deps.Bus.SubscribeRun(runFilter, clientBuffer)
	} else {
		sub = s.deps.Bus.SubscribeAll(clientBuffer)
	}
	defer s.deps.Bus.Unsubscribe(sub)

	log.Debug("websocket client connected", "run", runFilter)
	defer log.Debug("websocket client disconnected")

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, sub, done, s.deps.Status.Snapshot(), log)
}

// readPump discards client messages and closes done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, sub <-chan events.Event, done <-chan struct{}, snap scheduler.Snapshot, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	write := func(v any) bool {
		msg, err := json.Marshal(v)
		if err != nil {
			log.Warn("encode websocket message", "error", err)
			return true
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, msg) == nil
	}

	if !write(snapshotMessage{Type: EventSnapshot, Status: snap}) {
		return
	}

	for {
		select {
		case e, ok := <-sub:
			if !ok {
				// The bus closed
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if !write(e) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
