package handlers

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tukio-events/tukio/internal/fanout"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 30 * time.Second

	// Watch/unwatch frames are tiny; anything bigger is a broken client.
	maxFrameSize = 512

	// Outbound buffering between the fanout pumps and the single writer.
	outboundBuffer = 32
)

// WatchHandler serves the live attendee-update channel. A connected client
// sends watch/unwatch frames naming event ids and receives every
// attendee-changed message published for the events it watches.
// Watching requires no Authorization header; attendee lists are not
// secret and a watcher cannot mutate anything.
type WatchHandler struct {
	Logger   *slog.Logger
	Hub      *fanout.Bus
	upgrader websocket.Upgrader
}

func NewWatchHandler(logger *slog.Logger, hub *fanout.Bus, allowedOrigins []string) *WatchHandler {
	return &WatchHandler{
		Logger: logger,
		Hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin at all.
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (wh *WatchHandler) RegisterHandlers(router *http.ServeMux) {
	router.HandleFunc("GET /ws", wh.Serve)
}

type watchRequest struct {
	Action  string `json:"action"`
	EventID string `json:"event_id"`
}

// Serve upgrades the connection and runs the read loop until the client
// goes away. All writes happen on a single writer goroutine; the fanout
// pumps feed it through the outbound channel.
func (wh *WatchHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := wh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		wh.Logger.Warn("Failed to upgrade watch connection", slog.Any("error", err))
		return
	}

	outbound := make(chan fanout.Message, outboundBuffer)
	done := make(chan struct{})
	go wh.writeLoop(conn, outbound, done)

	subscriptions := make(map[uuid.UUID]*fanout.Subscription)
	defer func() {
		close(done)
		for _, sub := range subscriptions {
			wh.Hub.Unsubscribe(sub)
		}
		conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req watchRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wh.Logger.Warn("Watch connection closed unexpectedly", slog.Any("error", err))
			}
			return
		}

		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			// Bad frame from an otherwise healthy client; ignore it.
			continue
		}

		switch req.Action {
		case "watch":
			if _, ok := subscriptions[eventID]; ok {
				continue
			}
			sub := wh.Hub.Subscribe(eventID.String())
			subscriptions[eventID] = sub
			go pump(sub, outbound, done)
		case "unwatch":
			if sub, ok := subscriptions[eventID]; ok {
				wh.Hub.Unsubscribe(sub)
				delete(subscriptions, eventID)
			}
		}
	}
}

// pump forwards one subscription into the shared outbound channel until
// either side shuts down.
func pump(sub *fanout.Subscription, outbound chan<- fanout.Message, done <-chan struct{}) {
	for {
		select {
		case msg := <-sub.Messages():
			select {
			case outbound <- msg:
			case <-done:
				return
			}
		case <-sub.Done():
			return
		case <-done:
			return
		}
	}
}

func (wh *WatchHandler) writeLoop(conn *websocket.Conn, outbound <-chan fanout.Message, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-outbound:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
