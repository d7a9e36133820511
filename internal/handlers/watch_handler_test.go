package handlers_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tukio-events/tukio/internal/fanout"
	"github.com/tukio-events/tukio/internal/handlers"
)

func newWatchServer(t *testing.T) (*fanout.Bus, *websocket.Conn) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := fanout.NewBus(logger)

	router := http.NewServeMux()
	handlers.NewWatchHandler(logger, hub, nil).RegisterHandlers(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return hub, conn
}

func TestWatchedEventDeliversAttendeeUpdates(t *testing.T) {
	hub, conn := newWatchServer(t)

	eventID := uuid.New()
	attendee := uuid.New()

	err := conn.WriteJSON(map[string]string{"action": "watch", "event_id": eventID.String()})
	require.NoError(t, err)

	// Give the server a moment to register the subscription.
	time.Sleep(100 * time.Millisecond)

	hub.Publish(eventID.String(), fanout.Message{
		EventID:   eventID,
		Attendees: []uuid.UUID{attendee},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg fanout.Message
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, eventID, msg.EventID)
	assert.Equal(t, []uuid.UUID{attendee}, msg.Attendees)
}

func TestUnwatchedEventDeliversNothing(t *testing.T) {
	hub, conn := newWatchServer(t)

	watched := uuid.New()
	other := uuid.New()

	err := conn.WriteJSON(map[string]string{"action": "watch", "event_id": watched.String()})
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	hub.Publish(other.String(), fanout.Message{EventID: other})
	hub.Publish(watched.String(), fanout.Message{EventID: watched})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg fanout.Message
	require.NoError(t, conn.ReadJSON(&msg))

	// Only the watched event's message arrives.
	assert.Equal(t, watched, msg.EventID)
}
