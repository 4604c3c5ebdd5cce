package server

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"currencycheck/internal/domain"
)

func dialStream(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewRouter(NewHandler(new(MockDashboard), nil, zerolog.Nop()), hub))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestStreamReplaysSnapshotThenForwardsEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Render(sampleSnapshot())

	conn := dialStream(t, hub)
	first := readEvent(t, conn)
	require.Equal(t, EventSnapshot, first.Type)
	require.Len(t, first.Currencies, 3)
	require.NotNil(t, first.TakenAt)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	hub.Patch([]domain.Entry{{ID: "ethereum", Name: "Ethereum", Symbol: "ETH", Class: domain.ClassCrypto, Priority: 1, Price: 3100}})
	patch := readEvent(t, conn)
	require.Equal(t, EventPatch, patch.Type)
	require.Len(t, patch.Currencies, 1)
	require.InDelta(t, 3100, patch.Currencies[0].Price, 1e-9)

	hub.ShowError(errors.New("crypto: status 503"))
	require.Equal(t, Event{Type: EventError, Error: "crypto: status 503"}, readEvent(t, conn))
	hub.ClearError()
	require.Equal(t, EventClearError, readEvent(t, conn).Type)

	hub.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	require.Zero(t, hub.Subscribers())
}

func TestStreamPatchUpdatesReplayedSnapshot(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Render(sampleSnapshot())
	hub.Patch([]domain.Entry{{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Class: domain.ClassCrypto, Priority: 1, Price: 1}})

	first := readEvent(t, dialStream(t, hub))
	require.Equal(t, EventSnapshot, first.Type)
	for _, e := range first.Currencies {
		if e.ID == "bitcoin" {
			require.InDelta(t, 1, e.Price, 1e-9)
		}
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s, ok := hub.subscribe()
	require.True(t, ok)

	for range streamBuffer + 1 {
		hub.ClearError()
	}
	require.Zero(t, hub.Subscribers())

	received := 0
	for range s.send {
		received++
	}
	require.Equal(t, streamBuffer, received)
}

func TestHubRefusesAfterClose(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Close()
	_, ok := hub.subscribe()
	require.False(t, ok)
}

func TestHubIgnoresNilError(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s, ok := hub.subscribe()
	require.True(t, ok)

	require.NotPanics(t, func() { hub.ShowError(nil) })
	hub.ClearError()
	require.Equal(t, EventClearError, (<-s.send).Type)
	require.Empty(t, s.send)
}
