package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeCatchupQuerier struct {
	events []CatchupEvent
}

func (f *fakeCatchupQuerier) GetCatchupEvents(_ context.Context, _ string, sinceID, limit int) ([]CatchupEvent, error) {
	var out []CatchupEvent
	for _, e := range f.events {
		if e.ID > sinceID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestServer(t *testing.T, m *ConnectionManager) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		m.HandleConnection(r.Context(), conn)
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHandleConnection_SendsEstablishedMessage(t *testing.T) {
	m := NewConnectionManager(&fakeCatchupQuerier{}, time.Second)
	srv, url := newTestServer(t, m)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]string
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "connection.established", msg["type"])
}

func TestSubscribeThenCatchupDelivered(t *testing.T) {
	m := NewConnectionManager(&fakeCatchupQuerier{
		events: []CatchupEvent{
			{ID: 1, Payload: map[string]interface{}{"type": "covenant.status", "state": "active"}},
		},
	}, time.Second)
	srv, url := newTestServer(t, m)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()

	_, _, err := conn.ReadMessage() // connection.established
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", Channel: "covenant:c1"}))

	_, confirm, err := conn.ReadMessage()
	require.NoError(t, err)
	var confirmMsg map[string]string
	require.NoError(t, json.Unmarshal(confirm, &confirmMsg))
	require.Equal(t, "subscription.confirmed", confirmMsg["type"])

	_, catchup, err := conn.ReadMessage()
	require.NoError(t, err)
	var catchupMsg map[string]interface{}
	require.NoError(t, json.Unmarshal(catchup, &catchupMsg))
	require.Equal(t, "active", catchupMsg["state"])
	require.EqualValues(t, 1, catchupMsg["db_event_id"])
}

func TestBroadcast_OnlyReachesSubscribers(t *testing.T) {
	m := NewConnectionManager(&fakeCatchupQuerier{}, time.Second)
	srv, url := newTestServer(t, m)
	defer srv.Close()

	subscriber := dial(t, url)
	defer subscriber.Close()
	_, _, err := subscriber.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, subscriber.WriteJSON(ClientMessage{Action: "subscribe", Channel: "covenant:c1"}))
	_, _, err = subscriber.ReadMessage() // confirmed
	require.NoError(t, err)

	bystander := dial(t, url)
	defer bystander.Close()
	_, _, err = bystander.ReadMessage()
	require.NoError(t, err)

	m.Broadcast("covenant:c1", []byte(`{"type":"orchestration.progress"}`))

	_, data, err := subscriber.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), "orchestration.progress")

	require.NoError(t, bystander.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = bystander.ReadMessage()
	require.Error(t, err)
}

func TestPing_RepliesWithPong(t *testing.T) {
	m := NewConnectionManager(&fakeCatchupQuerier{}, time.Second)
	srv, url := newTestServer(t, m)
	defer srv.Close()

	conn := dial(t, url)
	defer conn.Close()
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "ping"}))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]string
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "pong", msg["type"])
}
