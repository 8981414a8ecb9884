package database

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

	"github.com/codeready-toolchain/covenant/pkg/events"
)

func newReplicaWSServer(t *testing.T, m *events.ConnectionManager) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		m.HandleConnection(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// TestMultiReplica_CrossPodEventDelivery verifies the production path for a
// multi-pod deployment: two independent process replicas share one
// PostgreSQL schema. A covenant event published through replica A's
// EventPublisher reaches a WebSocket client connected to replica B purely
// via PostgreSQL NOTIFY/LISTEN — replica B never touches replica A's
// in-memory state directly.
func TestMultiReplica_CrossPodEventDelivery(t *testing.T) {
	sharedDB := NewSharedTestDB(t)

	clientA := sharedDB.NewClient(t)
	clientB := sharedDB.NewClient(t)

	publisherA := events.NewEventPublisher(clientA.Pool)

	managerB := events.NewConnectionManager(events.NewPoolCatchupQuerier(clientB.Pool), time.Second)
	listenerB := events.NewNotifyListener(sharedDB.BaseConnString(), managerB)
	managerB.SetListener(listenerB)

	ctx := context.Background()
	require.NoError(t, listenerB.Start(ctx))
	t.Cleanup(func() { listenerB.Stop(ctx) })

	wsURL := newReplicaWSServer(t, managerB)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage() // connection.established
	require.NoError(t, err)

	const userID = "replica-user"
	require.NoError(t, conn.WriteJSON(events.ClientMessage{Action: "subscribe", Channel: events.UserChannel(userID)}))

	_, confirm, err := conn.ReadMessage() // subscription.confirmed
	require.NoError(t, err)
	var confirmMsg map[string]string
	require.NoError(t, json.Unmarshal(confirm, &confirmMsg))
	require.Equal(t, "subscription.confirmed", confirmMsg["type"])

	require.NoError(t, publisherA.PublishCovenantStatus(ctx, events.CovenantStatusPayload{
		Type:       events.EventTypeCovenantStatus,
		CovenantID: "c-cross-replica",
		UserID:     userID,
		State:      "completed",
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err, "replica B should receive the event published via replica A through NOTIFY/LISTEN")

	var payload events.CovenantStatusPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Equal(t, events.EventTypeCovenantStatus, payload.Type)
	require.Equal(t, "c-cross-replica", payload.CovenantID)
	require.Equal(t, "completed", payload.State)
}
