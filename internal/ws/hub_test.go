package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"waitline/internal/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/api/queues/:id/ws", hub.Handler)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return hub, ts
}

func dial(t *testing.T, hub *Hub, ts *httptest.Server, queueID string) *websocket.Conn {
	t.Helper()
	before := hub.ClientCount(queueID)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/queues/" + queueID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount(queueID) == before+1 },
		time.Second, 5*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) queue.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev queue.Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	return ev
}

func TestHub_NotifyReachesQueueSubscribers(t *testing.T) {
	hub, ts := startHub(t)
	first := dial(t, hub, ts, "q-1")
	other := dial(t, hub, ts, "q-2")

	hub.Notify(context.Background(), queue.Event{
		Type:      queue.EventEntryAdded,
		QueueID:   "q-1",
		EntryIDs:  []string{"e-1"},
		Position:  1,
		QueueSize: 1,
		IsActive:  true,
	})

	ev := readEvent(t, first)
	assert.Equal(t, queue.EventEntryAdded, ev.Type)
	assert.Equal(t, []string{"e-1"}, ev.EntryIDs)
	assert.Equal(t, 1, ev.Position)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "clients of other queues get nothing")
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, ts := startHub(t)
	conn := dial(t, hub, ts, "q-1")
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.ClientCount("q-1") == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestRelay_ForwardsPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	hub, ts := startHub(t)
	conn := dial(t, hub, ts, "q-9")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relayDone := make(chan error, 1)
	go func() { relayDone <- Relay(ctx, client, hub, nil) }()
	require.Eventually(t, func() bool { return len(mr.PubSubChannels("")) == 1 },
		time.Second, 5*time.Millisecond)

	NewRedisNotifier(client, nil).Notify(context.Background(), queue.Event{
		Type:    queue.EventEntryCalled,
		QueueID: "q-9",
	})

	ev := readEvent(t, conn)
	assert.Equal(t, queue.EventEntryCalled, ev.Type)
	assert.Equal(t, "q-9", ev.QueueID)

	cancel()
	select {
	case err := <-relayDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
