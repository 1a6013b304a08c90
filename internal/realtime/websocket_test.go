package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialRealtime(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/realtime" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.SubscriberCount() == n },
		2*time.Second, 10*time.Millisecond)
}

func TestHandler_StreamsOrganizationEvents(t *testing.T) {
	hub := NewHub(8)
	server := httptest.NewServer(NewHandler(hub, HandlerConfig{}))
	defer server.Close()

	conn := dialRealtime(t, server, "?organization="+testOrgA)
	waitForSubscribers(t, hub, 1)

	hub.Publish(context.Background(), serviceEvent(testOrgA, "api"))
	hub.Publish(context.Background(), serviceEvent(testOrgB, "other"))
	hub.Publish(context.Background(), IncidentDeletedEvent(testOrgA, "inc-1"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, Channel(testOrgA, KindServices), first.Channel)
	require.NotNil(t, first.Service)
	assert.Equal(t, "api", first.Service.Name)

	var second Event
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, ActionDelete, second.Action)
	assert.Equal(t, "inc-1", second.IncidentID)
}

func TestHandler_SubscribeMessage(t *testing.T) {
	hub := NewHub(8)
	server := httptest.NewServer(NewHandler(hub, HandlerConfig{}))
	defer server.Close()

	conn := dialRealtime(t, server, "")
	waitForSubscribers(t, hub, 1)

	channel := Channel(testOrgB, KindIncidents)
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "subscribe", Channel: channel}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ack controlMessage
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, channel, ack.Channel)

	hub.Publish(context.Background(), IncidentDeletedEvent(testOrgB, "inc-9"))

	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "inc-9", event.IncidentID)
}

func TestHandler_InvalidChannelMessage(t *testing.T) {
	hub := NewHub(8)
	server := httptest.NewServer(NewHandler(hub, HandlerConfig{}))
	defer server.Close()

	conn := dialRealtime(t, server, "")
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "subscribe", Channel: "everything"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var reply controlMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.NotEmpty(t, reply.Message)
}

func TestHandler_InvalidOrganization(t *testing.T) {
	hub := NewHub(8)
	server := httptest.NewServer(NewHandler(hub, HandlerConfig{}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/realtime?organization=not-a-uuid"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHandler_DisconnectUnsubscribes(t *testing.T) {
	hub := NewHub(8)
	server := httptest.NewServer(NewHandler(hub, HandlerConfig{}))
	defer server.Close()

	conn := dialRealtime(t, server, "?organization="+testOrgA)
	waitForSubscribers(t, hub, 1)

	require.NoError(t, conn.Close())

	waitForSubscribers(t, hub, 0)
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(8)
	server := httptest.NewServer(NewHandler(hub, HandlerConfig{
		AllowedOrigins: []string{"https://status.example.com"},
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/realtime"
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
