package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	wstypes "crm-service/internal/domain/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func connect(t *testing.T, hub *Hub, identityID int64, session string, perms ...string) *Client {
	t.Helper()
	c := NewClient(hub, nil, &ClientAuth{IdentityID: identityID, SessionID: session, Permissions: perms})
	hub.Register <- c
	msg := recv(t, c)
	require.Equal(t, wstypes.EventTypeConnected, msg.Type)
	return c
}

func recv(t *testing.T, c *Client) *wstypes.WSMessage {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "client channel closed")
		msg, err := wstypes.ParseMessage(data)
		require.NoError(t, err)
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected message: %s", data)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishLeadEventReachesAdminsOnly(t *testing.T) {
	hub := startHub(t)
	admin := connect(t, hub, 1, "s1", PermissionLeadFeed)
	other := connect(t, hub, 2, "s2")

	assert.True(t, admin.IsSubscribed(wstypes.ChannelLeads))
	assert.False(t, other.IsSubscribed(wstypes.ChannelLeads))

	hub.PublishLeadEvent(wstypes.EventTypeLeadStateChanged, wstypes.LeadEventData{
		LeadIDs: []int64{42},
		State:   "lost",
	})

	msg := recv(t, admin)
	assert.Equal(t, wstypes.EventTypeLeadStateChanged, msg.Type)

	var data wstypes.LeadEventData
	require.NoError(t, mapToStruct(msg.Data, &data))
	assert.Equal(t, []int64{42}, data.LeadIDs)
	assert.Equal(t, "lost", data.State)

	assertSilent(t, other)
	assert.Equal(t, 2, hub.TotalClients())
}

func TestForceLogoutClosesOnlyThatSession(t *testing.T) {
	hub := startHub(t)
	first := connect(t, hub, 1, "keep", PermissionLeadFeed)
	second := connect(t, hub, 1, "revoke", PermissionLeadFeed)

	hub.ForceLogout(1, "revoke", "logout")

	msg := recv(t, second)
	assert.Equal(t, wstypes.EventTypeForceLogout, msg.Type)
	assert.Eventually(t, func() bool { return hub.TotalClients() == 1 }, time.Second, 10*time.Millisecond)

	_, open := <-second.send
	assert.False(t, open)

	assertSilent(t, first)
	assert.True(t, hub.IsUserConnected(1))
}

func TestClientBuiltins(t *testing.T) {
	hub := startHub(t)
	c := connect(t, hub, 3, "s3")

	c.handleMessage([]byte(`{"type":"ping"}`))
	assert.Equal(t, wstypes.EventTypePong, recv(t, c).Type)

	c.handleMessage([]byte(`{"type":"subscribe","data":{"channels":["leads","system"]}}`))
	msg := recv(t, c)
	assert.Equal(t, wstypes.EventTypeSubscribe, msg.Type)
	raw, _ := json.Marshal(msg.Data)
	assert.JSONEq(t, `{"channels":["system"],"denied":["leads"],"status":"subscribed"}`, string(raw))

	c.handleMessage([]byte(`not json`))
	assert.Equal(t, wstypes.EventTypeError, recv(t, c).Type)

	c.handleMessage([]byte(`{"type":"nope"}`))
	assert.Equal(t, wstypes.EventTypeError, recv(t, c).Type)
}

type echoHandler struct{}

func (echoHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeLeadStats}
}

func (echoHandler) HandleMessage(_ context.Context, client *Client, msg *wstypes.WSMessage) error {
	client.SendMessage(wstypes.NewMessage(msg.Type, "handled"))
	return nil
}

func TestRegisteredHandlerTakesPrecedence(t *testing.T) {
	hub := startHub(t)
	hub.RegisterHandler(echoHandler{})
	c := connect(t, hub, 4, "s4", PermissionLeadFeed)

	c.handleMessage([]byte(`{"type":"lead:stats"}`))
	msg := recv(t, c)
	assert.Equal(t, wstypes.EventTypeLeadStats, msg.Type)
	assert.Equal(t, "handled", msg.Data)
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewClient(NewHub(zap.NewNop()), nil, &ClientAuth{IdentityID: 1})
	c.Close()
	c.Close()
	assert.False(t, c.SendMessage(wstypes.NewMessage(wstypes.EventTypePing, nil)))
}
