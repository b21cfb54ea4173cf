package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crm-service/internal/domain/lead"
	wstypes "crm-service/internal/domain/websocket"
	"crm-service/internal/middleware"
	"crm-service/internal/pkg/jwt"
	ws "crm-service/internal/websocket"
	wsHandlers "crm-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type validator struct{}

func (validator) ValidateToken(_ context.Context, token string) (*jwt.Claims, error) {
	if token != "admin" {
		return nil, errors.New("bad token")
	}
	c := &jwt.Claims{IdentityID: 1, DisplayName: "Ada", Permissions: []string{middleware.PermissionSalesAdmin}}
	c.ID = "jti-1"
	return c, nil
}

type fixedStats lead.StateCounts

func (f fixedStats) Dashboard(context.Context) (lead.StateCounts, error) {
	return lead.StateCounts(f), nil
}

func startServer(t *testing.T) (*ws.Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := ws.NewHub(zap.NewNop())
	hub.RegisterHandler(wsHandlers.NewLeadStatsHandler(fixedStats{lead.StateLead: 3, lead.StateLost: 1}))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	h := NewWebSocketHandler(hub, nil, zap.NewNop())
	mw := middleware.NewAuthMiddleware(validator{})
	r := gin.New()
	r.GET("/ws", append(mw.AdminOnly(), h.HandleConnection)...)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func readMessage(t *testing.T, conn *websocket.Conn) *wstypes.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := wstypes.ParseMessage(data)
	require.NoError(t, err)
	return msg
}

func TestLiveLeadFeed(t *testing.T) {
	hub, url := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=admin", nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, wstypes.EventTypeConnected, readMessage(t, conn).Type)

	hub.PublishLeadEvent(wstypes.EventTypeLeadCreated, wstypes.LeadEventData{LeadIDs: []int64{9}, PartyName: "Openlabs"})
	msg := readMessage(t, conn)
	assert.Equal(t, wstypes.EventTypeLeadCreated, msg.Type)

	hub.ForceLogout(1, "jti-1", "logout")
	assert.Equal(t, wstypes.EventTypeForceLogout, readMessage(t, conn).Type)
	assert.Eventually(t, func() bool { return hub.TotalClients() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestRejectsAnonymous(t *testing.T) {
	_, url := startServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLeadStatsRequest(t *testing.T) {
	_, url := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=admin", nil)
	require.NoError(t, err)
	defer conn.Close()
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(wstypes.WSMessage{Type: wstypes.EventTypeLeadStats}))
	msg := readMessage(t, conn)
	require.Equal(t, wstypes.EventTypeLeadStats, msg.Type)

	data := msg.Data.(map[string]interface{})
	assert.EqualValues(t, 4, data["total"])
	counts := data["counts"].(map[string]interface{})
	assert.EqualValues(t, 3, counts[string(lead.StateLead)])
	assert.EqualValues(t, 0, counts[string(lead.StateConverted)])
}
