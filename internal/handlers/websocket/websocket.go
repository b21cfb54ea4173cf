// internal/handlers/websocket/websocket.go
package websocket

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"crm-service/internal/middleware"
	"crm-service/internal/pkg/response"
	ws "crm-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler accepts browser origins from allowedOrigins ("*" for
// any) and always the server's own host.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin) {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
		logger: logger,
	}
}

// HandleConnection upgrades an authenticated admin request to the live
// lead feed. Runs behind the admin guard.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "missing authentication token", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, &ws.ClientAuth{
		IdentityID:  claims.IdentityID,
		SessionID:   claims.ID,
		DisplayName: claims.DisplayName,
		Permissions: claims.Permissions,
	})
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// GetStats returns connection statistics.
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	response.Success(c, http.StatusOK, "websocket stats", gin.H{
		"total_connections": h.hub.TotalClients(),
		"timestamp":         time.Now(),
	})
}
