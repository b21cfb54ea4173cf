// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	wstypes "crm-service/internal/domain/websocket"

	"go.uber.org/zap"
)

// Hub owns the registry of connected admin clients. Only Run mutates it.
type Hub struct {
	// Registered clients by identity ID
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client

	broadcast chan *BroadcastMessage

	handlerRegistry *HandlerRegistry
	logger          *zap.Logger
}

type BroadcastMessage struct {
	IdentityIDs []int64
	// SessionID narrows delivery to one session of the listed identities.
	SessionID string
	Channel   wstypes.ChannelType
	Message   *wstypes.WSMessage
	// Disconnect closes the matched clients after delivery.
	Disconnect bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[int64]map[*Client]bool),
		Register:        make(chan *Client),
		unregister:      make(chan *Client, 16),
		broadcast:       make(chan *BroadcastMessage, 256),
		handlerRegistry: NewHandlerRegistry(),
		logger:          logger,
	}
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage routes a client message to its registered handler.
// Messages with no handler fall through to the client's built-ins.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.identityID] == nil {
		h.clients[client.identityID] = make(map[*Client]bool)
	}
	h.clients[client.identityID][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		zap.Int64("identity_id", client.identityID),
		zap.String("session_id", client.sessionID),
		zap.Int("total", total),
	)

	// admins follow the lead feed without asking
	client.Subscribe(wstypes.ChannelSystem)
	client.Subscribe(wstypes.ChannelLeads)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"identity_id": client.identityID,
		"session_id":  client.sessionID,
		"name":        client.displayName,
		"channels":    client.Channels(),
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.identityID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.identityID)
			}

			h.logger.Info("websocket client disconnected",
				zap.Int64("identity_id", client.identityID),
				zap.String("session_id", client.sessionID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	var dropped []*Client

	h.mu.RLock()
	send := func(client *Client) {
		if msg.SessionID != "" && client.sessionID != msg.SessionID {
			return
		}
		if !client.IsSubscribed(msg.Channel) {
			return
		}
		if !client.SendMessage(msg.Message) || msg.Disconnect {
			dropped = append(dropped, client)
		}
	}

	if msg.IdentityIDs == nil {
		for _, clients := range h.clients {
			for client := range clients {
				send(client)
			}
		}
	} else {
		for _, identityID := range msg.IdentityIDs {
			for client := range h.clients[identityID] {
				send(client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range dropped {
		h.unregisterClient(client)
	}
}

// publish queues a message without ever blocking the caller; a saturated
// hub drops it.
func (h *Hub) publish(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping message",
			zap.String("type", string(msg.Message.Type)),
		)
	}
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// IsUserConnected checks if a user has any active connections
func (h *Hub) IsUserConnected(identityID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identityID]) > 0
}

// ========== Publishing Methods ==========

// PublishLeadEvent sends a lead change to every client on the leads channel.
func (h *Hub) PublishLeadEvent(eventType wstypes.EventType, data wstypes.LeadEventData) {
	h.publish(&BroadcastMessage{
		Channel: wstypes.ChannelLeads,
		Message: wstypes.NewMessage(eventType, data),
	})
}

// ForceLogout tells the connection of a revoked session and closes it.
func (h *Hub) ForceLogout(identityID int64, sessionID string, reason string) {
	h.publish(&BroadcastMessage{
		IdentityIDs: []int64{identityID},
		SessionID:   sessionID,
		Channel:     wstypes.ChannelSystem,
		Message: wstypes.NewMessage(wstypes.EventTypeForceLogout, wstypes.SessionEventData{
			SessionID: sessionID,
			Reason:    reason,
		}),
		Disconnect: true,
	})
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
