// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType names a real-time event.
type EventType string

const (
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"
	EventTypeSubscribe    EventType = "subscribe"
	EventTypeUnsubscribe  EventType = "unsubscribe"

	// server -> client
	EventTypeLeadCreated      EventType = "lead:created"
	EventTypeLeadStateChanged EventType = "lead:state_changed"
	EventTypeLeadAssigned     EventType = "lead:assigned"
	EventTypeLeadCommented    EventType = "lead:commented"
	EventTypeForceLogout      EventType = "session:force_logout"

	// client -> server
	EventTypeLeadStats EventType = "lead:stats"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	ID        string      `json:"id,omitempty"`
}

// ChannelType groups events clients can subscribe to.
type ChannelType string

const (
	ChannelLeads  ChannelType = "leads"
	ChannelSystem ChannelType = "system"
)

type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// LeadEventData describes a change to one or more leads.
type LeadEventData struct {
	LeadIDs   []int64 `json:"lead_ids"`
	State     string  `json:"state,omitempty"`
	PartyName string  `json:"party_name,omitempty"`
	Actor     string  `json:"actor,omitempty"`
	Detail    string  `json:"detail,omitempty"`
}

type SessionEventData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
