// internal/websocket/handler/lead_stats.go
package handler

import (
	"context"
	"fmt"

	"crm-service/internal/domain/lead"
	wstypes "crm-service/internal/domain/websocket"
	ws "crm-service/internal/websocket"
)

// StatsSource tallies leads per state.
type StatsSource interface {
	Dashboard(ctx context.Context) (lead.StateCounts, error)
}

// LeadStatsHandler answers "lead:stats" with the dashboard counters.
type LeadStatsHandler struct {
	stats StatsSource
}

func NewLeadStatsHandler(stats StatsSource) *LeadStatsHandler {
	return &LeadStatsHandler{stats: stats}
}

func (h *LeadStatsHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeLeadStats}
}

func (h *LeadStatsHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	if msg.Type != wstypes.EventTypeLeadStats {
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
	if !client.HasPermission(ws.PermissionLeadFeed) {
		client.SendError("forbidden", "Lead statistics need the sales admin permission", "")
		return nil
	}

	counts, err := h.stats.Dashboard(ctx)
	if err != nil {
		return err
	}

	byState := make(map[string]int64, len(counts))
	var total int64
	for _, s := range lead.AllStates() {
		byState[string(s)] = counts[s]
		total += counts[s]
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeLeadStats, map[string]interface{}{
		"counts": byState,
		"total":  total,
	}))
	return nil
}
