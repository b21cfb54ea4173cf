// internal/service/lead/workflow.go
package lead

import (
	"context"
	"fmt"

	"crm-service/internal/domain/lead"
	ws "crm-service/internal/domain/websocket"
	xerrors "crm-service/internal/pkg/errors"
	"crm-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

// StateWriter is the only store access the workflow needs.
type StateWriter interface {
	SetState(ctx context.Context, ids []int64, state lead.State) (int64, error)
}

// Workflow moves leads between states. Every transition is allowed from
// every state and the last write wins.
type Workflow struct {
	repo   StateWriter
	events EventPublisher
	logger *zap.Logger
}

func NewWorkflow(repo StateWriter, events EventPublisher, logger *zap.Logger) *Workflow {
	if events == nil {
		events = NopPublisher{}
	}
	return &Workflow{repo: repo, events: events, logger: logger}
}

func (w *Workflow) Opportunity(ctx context.Context, ids ...int64) (int64, error) {
	return w.Transition(ctx, lead.StateOpportunity, ids...)
}

func (w *Workflow) Convert(ctx context.Context, ids ...int64) (int64, error) {
	return w.Transition(ctx, lead.StateConverted, ids...)
}

func (w *Workflow) Lost(ctx context.Context, ids ...int64) (int64, error) {
	return w.Transition(ctx, lead.StateLost, ids...)
}

func (w *Workflow) Lead(ctx context.Context, ids ...int64) (int64, error) {
	return w.Transition(ctx, lead.StateLead, ids...)
}

func (w *Workflow) Cancel(ctx context.Context, ids ...int64) (int64, error) {
	return w.Transition(ctx, lead.StateCancelled, ids...)
}

// Transition writes target to every referenced lead and returns how many
// leads were written. It fails with ErrNotFound when none of the ids exist.
func (w *Workflow) Transition(ctx context.Context, target lead.State, ids ...int64) (int64, error) {
	if !target.IsValid() {
		return 0, xerrors.ErrInvalidState
	}

	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no lead ids given", xerrors.ErrInvalidInput)
	}

	n, err := w.repo.SetState(ctx, ids, target)
	if err != nil {
		w.logger.Error("failed to transition leads",
			zap.Int64s("lead_ids", ids),
			zap.String("state", string(target)),
			zap.Error(err),
		)
		return 0, err
	}
	if n == 0 {
		return 0, xerrors.ErrNotFound
	}

	metrics.RecordTransition(string(target), n)
	w.events.PublishLeadEvent(ws.EventTypeLeadStateChanged, ws.LeadEventData{
		LeadIDs: ids,
		State:   string(target),
	})
	w.logger.Info("leads transitioned",
		zap.Int64s("lead_ids", ids),
		zap.String("state", string(target)),
		zap.Int64("affected", n),
	)
	return n, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
