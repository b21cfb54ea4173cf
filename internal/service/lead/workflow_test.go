package lead

import (
	"context"
	"testing"

	"crm-service/internal/domain/lead"
	ws "crm-service/internal/domain/websocket"
	xerrors "crm-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflow_EachTransitionSetsItsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, tarun())

	steps := []struct {
		run  func(context.Context, ...int64) (int64, error)
		want lead.State
	}{
		{f.workflow.Opportunity, lead.StateOpportunity},
		{f.workflow.Convert, lead.StateConverted},
		{f.workflow.Lead, lead.StateLead},
		{f.workflow.Lost, lead.StateLost},
		{f.workflow.Cancel, lead.StateCancelled},
	}

	for _, step := range steps {
		n, err := step.run(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		l, err := f.store.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, step.want, l.State)
		assert.True(t, l.State.IsValid())
	}
}

func TestWorkflow_OpportunityThenLostEndsLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, tarun())

	_, err := f.workflow.Opportunity(ctx, id)
	require.NoError(t, err)
	_, err = f.workflow.Lost(ctx, id)
	require.NoError(t, err)

	l, err := f.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, lead.StateLost, l.State)
}

func TestWorkflow_MultipleIDsAndDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.submit(t, tarun())
	b := f.submit(t, tarun())

	n, err := f.workflow.Convert(ctx, a, b, a, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, ws.EventTypeLeadStateChanged, last.Type)
	assert.Equal(t, []int64{a, b}, last.Data.LeadIDs)
	assert.Equal(t, "converted", last.Data.State)
}

func TestWorkflow_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.workflow.Lost(ctx, 999)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	_, err = f.workflow.Lost(ctx)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = f.workflow.Transition(ctx, lead.State("won"), 1)
	assert.ErrorIs(t, err, xerrors.ErrInvalidState)
}
