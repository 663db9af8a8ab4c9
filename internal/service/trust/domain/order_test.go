package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateGraphAllowsOnlyAdjacentTransitions(t *testing.T) {
	assert.True(t, StatePaid.CanTransition(StateProcessing))
	assert.True(t, StateShipped.CanTransition(StateDelivered))
	assert.True(t, StateDelivered.CanTransition(StateCompleted))

	// 不允许跳级
	assert.False(t, StatePaid.CanTransition(StateShipped))
	assert.False(t, StatePaid.CanTransition(StateCompleted))
	assert.False(t, StateShipped.CanTransition(StateCompleted))

	// 不允许回退
	assert.False(t, StateDelivered.CanTransition(StateShipped))
	assert.False(t, StateProcessing.CanTransition(StatePaid))
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, terminal := range []State{StateCompleted, StateCancelled} {
		assert.True(t, terminal.IsTerminal())
		for _, to := range []State{
			StateCreated, StatePendingPayment, StatePaid, StateProcessing,
			StateShipped, StateDelivered, StateCompleted, StateCancelled,
		} {
			assert.False(t, terminal.CanTransition(to), "%s -> %s must be illegal", terminal, to)
		}
	}
}

func TestCancellationOnlyBeforeProcessing(t *testing.T) {
	assert.True(t, StateCreated.CanTransition(StateCancelled))
	assert.True(t, StatePendingPayment.CanTransition(StateCancelled))
	assert.True(t, StatePaid.CanTransition(StateCancelled))

	assert.False(t, StateProcessing.CanTransition(StateCancelled))
	assert.False(t, StateShipped.CanTransition(StateCancelled))
	assert.False(t, StateDelivered.CanTransition(StateCancelled))
}

func TestMarkProcessingFromPaid(t *testing.T) {
	o := &Order{ID: "o-1", State: StatePaid}
	require.NoError(t, o.MarkProcessing())
	assert.Equal(t, StateProcessing, o.State)
}

func TestMarkProcessingRejectedFromOtherStates(t *testing.T) {
	o := &Order{ID: "o-1", State: StateShipped}
	err := o.MarkProcessing()
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, StateShipped, o.State)
}

func TestMarkDeliveredRecordsAnchor(t *testing.T) {
	at := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	o := &Order{ID: "o-1", State: StateShipped}
	require.NoError(t, o.MarkDelivered(at))
	assert.Equal(t, StateDelivered, o.State)
	assert.Equal(t, at, o.DeliveredAt)
}

func TestMarkCompletedOnlyFromDelivered(t *testing.T) {
	o := &Order{ID: "o-1", State: StateDelivered}
	require.NoError(t, o.MarkCompleted())
	assert.Equal(t, StateCompleted, o.State)

	again := &Order{ID: "o-2", State: StatePaid}
	assert.True(t, IsInvalidTransition(again.MarkCompleted()))
}

func TestCanAcceptReturn(t *testing.T) {
	assert.True(t, (&Order{State: StateDelivered}).CanAcceptReturn())
	assert.True(t, (&Order{State: StateCompleted}).CanAcceptReturn())
	assert.False(t, (&Order{State: StateShipped}).CanAcceptReturn())
	assert.False(t, (&Order{State: StateCancelled}).CanAcceptReturn())
}
