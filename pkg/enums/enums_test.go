package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderGroupStatus(t *testing.T) {
	got, err := ParseOrderGroupStatus("awaiting_payment")
	require.NoError(t, err)
	assert.Equal(t, OrderGroupStatusAwaitingPayment, got)

	_, err = ParseOrderGroupStatus("shipped")
	require.Error(t, err)
	assert.True(t, OrderGroupStatusPaid.IsTerminal())
	assert.False(t, OrderGroupStatusPending.IsTerminal())
}

func TestOrderStatusCanShip(t *testing.T) {
	for _, status := range orderStatuses {
		want := status == OrderStatusPaid || status == OrderStatusShipped
		assert.Equal(t, want, status.CanShip(), status.String())
	}
}

func TestOutboxEventTypes(t *testing.T) {
	got, err := ParseOutboxEventType("order.shipped")
	require.NoError(t, err)
	assert.Equal(t, EventOrderShipped, got)
	assert.True(t, AggregateOrderGroup.IsValid())
	assert.False(t, OutboxAggregateType("vendor").IsValid())
}

func TestParseTrimsAndRejects(t *testing.T) {
	got, err := ParseCartStatus(" merged ")
	require.NoError(t, err)
	assert.Equal(t, CartStatusMerged, got)

	_, err = ParseOrderStatus("lost")
	assert.EqualError(t, err, `invalid order status "lost"`)
}

func TestEventAggregate(t *testing.T) {
	assert.Equal(t, AggregateOrder, EventOrderShipped.Aggregate())
	assert.Equal(t, AggregateOrderGroup, EventOrderGroupPaid.Aggregate())
}
