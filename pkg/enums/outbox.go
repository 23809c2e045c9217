package enums

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrderGroup OutboxAggregateType = "order_group"
	AggregateOrder      OutboxAggregateType = "order"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrderGroup, AggregateOrder}

func (a OutboxAggregateType) IsValid() bool { return member(aggregateTypes, a) }

// OutboxEventType maps to the event_type column of outbox_events and is copied
// into the event_type attribute of every published message.
type OutboxEventType string

const (
	EventOrderGroupAwaitingPayment OutboxEventType = "order_group.awaiting_payment"
	EventOrderGroupPaid            OutboxEventType = "order_group.paid"
	EventOrderGroupCancelled       OutboxEventType = "order_group.cancelled"
	EventOrderShipped              OutboxEventType = "order.shipped"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderGroupAwaitingPayment,
	EventOrderGroupPaid,
	EventOrderGroupCancelled,
	EventOrderShipped,
}

func (e OutboxEventType) IsValid() bool { return member(outboxEventTypes, e) }

// Aggregate returns the aggregate type an event of this kind is keyed on.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	if e == EventOrderShipped {
		return AggregateOrder
	}
	return AggregateOrderGroup
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(outboxEventTypes, "outbox event type", value)
}
