package enums

// OrderGroupStatus mirrors the order_group_status enum in Postgres.
type OrderGroupStatus string

const (
	OrderGroupStatusPending         OrderGroupStatus = "pending"
	OrderGroupStatusAwaitingPayment OrderGroupStatus = "awaiting_payment"
	OrderGroupStatusPaid            OrderGroupStatus = "paid"
	OrderGroupStatusCancelled       OrderGroupStatus = "cancelled"
	OrderGroupStatusRefunded        OrderGroupStatus = "refunded"
)

var orderGroupStatuses = []OrderGroupStatus{
	OrderGroupStatusPending,
	OrderGroupStatusAwaitingPayment,
	OrderGroupStatusPaid,
	OrderGroupStatusCancelled,
	OrderGroupStatusRefunded,
}

func (s OrderGroupStatus) String() string { return string(s) }

func (s OrderGroupStatus) IsValid() bool { return member(orderGroupStatuses, s) }

// IsTerminal reports whether no further payment transition is expected.
func (s OrderGroupStatus) IsTerminal() bool {
	switch s {
	case OrderGroupStatusPaid, OrderGroupStatusCancelled, OrderGroupStatusRefunded:
		return true
	}
	return false
}

func ParseOrderGroupStatus(value string) (OrderGroupStatus, error) {
	return parse(orderGroupStatuses, "order group status", value)
}
