package models

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusAccepted OrderStatus = "accepted"
	OrderStatusRejected OrderStatus = "rejected"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusRejected:
		return true
	}
	return false
}

// validNext encodes the order state machine. Both accepted and rejected
// are terminal except for the accepted->rejected reversal; a rejected
// order can never become accepted.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:  {OrderStatusAccepted: true, OrderStatusRejected: true},
	OrderStatusAccepted: {OrderStatusRejected: true},
	OrderStatusRejected: {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

type PaymentStatus string

const (
	PaymentStatusNotPaid       PaymentStatus = "not_paid"
	PaymentStatusPartiallyPaid PaymentStatus = "partially_paid"
	PaymentStatusPaid          PaymentStatus = "paid"
)
