package domain

// forcedPaymentStatuses maps order statuses that imply a payment state. For
// statuses absent from the map the payment status stays caller-controlled.
var forcedPaymentStatuses = map[OrderStatus]PaymentStatus{
	OrderStatusPaid:      PaymentStatusPaid,
	OrderStatusFulfilled: PaymentStatusPaid,
	OrderStatusDelivered: PaymentStatusPaid,
	OrderStatusCancelled: PaymentStatusRefunded,
	OrderStatusRefunded:  PaymentStatusRefunded,
}

// ForcedPaymentStatus returns the payment status implied by an order status.
// The forced value silently overrides any caller-supplied payment status.
func ForcedPaymentStatus(status OrderStatus) (PaymentStatus, bool) {
	forced, ok := forcedPaymentStatuses[status]
	return forced, ok
}

// settledStatuses is the canonical settled set, applied uniformly to the
// payment synchroniser and the transaction side-effect trigger.
var settledStatuses = map[OrderStatus]struct{}{
	OrderStatusPaid:      {},
	OrderStatusFulfilled: {},
	OrderStatusDelivered: {},
}

// IsSettled reports whether an order status marks payment as complete.
func IsSettled(status OrderStatus) bool {
	_, ok := settledStatuses[status]
	return ok
}

// SyncPaymentStatus applies the forced payment implication to an order in
// place, returning true when the payment status changed.
func SyncPaymentStatus(order *Order) bool {
	forced, ok := ForcedPaymentStatus(order.Status)
	if !ok || order.PaymentStatus == forced {
		return false
	}
	order.PaymentStatus = forced
	return true
}

// ClientMutableStatuses are the order states during which a client may still
// update or delete their own order. Admin access is never restricted by state.
var ClientMutableStatuses = map[OrderStatus]struct{}{
	OrderStatusCreated:    {},
	OrderStatusProcessing: {},
}

// IsClientMutable reports whether a client retains write access at this status.
func IsClientMutable(status OrderStatus) bool {
	_, ok := ClientMutableStatuses[status]
	return ok
}
