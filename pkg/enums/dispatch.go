package enums

import "fmt"

// DispatchEventType names the outbound notification emitted for an order transition.
type DispatchEventType string

const (
	DispatchEventOrderCreated      DispatchEventType = "order.created"
	DispatchEventOrderPaid         DispatchEventType = "order.paid"
	DispatchEventOrderInProduction DispatchEventType = "order.in_production"
	DispatchEventOrderFulfilled    DispatchEventType = "order.fulfilled"
	DispatchEventOrderShipped      DispatchEventType = "order.shipped"
	DispatchEventOrderDelivered    DispatchEventType = "order.delivered"
	DispatchEventOrderFailed       DispatchEventType = "order.failed"
	DispatchEventOrderCancelled    DispatchEventType = "order.cancelled"
)

var validDispatchEventTypes = []DispatchEventType{
	DispatchEventOrderCreated,
	DispatchEventOrderPaid,
	DispatchEventOrderInProduction,
	DispatchEventOrderFulfilled,
	DispatchEventOrderShipped,
	DispatchEventOrderDelivered,
	DispatchEventOrderFailed,
	DispatchEventOrderCancelled,
}

// DispatchEventForStatus maps a committed order status to its outbound event type.
func DispatchEventForStatus(status OrderStatus) (DispatchEventType, error) {
	switch status {
	case OrderStatusCreated:
		return DispatchEventOrderCreated, nil
	case OrderStatusPaid:
		return DispatchEventOrderPaid, nil
	case OrderStatusInProduction:
		return DispatchEventOrderInProduction, nil
	case OrderStatusFulfilled:
		return DispatchEventOrderFulfilled, nil
	case OrderStatusShipped:
		return DispatchEventOrderShipped, nil
	case OrderStatusDelivered:
		return DispatchEventOrderDelivered, nil
	case OrderStatusFailed:
		return DispatchEventOrderFailed, nil
	case OrderStatusCancelled:
		return DispatchEventOrderCancelled, nil
	default:
		return "", fmt.Errorf("no dispatch event for order status %q", status)
	}
}

// IsValid reports whether the value matches the canonical dispatch event type enum.
func (d DispatchEventType) IsValid() bool {
	for _, candidate := range validDispatchEventTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDispatchEventType converts the raw string to DispatchEventType.
func ParseDispatchEventType(value string) (DispatchEventType, error) {
	for _, candidate := range validDispatchEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispatch event type %q", value)
}

// DispatchStatus tracks delivery progress for a transition notification.
type DispatchStatus string

const (
	DispatchStatusPending   DispatchStatus = "pending"
	DispatchStatusDelivered DispatchStatus = "delivered"
	DispatchStatusExhausted DispatchStatus = "delivery_exhausted"
)

var validDispatchStatuses = []DispatchStatus{
	DispatchStatusPending,
	DispatchStatusDelivered,
	DispatchStatusExhausted,
}

// IsValid reports whether the value matches the canonical dispatch status enum.
func (d DispatchStatus) IsValid() bool {
	for _, candidate := range validDispatchStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}
