package enums

import "fmt"

// OrderStatus describes the allowed values for the `status` column in orders.
type OrderStatus string

const (
	OrderStatusCreated      OrderStatus = "created"
	OrderStatusPaid         OrderStatus = "paid"
	OrderStatusInProduction OrderStatus = "in_production"
	OrderStatusFulfilled    OrderStatus = "fulfilled"
	OrderStatusShipped      OrderStatus = "shipped"
	OrderStatusDelivered    OrderStatus = "delivered"
	OrderStatusFailed       OrderStatus = "failed"
	OrderStatusCancelled    OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusPaid,
	OrderStatusInProduction,
	OrderStatusFulfilled,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusFailed,
	OrderStatusCancelled,
}

// IsValid reports whether the value matches the canonical order status enum.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are accepted from the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusFailed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts the raw string to OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
