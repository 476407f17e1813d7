package enums

import "fmt"

// PaymentEventType classifies inbound gateway notifications.
type PaymentEventType string

const (
	PaymentEventTypeSucceeded PaymentEventType = "payment_succeeded"
	PaymentEventTypeFailed    PaymentEventType = "payment_failed"
	PaymentEventTypeOther     PaymentEventType = "other"
)

var validPaymentEventTypes = []PaymentEventType{
	PaymentEventTypeSucceeded,
	PaymentEventTypeFailed,
	PaymentEventTypeOther,
}

// IsValid reports whether the value matches the canonical payment event type enum.
func (p PaymentEventType) IsValid() bool {
	for _, candidate := range validPaymentEventTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentEventType converts the raw string to PaymentEventType.
func ParsePaymentEventType(value string) (PaymentEventType, error) {
	for _, candidate := range validPaymentEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment event type %q", value)
}

// PaymentEventStatus tracks whether a received gateway event has been applied.
type PaymentEventStatus string

const (
	PaymentEventStatusMatched  PaymentEventStatus = "matched"
	PaymentEventStatusPending  PaymentEventStatus = "pending"
	PaymentEventStatusOrphaned PaymentEventStatus = "orphaned"
)

var validPaymentEventStatuses = []PaymentEventStatus{
	PaymentEventStatusMatched,
	PaymentEventStatusPending,
	PaymentEventStatusOrphaned,
}

// IsValid reports whether the value matches the canonical payment event status enum.
func (p PaymentEventStatus) IsValid() bool {
	for _, candidate := range validPaymentEventStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}
