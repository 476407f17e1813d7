package orders

import (
	"fmt"

	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
)

// Trigger names the lifecycle event that moves an order between states.
type Trigger string

const (
	TriggerPaymentSucceeded     Trigger = "payment_succeeded"
	TriggerPaymentFailed        Trigger = "payment_failed"
	TriggerCancel               Trigger = "cancel"
	TriggerProductionStarted    Trigger = "production_started"
	TriggerFulfillmentCompleted Trigger = "fulfillment_completed"
	TriggerShipped              Trigger = "shipped"
	TriggerDelivered            Trigger = "delivered"
)

type transitionRule struct {
	from    enums.OrderStatus
	trigger Trigger
	to      enums.OrderStatus
}

// The full lifecycle lives in this table and nowhere else. Terminal states
// have no outgoing entries, so they reject every trigger.
var transitionRules = []transitionRule{
	{enums.OrderStatusCreated, TriggerPaymentSucceeded, enums.OrderStatusPaid},
	{enums.OrderStatusCreated, TriggerPaymentFailed, enums.OrderStatusFailed},
	{enums.OrderStatusCreated, TriggerCancel, enums.OrderStatusCancelled},
	{enums.OrderStatusPaid, TriggerProductionStarted, enums.OrderStatusInProduction},
	{enums.OrderStatusInProduction, TriggerFulfillmentCompleted, enums.OrderStatusFulfilled},
	{enums.OrderStatusInProduction, TriggerShipped, enums.OrderStatusShipped},
	{enums.OrderStatusFulfilled, TriggerShipped, enums.OrderStatusShipped},
	{enums.OrderStatusShipped, TriggerDelivered, enums.OrderStatusDelivered},
}

// Next resolves the state a trigger moves an order to. Triggers that do not
// apply to the current state return StateConflict and change nothing.
func Next(current enums.OrderStatus, trigger Trigger) (enums.OrderStatus, error) {
	for _, rule := range transitionRules {
		if rule.from == current && rule.trigger == trigger {
			return rule.to, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("trigger %q not allowed in state %q", trigger, current))
}

// CanTrigger reports whether the trigger applies in the current state.
func CanTrigger(current enums.OrderStatus, trigger Trigger) bool {
	_, err := Next(current, trigger)
	return err == nil
}
