package orders

import (
	"fmt"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
)

// transitions lists every legal (current, target) pair. Terminal states have no entry.
var transitions = map[enums.OrderStatus]map[enums.OrderStatus]bool{
	enums.OrderStatusPending: {
		enums.OrderStatusConfirmed: true,
		enums.OrderStatusCancelled: true,
	},
	enums.OrderStatusConfirmed: {
		enums.OrderStatusPreparing: true,
		enums.OrderStatusCancelled: true,
	},
	enums.OrderStatusPreparing: {
		enums.OrderStatusShipped:   true,
		enums.OrderStatusCancelled: true,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusDelivered: true,
	},
}

// roleTargets lists the statuses each role may move an order into.
var roleTargets = map[enums.Role]map[enums.OrderStatus]bool{
	enums.RoleAdmin: {
		enums.OrderStatusPending:   true,
		enums.OrderStatusConfirmed: true,
		enums.OrderStatusPreparing: true,
		enums.OrderStatusShipped:   true,
		enums.OrderStatusDelivered: true,
		enums.OrderStatusCancelled: true,
	},
	enums.RolePartner: {
		enums.OrderStatusConfirmed: true,
		enums.OrderStatusPreparing: true,
		enums.OrderStatusShipped:   true,
		enums.OrderStatusDelivered: true,
	},
}

// CanTransition reports whether the table allows current -> target.
func CanTransition(current, target enums.OrderStatus) bool {
	return transitions[current][target]
}

// RoleAllows reports whether role may set target.
func RoleAllows(role enums.Role, target enums.OrderStatus) bool {
	return roleTargets[role][target]
}

// ValidateTransition applies the checks in order: shipment already started,
// not yet shipped, table membership, then role capability.
func ValidateTransition(current, target enums.OrderStatus, role enums.Role) error {
	if !target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", target))
	}
	if target == enums.OrderStatusCancelled &&
		(current == enums.OrderStatusShipped || current == enums.OrderStatusDelivered) {
		return pkgerrors.Domain(pkgerrors.ReasonShipmentAlreadyStarted,
			"order has already shipped and can no longer be cancelled")
	}
	if target == enums.OrderStatusDelivered && current != enums.OrderStatusShipped {
		return pkgerrors.Domain(pkgerrors.ReasonNotYetShipped, "order must ship before it is delivered")
	}
	if !CanTransition(current, target) {
		return pkgerrors.Domain(pkgerrors.ReasonIllegalTransition,
			fmt.Sprintf("cannot move order from %s to %s", current, target)).
			WithDetails(map[string]any{"from": current, "to": target})
	}
	if !RoleAllows(role, target) {
		return pkgerrors.Domain(pkgerrors.ReasonRoleNotPermitted,
			fmt.Sprintf("role %q may not set status %s", role, target))
	}
	return nil
}

// CustomerCancellable reports whether the customer may still cancel.
func CustomerCancellable(current enums.OrderStatus) bool {
	return current == enums.OrderStatusPending || current == enums.OrderStatusConfirmed
}
