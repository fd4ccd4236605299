package errors

import stdErrors "errors"

// Reason names a caller-visible domain failure of the order and inventory engine.
type Reason string

const (
	ReasonInsufficientStock       Reason = "INSUFFICIENT_STOCK"
	ReasonNegativeStock           Reason = "NEGATIVE_STOCK"
	ReasonNotReserved             Reason = "NOT_RESERVED"
	ReasonIllegalTransition       Reason = "ILLEGAL_TRANSITION"
	ReasonShipmentAlreadyStarted  Reason = "SHIPMENT_ALREADY_STARTED"
	ReasonNotYetShipped           Reason = "NOT_YET_SHIPPED"
	ReasonNotCancellable          Reason = "NOT_CANCELLABLE"
	ReasonNotOwner                Reason = "NOT_OWNER"
	ReasonRoleNotPermitted        Reason = "ROLE_NOT_PERMITTED"
	ReasonOrderNotFound           Reason = "ORDER_NOT_FOUND"
	ReasonAlreadyPaid             Reason = "ALREADY_PAID"
	ReasonStockConfirmationFailed Reason = "STOCK_CONFIRMATION_FAILED"
	ReasonInventoryContention     Reason = "INVENTORY_CONTENTION"
	ReasonProductNotFound         Reason = "PRODUCT_NOT_FOUND"
	ReasonInvalidSignature        Reason = "INVALID_SIGNATURE"
)

var codeByReason = map[Reason]Code{
	ReasonInsufficientStock:       CodeStateConflict,
	ReasonNegativeStock:           CodeStateConflict,
	ReasonNotReserved:             CodeStateConflict,
	ReasonIllegalTransition:       CodeStateConflict,
	ReasonShipmentAlreadyStarted:  CodeStateConflict,
	ReasonNotYetShipped:           CodeStateConflict,
	ReasonNotCancellable:          CodeStateConflict,
	ReasonNotOwner:                CodeForbidden,
	ReasonRoleNotPermitted:        CodeForbidden,
	ReasonOrderNotFound:           CodeNotFound,
	ReasonAlreadyPaid:             CodeConflict,
	ReasonStockConfirmationFailed: CodeStateConflict,
	ReasonInventoryContention:     CodeDependency,
	ReasonProductNotFound:         CodeNotFound,
	ReasonInvalidSignature:        CodeUnauthorized,
}

// CodeForReason returns the transport code a reason maps to.
func CodeForReason(reason Reason) Code {
	if code, ok := codeByReason[reason]; ok {
		return code
	}
	return CodeInternal
}

// Domain builds an error carrying both the reason and its mapped code.
func Domain(reason Reason, message string) *Error {
	return New(CodeForReason(reason), message).WithReason(reason)
}

// WrapDomain is Domain with a cause.
func WrapDomain(reason Reason, err error, message string) *Error {
	return Wrap(CodeForReason(reason), err, message).WithReason(reason)
}

// IsReason reports whether any coded error in err's chain carries reason.
func IsReason(err error, reason Reason) bool {
	for err != nil {
		var typed *Error
		if !stdErrors.As(err, &typed) {
			return false
		}
		if typed.reason == reason {
			return true
		}
		err = typed.cause
	}
	return false
}

// IsCode reports whether the outermost coded error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
