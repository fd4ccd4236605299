package enums

import "fmt"

// MovementKind labels an inventory_movements audit row.
type MovementKind string

const (
	MovementReserve MovementKind = "reserve"
	MovementConfirm MovementKind = "confirm"
	MovementRelease MovementKind = "release"
	MovementAdjust  MovementKind = "adjust"
)

var validMovementKinds = []MovementKind{
	MovementReserve,
	MovementConfirm,
	MovementRelease,
	MovementAdjust,
}

// String implements fmt.Stringer.
func (m MovementKind) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementKind.
func (m MovementKind) IsValid() bool {
	for _, candidate := range validMovementKinds {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementKind converts raw input into a MovementKind.
func ParseMovementKind(value string) (MovementKind, error) {
	for _, candidate := range validMovementKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement kind %q", value)
}
