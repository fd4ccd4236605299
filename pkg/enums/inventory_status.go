package enums

import "fmt"

// InventoryStatus classifies a product's stock position.
type InventoryStatus string

const (
	InventoryStatusOutOfStock  InventoryStatus = "out_of_stock"
	InventoryStatusLowStock    InventoryStatus = "low_stock"
	InventoryStatusInStock     InventoryStatus = "in_stock"
	InventoryStatusOverstocked InventoryStatus = "overstocked"
)

var validInventoryStatuses = []InventoryStatus{
	InventoryStatusOutOfStock,
	InventoryStatusLowStock,
	InventoryStatusInStock,
	InventoryStatusOverstocked,
}

// String implements fmt.Stringer.
func (i InventoryStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InventoryStatus.
func (i InventoryStatus) IsValid() bool {
	for _, candidate := range validInventoryStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInventoryStatus converts raw input into a InventoryStatus.
func ParseInventoryStatus(value string) (InventoryStatus, error) {
	for _, candidate := range validInventoryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory status %q", value)
}
