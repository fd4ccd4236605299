package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	orderNumberPrefix = "ORD"
	orderSuffixLength = 6
)

// NewOrderNumber returns ORD-YYYYMMDD-XXXXXX using the UTC date and a random suffix.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:orderSuffixLength]
	return orderNumberPrefix + "-" + now.UTC().Format("20060102") + "-" + suffix
}
