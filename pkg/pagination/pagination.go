package pagination

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size used when a caller omits one.
	DefaultLimit = 25
	// MaxLimit caps how many rows one cursor query returns.
	MaxLimit = 100
)

// Params carries cursor pagination inputs from controllers into services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the keyset position: the last row's creation time and id.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// FromQuery reads limit and cursor from query values. A malformed limit is
// reported; an absent one falls back to DefaultLimit.
func FromQuery(values url.Values) (Params, error) {
	params := Params{Cursor: strings.TrimSpace(values.Get("cursor"))}
	raw := strings.TrimSpace(values.Get("limit"))
	if raw == "" {
		params.Limit = DefaultLimit
		return params, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return Params{}, fmt.Errorf("limit must be a non-negative integer")
	}
	params.Limit = NormalizeLimit(limit)
	return params, nil
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer is the normalized limit plus one row used to detect a next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor renders the cursor as a query-safe token.
func EncodeCursor(cursor Cursor) string {
	payload := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a token from EncodeCursor. An empty token yields nil.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	created, id, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: t, ID: parsed}, nil
}

// Page slices a buffered result set down to the requested limit and reports
// the cursor of the last kept row when more rows exist.
func Page[T any](rows []T, limit int, cursorOf func(T) Cursor) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, EncodeCursor(cursorOf(rows[len(rows)-1]))
}
