package store

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"time"

	"github.com/safar/koloa-ledger/internal/ledger"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type CursorPage struct {
	Items      interface{} `json:"items"`
	NextCursor string      `json:"nextCursor,omitempty"`
	HasMore    bool        `json:"hasMore"`
}

type OffsetPage struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

func NewOffsetPage(items interface{}, total int64, page, pageSize int) *OffsetPage {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &OffsetPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// ClampPageSize maps missing or out-of-range sizes to DefaultPageSize.
func ClampPageSize(size int) int {
	if size < 1 || size > MaxPageSize {
		return DefaultPageSize
	}
	return size
}

type OrderCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        int64     `json:"id"`
}

// firstPage sorts after every stored order.
var firstPage = OrderCursor{
	CreatedAt: time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC),
	ID:        math.MaxInt64,
}

func EncodeCursor(cursor OrderCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

func DecodeCursor(encoded string) (OrderCursor, error) {
	if encoded == "" {
		return firstPage, nil
	}

	var cursor OrderCursor
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return cursor, ledger.Validationf("invalid cursor")
	}

	if err := json.Unmarshal(data, &cursor); err != nil {
		return cursor, ledger.Validationf("invalid cursor")
	}
	return cursor, nil
}
