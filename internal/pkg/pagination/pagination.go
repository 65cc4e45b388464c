package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrInvalidCursor = errors.New("invalid cursor")
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// SortOrder represents sort direction
type SortOrder string

const (
	ASC  SortOrder = "ASC"
	DESC SortOrder = "DESC"
)

// Cursor is the keyset position after the last returned row.
type Cursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Encode encodes cursor to base64 string
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor decodes base64 string to Cursor. An empty string is the first page.
func DecodeCursor(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil || cursor.ID == "" {
		return nil, ErrInvalidCursor
	}

	return &cursor, nil
}

// CursorRequest represents cursor-based pagination request
type CursorRequest struct {
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// CursorResponse represents cursor-based pagination response
type CursorResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// NewCursorRequest creates a new cursor request with defaults
func NewCursorRequest(cursor string, limit int) *CursorRequest {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	return &CursorRequest{Cursor: cursor, Limit: limit}
}

// GetLimit returns validated limit
func (r *CursorRequest) GetLimit() int {
	if r.Limit <= 0 || r.Limit > MaxLimit {
		return DefaultLimit
	}
	return r.Limit
}

// GetFetchLimit returns limit+1 for checking hasMore
func (r *CursorRequest) GetFetchLimit() int {
	return r.GetLimit() + 1
}

// DecodedCursor returns the decoded cursor
func (r *CursorRequest) DecodedCursor() (*Cursor, error) {
	return DecodeCursor(r.Cursor)
}

// BuildCursorResponse trims the extra fetched row and sets the next cursor.
func BuildCursorResponse[T any](items []T, limit int, cursorBuilder func(T) *Cursor) *CursorResponse[T] {
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	if items == nil {
		items = []T{}
	}

	resp := &CursorResponse[T]{
		Items:   items,
		HasMore: hasMore,
	}

	if len(items) > 0 && hasMore {
		resp.NextCursor = cursorBuilder(items[len(items)-1]).Encode()
	}

	return resp
}

// SQLCursorCondition generates the keyset WHERE condition over (sortField, id)
// with placeholders starting at $first.
func SQLCursorCondition(sortField string, order SortOrder, first int) string {
	op := "<"
	if order == ASC {
		op = ">"
	}
	return fmt.Sprintf("(%s, id) %s ($%d, $%d)", sortField, op, first, first+1)
}

// SQLOrderBy generates ORDER BY clause
func SQLOrderBy(sortField string, order SortOrder) string {
	return fmt.Sprintf("%s %s, id %s", sortField, order, order)
}
