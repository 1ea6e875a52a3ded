package postgres

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// listCursor orders keyset pagination by (created_at DESC, id DESC).
type listCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

func encodeCursor(cursor listCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

func decodeCursor(token string) (listCursor, bool, error) {
	if token == "" {
		return listCursor{}, false, nil
	}
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return listCursor{}, false, fmt.Errorf("decode page token: %w", err)
	}
	var cursor listCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return listCursor{}, false, fmt.Errorf("decode page token: %w", err)
	}
	return cursor, true, nil
}

func normalisePageSize(size int) int {
	if size <= 0 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}
