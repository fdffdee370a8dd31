package chat

import "time"

// Session captures a transient anonymous conversation. It lives for one
// widget mount and is never persisted.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
