package models

import "time"

// Session describes one connection to the state channel. It starts
// unauthenticated and is discarded when the connection closes.
type Session struct {
	ID            string    `json:"id"`
	Authenticated bool      `json:"authenticated"`
	UserID        string    `json:"user_id,omitempty"`
	RemoteAddr    string    `json:"remote_addr,omitempty"`
	ConnectedAt   time.Time `json:"connected_at"`
}
