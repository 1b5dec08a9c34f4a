package models

import "time"

// Session is the server-side record behind a session cookie. ID is the
// token's jti claim.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}
