package model

import "time"

// SessionData is the persisted form of a browser session. The session id
// itself is never stored, only its hash.
type SessionData struct {
	IDHash    string
	UserID    int64
	Name      string
	Picture   string
	CSRFToken string
	Flashes   []string
	CreatedAt time.Time
	ExpiresAt time.Time
}
