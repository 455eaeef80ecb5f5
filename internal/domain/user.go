package domain

import "time"

// User represents a Telegram user registered with the bot. Users are
// created on first interaction and never deleted.
type User struct {
	UserID        int64
	Username      string
	FirstName     string
	LastName      string
	FirstSeen     time.Time
	LastActive    time.Time
	DownloadCount int64
}

// AdminRole binds a user id to an admin tier. A user id appears at most
// once in the roster.
type AdminRole struct {
	UserID int64
	Tier   Tier
}
