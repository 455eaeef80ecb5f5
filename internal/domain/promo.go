package domain

import "time"

// Promo is the single promotional banner appended to replies after
// successful downloads. At most one promo is active at a time.
type Promo struct {
	FileID    string
	Caption   string
	CreatedAt time.Time
}

// Settings holds the mutable bot-wide settings. ForcedChannel is empty
// when no channel gating is configured.
type Settings struct {
	ForcedChannel string
}
