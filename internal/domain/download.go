package domain

import "time"

// MediaKind distinguishes audio and video downloads.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// DownloadRecord is an immutable record of one completed download, kept
// for aggregate statistics only.
type DownloadRecord struct {
	ID           int64
	UserID       int64
	Kind         MediaKind
	Title        string
	SizeBytes    int64
	DownloadedAt time.Time
}

// DownloadStats aggregates the downloads table for /stats.
type DownloadStats struct {
	Total  int64
	Today  int64
	ByKind map[MediaKind]int64
}

// UserStats aggregates the users table for /users.
type UserStats struct {
	Total  int64
	Active int64
}
