package store

import (
	"context"
	"fmt"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
)

// CountUsers returns total and active user counts for /users.
func (s *SQLite) CountUsers(ctx context.Context) (domain.UserStats, error) {
	var stats domain.UserStats

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.Total)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("counting users: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_active = 1`).Scan(&stats.Active)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("counting active users: %w", err)
	}

	return stats, nil
}

// DownloadStats aggregates the downloads table for /stats.
func (s *SQLite) DownloadStats(ctx context.Context) (domain.DownloadStats, error) {
	stats := domain.DownloadStats{
		ByKind: make(map[domain.MediaKind]int64),
	}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads`).Scan(&stats.Total)
	if err != nil {
		return domain.DownloadStats{}, fmt.Errorf("counting downloads: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM downloads WHERE DATE(downloaded_at) = DATE('now')`,
	).Scan(&stats.Today)
	if err != nil {
		return domain.DownloadStats{}, fmt.Errorf("counting today's downloads: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM downloads GROUP BY kind`)
	if err != nil {
		return domain.DownloadStats{}, fmt.Errorf("counting downloads by kind: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return domain.DownloadStats{}, fmt.Errorf("scanning download kind: %w", err)
		}
		stats.ByKind[domain.MediaKind(kind)] = count
	}

	return stats, rows.Err()
}
