// Package store encapsulates the SQLite database and all persisted state:
// users, download records, the admin roster, bot settings, and the promo
// banner. All writes are durable before the call returns.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
)

const settingForcedChannel = "forced_channel"

//go:embed init.sql
var initQuery string

// SQLite owns the database handle. It is constructed with the fixed primary
// admin identity so roster mutations can enforce its immutability.
type SQLite struct {
	db        *sql.DB
	primaryID int64
}

// NewSQLite opens (or creates) the database at filePath and applies the
// schema. primaryID is the immutable primary admin user id.
func NewSQLite(ctx context.Context, filePath string, primaryID int64) (*SQLite, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if primaryID == 0 {
		return nil, errors.New("primary admin id is required")
	}

	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite3 database: %w", err)
	}

	s := &SQLite{
		db:        db,
		primaryID: primaryID,
	}

	if _, err := db.ExecContext(ctx, initQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing sqlite3 database: %w", err)
	}

	return s, nil
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity; used by the health endpoint.
func (s *SQLite) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	return s.db.PingContext(ctx)
}

// PrimaryAdminID returns the fixed primary admin identity.
func (s *SQLite) PrimaryAdminID() int64 {
	return s.primaryID
}

// UpsertUser creates the user on first interaction and refreshes
// last_active (and any provided profile fields) on every subsequent one.
// It returns the stored user.
func (s *SQLite) UpsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.UserID == 0 {
		return domain.User{}, errors.New("user id is required")
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username, first_name, last_name, first_seen, last_active)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE
				SET last_active = excluded.last_active,
				    username = excluded.username,
				    first_name = excluded.first_name,
				    last_name = excluded.last_name`,
		user.UserID, user.Username, user.FirstName, user.LastName, now, now,
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("upserting user: %w", err)
	}

	return s.getUser(ctx, user.UserID)
}

func (s *SQLite) getUser(ctx context.Context, userID int64) (domain.User, error) {
	var user domain.User
	var username, firstName, lastName sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, first_name, last_name, first_seen, last_active, download_count
			FROM users WHERE user_id = ?`,
		userID,
	).Scan(&user.UserID, &username, &firstName, &lastName, &user.FirstSeen, &user.LastActive, &user.DownloadCount)
	if err != nil {
		return domain.User{}, fmt.Errorf("selecting user: %w", err)
	}

	user.Username = username.String
	user.FirstName = firstName.String
	user.LastName = lastName.String

	return user, nil
}

// RecordDownload inserts the immutable download record and increments the
// user's counter in a single transaction; both succeed or both fail.
func (s *SQLite) RecordDownload(ctx context.Context, rec domain.DownloadRecord) error {
	if rec.UserID == 0 {
		return errors.New("user id is required")
	}

	downloadedAt := rec.DownloadedAt
	if downloadedAt.IsZero() {
		downloadedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO downloads (user_id, kind, title, size_bytes, downloaded_at)
			VALUES (?, ?, ?, ?, ?)`,
		rec.UserID, string(rec.Kind), rec.Title, rec.SizeBytes, downloadedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting download: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET download_count = download_count + 1 WHERE user_id = ?`,
		rec.UserID,
	)
	if err != nil {
		return fmt.Errorf("incrementing download count: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("incrementing download count: user %d not found", rec.UserID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing download: %w", err)
	}

	return nil
}

// ListUserIDs returns the ids of all active users, the broadcast audience.
func (s *SQLite) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users WHERE is_active = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetForcedChannel returns the forced channel reference, or the empty
// string when no channel gating is configured.
func (s *SQLite) GetForcedChannel(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM bot_settings WHERE key = ?`, settingForcedChannel,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("selecting forced channel: %w", err)
	}

	return value, nil
}

// Settings bundles the mutable bot-wide settings for the dispatcher.
func (s *SQLite) Settings(ctx context.Context) (domain.Settings, error) {
	channel, err := s.GetForcedChannel(ctx)
	if err != nil {
		return domain.Settings{}, err
	}

	return domain.Settings{ForcedChannel: channel}, nil
}

// SetForcedChannel stores the forced channel reference, last-write-wins.
func (s *SQLite) SetForcedChannel(ctx context.Context, channelRef string) error {
	if channelRef == "" {
		return fmt.Errorf("%w: channel reference is required", domain.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingForcedChannel, channelRef,
	)
	if err != nil {
		return fmt.Errorf("setting forced channel: %w", err)
	}

	return nil
}

// ClearForcedChannel removes the forced channel; clearing an already clear
// channel is a no-op.
func (s *SQLite) ClearForcedChannel(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM bot_settings WHERE key = ?`, settingForcedChannel,
	)
	if err != nil {
		return fmt.Errorf("clearing forced channel: %w", err)
	}

	return nil
}

// GetPromo returns the active promo, or nil when none is set.
func (s *SQLite) GetPromo(ctx context.Context) (*domain.Promo, error) {
	var promo domain.Promo
	err := s.db.QueryRowContext(ctx,
		`SELECT file_id, caption, created_at FROM promos ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&promo.FileID, &promo.Caption, &promo.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting promo: %w", err)
	}

	return &promo, nil
}

// SetPromo replaces any existing promo with the given one atomically.
func (s *SQLite) SetPromo(ctx context.Context, fileID, caption string) error {
	if fileID == "" || caption == "" {
		return fmt.Errorf("%w: promo image and caption are required", domain.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM promos`); err != nil {
		return fmt.Errorf("removing previous promo: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO promos (file_id, caption, created_at) VALUES (?, ?, ?)`,
		fileID, caption, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting promo: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing promo: %w", err)
	}

	return nil
}

// ClearPromo removes the active promo; clearing an absent promo is a no-op.
func (s *SQLite) ClearPromo(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM promos`); err != nil {
		return fmt.Errorf("clearing promo: %w", err)
	}

	return nil
}

// ListAdmins returns the full admin roster, primary first.
func (s *SQLite) ListAdmins(ctx context.Context) ([]domain.AdminRole, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, tier FROM admins ORDER BY tier = 'primary' DESC, user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing admins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var roster []domain.AdminRole
	for rows.Next() {
		var role domain.AdminRole
		var tier string
		if err := rows.Scan(&role.UserID, &tier); err != nil {
			return nil, fmt.Errorf("scanning admin: %w", err)
		}
		role.Tier = domain.Tier(tier)
		roster = append(roster, role)
	}

	return roster, rows.Err()
}

// AddAdmin grants the secondary tier to userID. It fails with
// domain.ErrPrimaryImmutable for the primary identity and
// domain.ErrAlreadyAdmin when the id is already in the roster.
func (s *SQLite) AddAdmin(ctx context.Context, userID int64) error {
	if userID == 0 {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if userID == s.primaryID {
		return domain.ErrPrimaryImmutable
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (user_id, tier) VALUES (?, 'secondary')
			ON CONFLICT(user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("inserting admin: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return domain.ErrAlreadyAdmin
	}

	return nil
}

// RemoveAdmin revokes the secondary tier from userID. It fails with
// domain.ErrPrimaryImmutable for the primary identity and
// domain.ErrNotAnAdmin when the id is absent.
func (s *SQLite) RemoveAdmin(ctx context.Context, userID int64) error {
	if userID == 0 {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if userID == s.primaryID {
		return domain.ErrPrimaryImmutable
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("deleting admin: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return domain.ErrNotAnAdmin
	}

	return nil
}

// EnsureAdmin idempotently stores a roster row with the given tier. Used
// only during startup seeding; runtime mutations go through AddAdmin and
// RemoveAdmin.
func (s *SQLite) EnsureAdmin(ctx context.Context, userID int64, tier domain.Tier) error {
	if userID == 0 {
		return errors.New("user id is required")
	}
	if tier != domain.TierPrimary && tier != domain.TierSecondary {
		return fmt.Errorf("invalid admin tier %q", tier)
	}
	if (userID == s.primaryID) != (tier == domain.TierPrimary) {
		return domain.ErrPrimaryImmutable
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (user_id, tier) VALUES (?, ?)
			ON CONFLICT(user_id) DO UPDATE SET tier = excluded.tier`,
		userID, string(tier),
	)
	if err != nil {
		return fmt.Errorf("ensuring admin: %w", err)
	}

	return nil
}
