// Package store: SQLite-backed session store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// Constants for SQLite store configuration.
const (
	// DefaultDirPermissions defines the default permissions for database directories.
	DefaultDirPermissions = 0755
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pending_images (
	user_id    TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL
);
`

// SQLiteStore persists pending images in an SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite session store ready", "dsn", dsn)

	return &SQLiteStore{db: db}, nil
}

// GetPendingImage returns the pending image for a user. Expired rows are
// treated as absent and lazily purged.
func (s *SQLiteStore) GetPendingImage(ctx context.Context, userID string) (*models.PendingImage, error) {
	var payload string
	var createdAt, expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at, expires_at FROM pending_images WHERE user_id = ?`, userID).
		Scan(&payload, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetPendingImage: not found", "user_id", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetPendingImage failed", "error", err, "user_id", userID)
		return nil, &models.StoreError{Op: "get", Err: err}
	}

	if time.Now().After(expiresAt) {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM pending_images WHERE user_id = ? AND expires_at <= ?`, userID, time.Now()); err != nil {
			slog.Warn("SQLiteStore.GetPendingImage: failed to purge expired row", "error", err, "user_id", userID)
		}
		slog.Debug("SQLiteStore.GetPendingImage: expired", "user_id", userID)
		return nil, nil
	}

	slog.Debug("SQLiteStore.GetPendingImage: found", "user_id", userID, "created_at", createdAt)
	return &models.PendingImage{UserID: userID, Base64Payload: payload, CreatedAt: createdAt}, nil
}

// SetPendingImage stores a pending image, replacing any existing one.
func (s *SQLiteStore) SetPendingImage(ctx context.Context, userID, base64Payload string, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pending_images (user_id, payload, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		userID, base64Payload, now, now.Add(ttl))
	if err != nil {
		slog.Error("SQLiteStore.SetPendingImage failed", "error", err, "user_id", userID)
		return &models.StoreError{Op: "set", Err: err}
	}
	slog.Debug("SQLiteStore.SetPendingImage succeeded", "user_id", userID, "ttl", ttl)
	return nil
}

// DeletePendingImage removes the pending image for a user.
func (s *SQLiteStore) DeletePendingImage(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_images WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore.DeletePendingImage failed", "error", err, "user_id", userID)
		return &models.StoreError{Op: "delete", Err: err}
	}
	slog.Debug("SQLiteStore.DeletePendingImage succeeded", "user_id", userID)
	return nil
}

// CountPendingImages returns the number of unexpired pending images.
func (s *SQLiteStore) CountPendingImages(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_images WHERE expires_at > ?`, time.Now()).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore.CountPendingImages failed", "error", err)
		return 0, &models.StoreError{Op: "count", Err: err}
	}
	return count, nil
}

// PurgeExpired removes expired pending image rows.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_images WHERE expires_at <= ?`, time.Now())
	if err != nil {
		slog.Error("SQLiteStore.PurgeExpired failed", "error", err)
		return 0, &models.StoreError{Op: "purge", Err: err}
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if purged > 0 {
		slog.Debug("SQLiteStore.PurgeExpired: removed expired rows", "count", purged)
	}
	return int(purged), nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
