// Package store: PostgreSQL-backed session store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS pending_images (
	user_id    TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
`

// PostgresStore persists pending images in a PostgreSQL database, for
// deployments where several bot instances share one session store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL session store ready")

	return &PostgresStore{db: db}, nil
}

// GetPendingImage returns the pending image for a user. Expired rows are
// treated as absent and lazily purged.
func (s *PostgresStore) GetPendingImage(ctx context.Context, userID string) (*models.PendingImage, error) {
	var payload string
	var createdAt, expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at, expires_at FROM pending_images WHERE user_id = $1`, userID).
		Scan(&payload, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.GetPendingImage: not found", "user_id", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetPendingImage failed", "error", err, "user_id", userID)
		return nil, &models.StoreError{Op: "get", Err: err}
	}

	if time.Now().After(expiresAt) {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM pending_images WHERE user_id = $1 AND expires_at <= $2`, userID, time.Now()); err != nil {
			slog.Warn("PostgresStore.GetPendingImage: failed to purge expired row", "error", err, "user_id", userID)
		}
		slog.Debug("PostgresStore.GetPendingImage: expired", "user_id", userID)
		return nil, nil
	}

	slog.Debug("PostgresStore.GetPendingImage: found", "user_id", userID, "created_at", createdAt)
	return &models.PendingImage{UserID: userID, Base64Payload: payload, CreatedAt: createdAt}, nil
}

// SetPendingImage stores a pending image, replacing any existing one.
func (s *PostgresStore) SetPendingImage(ctx context.Context, userID, base64Payload string, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_images (user_id, payload, created_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET payload = $2, created_at = $3, expires_at = $4`,
		userID, base64Payload, now, now.Add(ttl))
	if err != nil {
		slog.Error("PostgresStore.SetPendingImage failed", "error", err, "user_id", userID)
		return &models.StoreError{Op: "set", Err: err}
	}
	slog.Debug("PostgresStore.SetPendingImage succeeded", "user_id", userID, "ttl", ttl)
	return nil
}

// DeletePendingImage removes the pending image for a user.
func (s *PostgresStore) DeletePendingImage(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_images WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore.DeletePendingImage failed", "error", err, "user_id", userID)
		return &models.StoreError{Op: "delete", Err: err}
	}
	slog.Debug("PostgresStore.DeletePendingImage succeeded", "user_id", userID)
	return nil
}

// CountPendingImages returns the number of unexpired pending images.
func (s *PostgresStore) CountPendingImages(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_images WHERE expires_at > $1`, time.Now()).Scan(&count)
	if err != nil {
		slog.Error("PostgresStore.CountPendingImages failed", "error", err)
		return 0, &models.StoreError{Op: "count", Err: err}
	}
	return count, nil
}

// PurgeExpired removes expired pending image rows.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_images WHERE expires_at <= $1`, time.Now())
	if err != nil {
		slog.Error("PostgresStore.PurgeExpired failed", "error", err)
		return 0, &models.StoreError{Op: "purge", Err: err}
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if purged > 0 {
		slog.Debug("PostgresStore.PurgeExpired: removed expired rows", "count", purged)
	}
	return int(purged), nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
