// Package store provides session storage backends for the nutrition bot.
//
// The session store holds at most one pending image per user, with a TTL.
// It includes an in-memory store plus SQLite and PostgreSQL backends. All
// backends share the degraded-mode contract: callers treat any error as
// "no pending image" rather than failing the turn.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// Store defines the pending-image session operations.
//
// No locking is provided across operations: two near-simultaneous turns for
// the same user may both observe the same pending image and both delete it.
// That duplicate-processing hazard is accepted (last write wins).
type Store interface {
	// GetPendingImage returns the pending image for a user, or nil if none
	// exists or it has expired.
	GetPendingImage(ctx context.Context, userID string) (*models.PendingImage, error)

	// SetPendingImage stores a pending image for a user, replacing any
	// existing one, with the given time-to-live.
	SetPendingImage(ctx context.Context, userID, base64Payload string, ttl time.Duration) error

	// DeletePendingImage removes the pending image for a user. Deleting an
	// absent record is not an error.
	DeletePendingImage(ctx context.Context, userID string) error

	// CountPendingImages returns the number of unexpired pending images.
	// Used as a health indicator.
	CountPendingImages(ctx context.Context) (int, error)

	// PurgeExpired removes expired pending images and returns how many were
	// removed. Expiry is also enforced lazily on read; this sweep keeps
	// never-read rows from accumulating.
	PurgeExpired(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithSQLiteDSN configures an SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType determines whether a DSN refers to PostgreSQL or SQLite.
// PostgreSQL DSNs use URL schemes or key=value connection strings; anything
// else is treated as an SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
