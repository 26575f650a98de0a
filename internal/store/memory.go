package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// pendingEntry is an in-memory pending image with its expiry deadline.
type pendingEntry struct {
	payload   string
	createdAt time.Time
	expiresAt time.Time
}

// InMemoryStore is a mutex-guarded map store. It is the fallback backend
// when no database DSN is configured; state does not survive a restart.
type InMemoryStore struct {
	mu      sync.RWMutex
	pending map[string]pendingEntry
}

// NewInMemoryStore creates a new in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{pending: make(map[string]pendingEntry)}
}

// GetPendingImage returns the pending image for a user, treating expired
// entries as absent and removing them.
func (s *InMemoryStore) GetPendingImage(ctx context.Context, userID string) (*models.PendingImage, error) {
	s.mu.RLock()
	entry, ok := s.pending[userID]
	s.mu.RUnlock()

	if !ok {
		slog.Debug("InMemoryStore.GetPendingImage: not found", "user_id", userID)
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; a newer image may have arrived.
		if cur, ok := s.pending[userID]; ok && time.Now().After(cur.expiresAt) {
			delete(s.pending, userID)
		}
		s.mu.Unlock()
		slog.Debug("InMemoryStore.GetPendingImage: expired", "user_id", userID)
		return nil, nil
	}

	slog.Debug("InMemoryStore.GetPendingImage: found", "user_id", userID, "created_at", entry.createdAt)
	return &models.PendingImage{UserID: userID, Base64Payload: entry.payload, CreatedAt: entry.createdAt}, nil
}

// SetPendingImage stores a pending image, replacing any existing one.
func (s *InMemoryStore) SetPendingImage(ctx context.Context, userID, base64Payload string, ttl time.Duration) error {
	now := time.Now()
	s.mu.Lock()
	s.pending[userID] = pendingEntry{payload: base64Payload, createdAt: now, expiresAt: now.Add(ttl)}
	s.mu.Unlock()
	slog.Debug("InMemoryStore.SetPendingImage: stored", "user_id", userID, "ttl", ttl, "payload_length", len(base64Payload))
	return nil
}

// DeletePendingImage removes the pending image for a user.
func (s *InMemoryStore) DeletePendingImage(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.pending, userID)
	s.mu.Unlock()
	slog.Debug("InMemoryStore.DeletePendingImage: deleted", "user_id", userID)
	return nil
}

// CountPendingImages returns the number of unexpired pending images.
func (s *InMemoryStore) CountPendingImages(ctx context.Context) (int, error) {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, entry := range s.pending {
		if now.Before(entry.expiresAt) {
			count++
		}
	}
	return count, nil
}

// PurgeExpired removes expired pending images.
func (s *InMemoryStore) PurgeExpired(ctx context.Context) (int, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for userID, entry := range s.pending {
		if now.After(entry.expiresAt) {
			delete(s.pending, userID)
			purged++
		}
	}
	if purged > 0 {
		slog.Debug("InMemoryStore.PurgeExpired: removed expired entries", "count", purged)
	}
	return purged, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
