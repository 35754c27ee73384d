// Package lock grants exclusive edit rights on a document to one user at a time.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/gogotex/gogotex/backend/collab-service/internal/clock"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/logger"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/metrics"
)

// Store performs the compare-and-set on a document's lock fields.
type Store interface {
	AcquireLock(ctx context.Context, id, userID string, now time.Time, expiresAt *time.Time) (bool, error)
	ReleaseLock(ctx context.Context, id, userID string) (bool, error)
}

// Manager hands out document locks. A zero TTL means locks never expire.
type Manager struct {
	store Store
	clock clock.Clock
	ttl   time.Duration
}

func NewManager(store Store, c clock.Clock, ttl time.Duration) *Manager {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Manager{store: store, clock: c, ttl: ttl}
}

// TTL returns the configured lease length.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Acquire takes the lock for userID. It returns false without changing
// anything when the document is already locked, including by userID.
func (m *Manager) Acquire(ctx context.Context, documentID, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: user id required", document.ErrInvalidInput)
	}
	now := m.clock.Now()
	var expiresAt *time.Time
	if m.ttl > 0 {
		t := now.Add(m.ttl)
		expiresAt = &t
	}
	ok, err := m.store.AcquireLock(ctx, documentID, userID, now, expiresAt)
	if err != nil {
		return false, fmt.Errorf("acquire lock on %s: %w", documentID, err)
	}
	result := "contended"
	if ok {
		result = "acquired"
	}
	metrics.LockAcquire.WithLabelValues(result).Inc()
	log := logger.Component("lock")
	log.Debug().Str("document", documentID).Str("user", userID).Str("result", result).Msg("acquire")
	return ok, nil
}

// Release clears the lock when userID holds it and returns false otherwise.
func (m *Manager) Release(ctx context.Context, documentID, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: user id required", document.ErrInvalidInput)
	}
	ok, err := m.store.ReleaseLock(ctx, documentID, userID)
	if err != nil {
		return false, fmt.Errorf("release lock on %s: %w", documentID, err)
	}
	result := "rejected"
	if ok {
		result = "released"
	}
	metrics.LockRelease.WithLabelValues(result).Inc()
	log := logger.Component("lock")
	log.Debug().Str("document", documentID).Str("user", userID).Str("result", result).Msg("release")
	return ok, nil
}
