package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving release events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, releaseID, eventType string, payload []byte, metadata map[string]string) error

	// GetByReleaseID retrieves all events for a specific release, oldest first.
	GetByReleaseID(ctx context.Context, releaseID string) ([]Event, error)

	// GetRange retrieves events within a time range, oldest first.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Recent retrieves the latest events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}
