// Package store persists accumulated tracking state between restarts so
// a fresh process can warm-start from the last known snapshot.
package store

import (
	"context"

	"github.com/nhle/mailtrack/internal/model"
)

// Store defines the snapshot persistence interface.
type Store interface {
	// SaveSnapshot records the state as the newest snapshot.
	SaveSnapshot(ctx context.Context, state model.MailState) error

	// LatestSnapshot returns the most recent snapshot, or nil when none
	// has been saved yet.
	LatestSnapshot(ctx context.Context) (*model.MailState, error)

	Close() error
}
