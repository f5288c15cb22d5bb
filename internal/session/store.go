package session

import (
	"context"
	"errors"
)

// Slice keys. Each is an independent idempotent overwrite; a crash between
// two writes leaves persisted state partially updated, which is acceptable
// because slices never reference each other transactionally.
const (
	keyUnlocked        = "unlocked"
	keyEmail           = "email"
	keyResume          = "resume"
	keyJob             = "job"
	keyLastAnalysis    = "last_analysis"
	keyHistory         = "history"
	keyApplications    = "applications"
	keyVersions        = "versions"
	keyActiveVersion   = "active_version"
	keyTheme           = "theme"
	keyLastSeenVersion = "last_seen_version"
)

// ErrNotFound is returned by Store.Load when a slice has never been saved.
var ErrNotFound = errors.New("session: state slice not found")

// Store persists per-profile state slices as opaque JSON payloads, mirroring
// the browser's local key-value store.
type Store interface {
	Load(ctx context.Context, profileID, key string) ([]byte, error)
	Save(ctx context.Context, profileID, key string, value []byte) error
	Delete(ctx context.Context, profileID, key string) error
	Reset(ctx context.Context, profileID string) error
}
