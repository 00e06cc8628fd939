// Package store persists the update cursor (and optional bot records)
// across process restarts.
package store

// CursorStore holds the sequence number of the last update handed off
// to dispatch. Load returns 0 when no usable value exists, which the
// bot treats as "start from the latest available update".
type CursorStore interface {
	// Load returns the persisted cursor, or 0 if none exists.
	Load() (int64, error)
	// Save durably stores the cursor. Implementations must never leave
	// a previously stored value corrupted by a failed write.
	Save(cursor int64) error
	// Close releases the underlying resource after a final flush.
	Close() error
}
