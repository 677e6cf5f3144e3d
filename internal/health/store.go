package health

import "context"

// Version is the opaque concurrency token returned by a cache read and
// required by the matching write. The zero value means "not found": a write
// carrying it succeeds only if the document still does not exist.
type Version string

// VersionNotFound is the token returned when no cache document exists yet.
const VersionNotFound Version = ""

// CacheStore reads and writes the per-subscription cache document under an
// optimistic-concurrency discipline. Write returns ErrVersionConflict when
// the stored version no longer matches expected; the caller re-reads,
// re-merges, and retries. No other component may mutate the cache.
type CacheStore interface {
	// Read returns the current document and its version. A missing document
	// yields an empty document and VersionNotFound, not an error.
	Read(ctx context.Context, subscriptionID string) (*CacheDocument, Version, error)

	// Write persists doc if the stored version still equals expected and
	// returns the new version.
	Write(ctx context.Context, subscriptionID string, doc *CacheDocument, expected Version) (Version, error)
}
