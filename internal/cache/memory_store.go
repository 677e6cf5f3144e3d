package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health"
)

// MemoryStore is an in-memory CacheStore with the same compare-and-swap
// semantics as BlobStore. Used in tests and local runs without a storage
// account.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]memoryEntry
}

type memoryEntry struct {
	body    []byte
	version int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]memoryEntry)}
}

// Read returns the stored document, or an empty one with
// health.VersionNotFound when the subscription has no cache yet.
func (s *MemoryStore) Read(_ context.Context, subscriptionID string) (*health.CacheDocument, health.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.docs[subscriptionID]
	if !ok {
		return health.NewCacheDocument(), health.VersionNotFound, nil
	}

	doc := health.NewCacheDocument()
	if err := json.Unmarshal(entry.body, doc); err != nil {
		return nil, health.VersionNotFound, fmt.Errorf("decoding cached document: %w", err)
	}
	if doc.Events == nil {
		doc.Events = make(map[string]health.HealthEvent)
	}
	return doc, health.Version(strconv.FormatInt(entry.version, 10)), nil
}

// Write stores the document if the current version still matches expected.
func (s *MemoryStore) Write(_ context.Context, subscriptionID string, doc *health.CacheDocument, expected health.Version) (health.Version, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return health.VersionNotFound, fmt.Errorf("encoding cache document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.docs[subscriptionID]
	current := health.VersionNotFound
	if ok {
		current = health.Version(strconv.FormatInt(entry.version, 10))
	}
	if current != expected {
		return health.VersionNotFound, health.ErrVersionConflict
	}

	next := entry.version + 1
	s.docs[subscriptionID] = memoryEntry{body: body, version: next}
	return health.Version(strconv.FormatInt(next, 10)), nil
}
