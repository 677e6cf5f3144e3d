// Package cache provides CacheStore backends for the per-subscription
// health-event cache document.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/rs/zerolog"

	"github.com/stuartshay/pwsh-azure-health-sub000/internal/health"
)

// DefaultContainer is the blob container holding cache documents.
const DefaultContainer = "health-cache"

// BlobStoreConfig holds configuration for the blob-backed cache store.
type BlobStoreConfig struct {
	// ServiceURL is the storage account blob endpoint, e.g.
	// https://<account>.blob.core.windows.net/ (required unless Client is
	// set).
	ServiceURL string

	// Credential is the token credential for storage calls.
	Credential azcore.TokenCredential

	// Container overrides DefaultContainer.
	Container string

	// Client overrides the underlying SDK client, for tests.
	Client *azblob.Client

	// Logger for store operations.
	Logger zerolog.Logger
}

// BlobStore keeps one JSON cache document per subscription in blob storage.
// The blob's ETag is the version token: writes are conditional (If-Match on
// update, If-None-Match:* on create), so two racing writers cannot both
// succeed against the same version.
type BlobStore struct {
	client    *azblob.Client
	container string
	logger    zerolog.Logger
}

// NewBlobStore creates a blob-backed cache store.
func NewBlobStore(cfg BlobStoreConfig) (*BlobStore, error) {
	container := cfg.Container
	if container == "" {
		container = DefaultContainer
	}

	client := cfg.Client
	if client == nil {
		var err error
		client, err = azblob.NewClient(cfg.ServiceURL, cfg.Credential, nil)
		if err != nil {
			return nil, fmt.Errorf("creating blob client: %w", err)
		}
	}

	return &BlobStore{client: client, container: container, logger: cfg.Logger}, nil
}

// EnsureContainer creates the cache container if it does not exist yet.
func (s *BlobStore) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("creating container %s: %w", s.container, err)
	}
	return nil
}

// Read fetches and decodes the subscription's cache document. A missing
// blob yields an empty document and health.VersionNotFound.
func (s *BlobStore) Read(ctx context.Context, subscriptionID string) (*health.CacheDocument, health.Version, error) {
	name := blobName(subscriptionID)

	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			s.logger.Debug().
				Str("blob", name).
				Msg("cache blob not found, starting empty")
			return health.NewCacheDocument(), health.VersionNotFound, nil
		}
		return nil, health.VersionNotFound, fmt.Errorf("downloading cache blob %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, health.VersionNotFound, fmt.Errorf("reading cache blob %s: %w", name, err)
	}

	doc := health.NewCacheDocument()
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, health.VersionNotFound, fmt.Errorf("decoding cache blob %s: %w", name, err)
	}
	if doc.Events == nil {
		doc.Events = make(map[string]health.HealthEvent)
	}

	version := health.VersionNotFound
	if resp.ETag != nil {
		version = health.Version(*resp.ETag)
	}
	return doc, version, nil
}

// Write persists the document conditionally on expected. VersionNotFound
// means "create only": the write fails if a document appeared since the
// read. Any lost race surfaces as health.ErrVersionConflict.
func (s *BlobStore) Write(ctx context.Context, subscriptionID string, doc *health.CacheDocument, expected health.Version) (health.Version, error) {
	name := blobName(subscriptionID)

	body, err := json.Marshal(doc)
	if err != nil {
		return health.VersionNotFound, fmt.Errorf("encoding cache document: %w", err)
	}

	conditions := &blob.ModifiedAccessConditions{}
	if expected == health.VersionNotFound {
		conditions.IfNoneMatch = to.Ptr(azcore.ETag("*"))
	} else {
		conditions.IfMatch = to.Ptr(azcore.ETag(expected))
	}

	resp, err := s.client.UploadBuffer(ctx, s.container, name, body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr("application/json"),
		},
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: conditions,
		},
	})
	if err != nil {
		if bloberror.HasCode(err, bloberror.ConditionNotMet, bloberror.BlobAlreadyExists) {
			return health.VersionNotFound, health.ErrVersionConflict
		}
		return health.VersionNotFound, fmt.Errorf("uploading cache blob %s: %w", name, err)
	}

	version := health.VersionNotFound
	if resp.ETag != nil {
		version = health.Version(*resp.ETag)
	}
	s.logger.Debug().
		Str("blob", name).
		Int("bytes", len(body)).
		Msg("cache blob written")
	return version, nil
}

// blobName derives the storage key for a subscription's cache document.
func blobName(subscriptionID string) string {
	return subscriptionID + "/service-health.json"
}
