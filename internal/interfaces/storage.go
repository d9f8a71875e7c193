// -----------------------------------------------------------------------
// Storage interfaces - persistence contracts consumed by services
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/fetchgateway/internal/models"
)

// ErrNotFound is returned by storage Get-style methods when a key is absent.
var ErrNotFound = errors.New("not found")

// QueueStorage persists Job records and the FIFO queue order so the
// orchestrator can recover after a crash. Writes are atomic per Job;
// the queue list is overwritten wholesale per §6.
type QueueStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetJobByURL(ctx context.Context, normalizedURL string) (*models.Job, error)
	ListJobs(ctx context.Context) ([]*models.Job, error)
	DeleteJob(ctx context.Context, id string) error

	SaveQueueOrder(ctx context.Context, jobIDs []string) error
	LoadQueueOrder(ctx context.Context) ([]string, error)
}

// ProxyStorage persists the validated proxy pool, the working whitelist
// and configured sources. It has no bad-set methods.
type ProxyStorage interface {
	SavePool(ctx context.Context, proxies []*models.Proxy) error
	LoadPool(ctx context.Context) ([]*models.Proxy, error)

	SaveWhitelist(ctx context.Context, keys []string) error
	LoadWhitelist(ctx context.Context) ([]string, error)

	SaveSources(ctx context.Context, sources []models.ProxySource) error
	LoadSources(ctx context.Context) ([]models.ProxySource, error)
}

// IdentityStorage persists the working-set of identities observed to succeed.
type IdentityStorage interface {
	SaveWorkingSet(ctx context.Context, userAgents []string) error
	LoadWorkingSet(ctx context.Context) ([]string, error)
}

// CacheStorage persists the preload/store-meta/result caches so progressive
// reads survive a restart; in-memory TTL maps are the primary store, this
// is a periodic snapshot.
type CacheStorage interface {
	SavePreload(ctx context.Context, entry *models.PreloadEntry) error
	GetPreload(ctx context.Context, storeURL, productID string) (*models.PreloadEntry, error)

	SaveStoreMeta(ctx context.Context, meta *models.StoreMeta) error
	GetStoreMeta(ctx context.Context, storeURL string) (*models.StoreMeta, error)

	SaveResult(ctx context.Context, entry *models.ResultCacheEntry) error
	GetResult(ctx context.Context, normalizedURL string) (*models.ResultCacheEntry, error)
}

// StorageManager composes the per-concern storage interfaces behind a
// single constructed backend (Badger, with a local-file fallback).
type StorageManager interface {
	Queue() QueueStorage
	Proxy() ProxyStorage
	Identity() IdentityStorage
	Cache() CacheStorage
	Close() error
}
