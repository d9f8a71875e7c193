package badger

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CacheStorage persists periodic snapshots of the preload, store-meta and
// result caches so progressive reads survive a restart. The in-memory TTL
// maps kept by the result-store service are the primary, hot path; this
// is a durability backstop.
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage constructs a Badger-backed CacheStorage.
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) *CacheStorage {
	return &CacheStorage{db: db, logger: logger}
}

func preloadKey(storeURL, productID string) string {
	return "preload:" + storeURL + ":" + productID
}

func storeMetaKey(storeURL string) string {
	return "storemeta:" + storeURL
}

func resultKey(normalizedURL string) string {
	return "result:" + normalizedURL
}

func (s *CacheStorage) SavePreload(ctx context.Context, entry *models.PreloadEntry) error {
	return s.db.Store().Upsert(preloadKey(entry.StoreURL, entry.ProductID), entry)
}

func (s *CacheStorage) GetPreload(ctx context.Context, storeURL, productID string) (*models.PreloadEntry, error) {
	var entry models.PreloadEntry
	if err := s.db.Store().Get(preloadKey(storeURL, productID), &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (s *CacheStorage) SaveStoreMeta(ctx context.Context, meta *models.StoreMeta) error {
	return s.db.Store().Upsert(storeMetaKey(meta.StoreURL), meta)
}

func (s *CacheStorage) GetStoreMeta(ctx context.Context, storeURL string) (*models.StoreMeta, error) {
	var meta models.StoreMeta
	if err := s.db.Store().Get(storeMetaKey(storeURL), &meta); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, err
	}
	return &meta, nil
}

func (s *CacheStorage) SaveResult(ctx context.Context, entry *models.ResultCacheEntry) error {
	return s.db.Store().Upsert(resultKey(entry.NormalizedURL), entry)
}

func (s *CacheStorage) GetResult(ctx context.Context, normalizedURL string) (*models.ResultCacheEntry, error) {
	var entry models.ResultCacheEntry
	if err := s.db.Store().Get(resultKey(normalizedURL), &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}
