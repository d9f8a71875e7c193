package localfile

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// CacheStorage persists preload/store-meta/result snapshots as one file
// per key under dir, mirroring the in-memory TTL maps resultstore.Service
// flushes on its periodic snapshot.
type CacheStorage struct {
	mu  sync.Mutex
	dir string
}

func newCacheStorage(dir string) *CacheStorage {
	return &CacheStorage{dir: dir}
}

func (s *CacheStorage) SavePreload(ctx context.Context, entry *models.PreloadEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entry.StoreURL + "_" + entry.ProductID
	return writeJSONAtomic(filepath.Join(s.dir, "preload_"+safeFilename(key)), entry)
}

func (s *CacheStorage) GetPreload(ctx context.Context, storeURL, productID string) (*models.PreloadEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeURL + "_" + productID
	var entry models.PreloadEntry
	if err := readJSON(filepath.Join(s.dir, "preload_"+safeFilename(key)), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *CacheStorage) SaveStoreMeta(ctx context.Context, meta *models.StoreMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(filepath.Join(s.dir, "storemeta_"+safeFilename(meta.StoreURL)), meta)
}

func (s *CacheStorage) GetStoreMeta(ctx context.Context, storeURL string) (*models.StoreMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var meta models.StoreMeta
	if err := readJSON(filepath.Join(s.dir, "storemeta_"+safeFilename(storeURL)), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *CacheStorage) SaveResult(ctx context.Context, entry *models.ResultCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(filepath.Join(s.dir, "result_"+safeFilename(entry.NormalizedURL)), entry)
}

func (s *CacheStorage) GetResult(ctx context.Context, normalizedURL string) (*models.ResultCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entry models.ResultCacheEntry
	if err := readJSON(filepath.Join(s.dir, "result_"+safeFilename(normalizedURL)), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

var _ interfaces.CacheStorage = (*CacheStorage)(nil)
