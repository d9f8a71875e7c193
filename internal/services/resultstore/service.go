// -----------------------------------------------------------------------
// Result Store service - implements interfaces.ResultStore
// -----------------------------------------------------------------------

package resultstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// Service holds three TTL-keyed in-memory caches - final results keyed by
// normalized URL, preload entries keyed by (storeURL, productID), and
// store metadata keyed by storeURL - with a periodic snapshot flush to
// persistent storage so progressive reads survive a restart.
type Service struct {
	mu sync.RWMutex

	logger  arbor.ILogger
	storage interfaces.CacheStorage
	config  *common.CacheConfig

	results  map[string]*models.ResultCacheEntry
	preloads map[string]*models.PreloadEntry
	stores   map[string]*models.StoreMeta

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs the result store. No load-on-startup pass is required:
// entries are looked up from persistent storage lazily on a cache miss,
// keeping the in-memory maps as the fast path.
func New(logger arbor.ILogger, storage interfaces.CacheStorage, config *common.CacheConfig) *Service {
	return &Service{
		logger:   logger,
		storage:  storage,
		config:   config,
		results:  make(map[string]*models.ResultCacheEntry),
		preloads: make(map[string]*models.PreloadEntry),
		stores:   make(map[string]*models.StoreMeta),
	}
}

// Start launches the periodic snapshot-persistence loop.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	common.SafeGoWithContext(ctx, s.logger, "resultstore-snapshot-loop", func() {
		defer s.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.snapshot(ctx)
			}
		}
	})
}

// Stop halts the snapshot loop and flushes one final time.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.snapshot(context.Background())
}

func (s *Service) snapshot(ctx context.Context) {
	if s.storage == nil {
		return
	}
	now := time.Now()

	s.mu.Lock()
	results := make([]*models.ResultCacheEntry, 0, len(s.results))
	for k, v := range s.results {
		if v.Expired(now) {
			delete(s.results, k)
			continue
		}
		results = append(results, v)
	}
	preloads := make([]*models.PreloadEntry, 0, len(s.preloads))
	for k, v := range s.preloads {
		if v.Expired(now) {
			delete(s.preloads, k)
			continue
		}
		preloads = append(preloads, v)
	}
	stores := make([]*models.StoreMeta, 0, len(s.stores))
	for k, v := range s.stores {
		if v.Expired(now) {
			delete(s.stores, k)
			continue
		}
		stores = append(stores, v)
	}
	s.mu.Unlock()

	for _, r := range results {
		if err := s.storage.SaveResult(ctx, r); err != nil {
			s.logger.Warn().Err(err).Str("url", r.NormalizedURL).Msg("resultstore: failed to persist result")
		}
	}
	for _, p := range preloads {
		if err := s.storage.SavePreload(ctx, p); err != nil {
			s.logger.Warn().Err(err).Str("store", p.StoreURL).Str("product", p.ProductID).Msg("resultstore: failed to persist preload")
		}
	}
	for _, m := range stores {
		if err := s.storage.SaveStoreMeta(ctx, m); err != nil {
			s.logger.Warn().Err(err).Str("store", m.StoreURL).Msg("resultstore: failed to persist store meta")
		}
	}
}

// GetResult returns the cached final payload for normalizedURL, checking
// persistent storage on a miss.
func (s *Service) GetResult(normalizedURL string) (json.RawMessage, bool) {
	now := time.Now()

	s.mu.RLock()
	entry, ok := s.results[normalizedURL]
	s.mu.RUnlock()
	if ok && !entry.Expired(now) {
		return entry.Payload, true
	}

	if s.storage == nil {
		return nil, false
	}
	persisted, err := s.storage.GetResult(context.Background(), normalizedURL)
	if err != nil || persisted == nil || persisted.Expired(now) {
		return nil, false
	}
	s.mu.Lock()
	s.results[normalizedURL] = persisted
	s.mu.Unlock()
	return persisted.Payload, true
}

// SetResult caches a final payload with the configured result TTL.
func (s *Service) SetResult(normalizedURL string, payload json.RawMessage) {
	ttl := s.config.ResultTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	entry := &models.ResultCacheEntry{
		NormalizedURL: normalizedURL,
		Payload:       payload,
		ExpiresAt:     time.Now().Add(ttl),
	}
	s.mu.Lock()
	s.results[normalizedURL] = entry
	s.mu.Unlock()
}

// GetPreload returns the cached partial product payload for
// (storeURL, productID), checking persistent storage on a miss.
func (s *Service) GetPreload(storeURL, productID string) (json.RawMessage, bool) {
	key := preloadKey(storeURL, productID)
	now := time.Now()

	s.mu.RLock()
	entry, ok := s.preloads[key]
	s.mu.RUnlock()
	if ok && !entry.Expired(now) {
		return entry.Payload, true
	}

	if s.storage == nil {
		return nil, false
	}
	persisted, err := s.storage.GetPreload(context.Background(), storeURL, productID)
	if err != nil || persisted == nil || persisted.Expired(now) {
		return nil, false
	}
	s.mu.Lock()
	s.preloads[key] = persisted
	s.mu.Unlock()
	return persisted.Payload, true
}

// SetPreload caches a partial product payload with the configured
// preload-product TTL.
func (s *Service) SetPreload(storeURL, productID string, payload json.RawMessage) {
	ttl := s.config.PreloadProductTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	entry := &models.PreloadEntry{
		StoreURL:  storeURL,
		ProductID: productID,
		Payload:   payload,
		ExpiresAt: time.Now().Add(ttl),
	}
	s.mu.Lock()
	s.preloads[preloadKey(storeURL, productID)] = entry
	s.mu.Unlock()
}

// GetStoreMeta returns the cached channelId for storeURL, checking
// persistent storage on a miss.
func (s *Service) GetStoreMeta(storeURL string) (string, bool) {
	now := time.Now()

	s.mu.RLock()
	entry, ok := s.stores[storeURL]
	s.mu.RUnlock()
	if ok && !entry.Expired(now) {
		return entry.ChannelID, true
	}

	if s.storage == nil {
		return "", false
	}
	persisted, err := s.storage.GetStoreMeta(context.Background(), storeURL)
	if err != nil || persisted == nil || persisted.Expired(now) {
		return "", false
	}
	s.mu.Lock()
	s.stores[storeURL] = persisted
	s.mu.Unlock()
	return persisted.ChannelID, true
}

// SetStoreMeta caches a store's channelId with the configured
// preload-store TTL.
func (s *Service) SetStoreMeta(storeURL, channelID string) {
	ttl := s.config.PreloadStoreTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	entry := &models.StoreMeta{
		StoreURL:  storeURL,
		ChannelID: channelID,
		ExpiresAt: time.Now().Add(ttl),
	}
	s.mu.Lock()
	s.stores[storeURL] = entry
	s.mu.Unlock()
}

func preloadKey(storeURL, productID string) string {
	return storeURL + "\x00" + productID
}
