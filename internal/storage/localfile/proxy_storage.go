package localfile

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// ProxyStorage persists the proxy pool, whitelist and configured sources
// as three flat files under dir.
type ProxyStorage struct {
	mu  sync.Mutex
	dir string
}

func newProxyStorage(dir string) *ProxyStorage {
	return &ProxyStorage{dir: dir}
}

func (s *ProxyStorage) poolPath() string      { return filepath.Join(s.dir, "pool.json") }
func (s *ProxyStorage) whitelistPath() string { return filepath.Join(s.dir, "whitelist.json") }
func (s *ProxyStorage) sourcesPath() string   { return filepath.Join(s.dir, "sources.json") }

func (s *ProxyStorage) SavePool(ctx context.Context, proxies []*models.Proxy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.poolPath(), proxies)
}

func (s *ProxyStorage) LoadPool(ctx context.Context) ([]*models.Proxy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var proxies []*models.Proxy
	if err := readJSON(s.poolPath(), &proxies); err != nil {
		if err == interfaces.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return proxies, nil
}

func (s *ProxyStorage) SaveWhitelist(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.whitelistPath(), keys)
}

func (s *ProxyStorage) LoadWhitelist(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	if err := readJSON(s.whitelistPath(), &keys); err != nil {
		if err == interfaces.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return keys, nil
}

func (s *ProxyStorage) SaveSources(ctx context.Context, sources []models.ProxySource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.sourcesPath(), sources)
}

func (s *ProxyStorage) LoadSources(ctx context.Context) ([]models.ProxySource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sources []models.ProxySource
	if err := readJSON(s.sourcesPath(), &sources); err != nil {
		if err == interfaces.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return sources, nil
}
