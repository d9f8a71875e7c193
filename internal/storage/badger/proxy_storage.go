package badger

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

const (
	proxyPoolKey      = "proxy_pool"
	proxyWhitelistKey = "proxy_whitelist"
	proxySourcesKey   = "proxy_sources"
)

type proxyPoolRecord struct {
	Key     string `badgerhold:"key"`
	Proxies []*models.Proxy
}

type proxyWhitelistRecord struct {
	Key  string `badgerhold:"key"`
	Keys []string
}

type proxySourcesRecord struct {
	Key     string `badgerhold:"key"`
	Sources []models.ProxySource
}

// ProxyStorage persists the proxy pool, whitelist and sources as whole-slice
// snapshots: the inventory rewrites these periodically, not per-proxy.
type ProxyStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewProxyStorage constructs a Badger-backed ProxyStorage.
func NewProxyStorage(db *BadgerDB, logger arbor.ILogger) *ProxyStorage {
	return &ProxyStorage{db: db, logger: logger}
}

func (s *ProxyStorage) SavePool(ctx context.Context, proxies []*models.Proxy) error {
	return s.db.Store().Upsert(proxyPoolKey, &proxyPoolRecord{Key: proxyPoolKey, Proxies: proxies})
}

func (s *ProxyStorage) LoadPool(ctx context.Context) ([]*models.Proxy, error) {
	var record proxyPoolRecord
	if err := s.db.Store().Get(proxyPoolKey, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return record.Proxies, nil
}

func (s *ProxyStorage) SaveWhitelist(ctx context.Context, keys []string) error {
	return s.db.Store().Upsert(proxyWhitelistKey, &proxyWhitelistRecord{Key: proxyWhitelistKey, Keys: keys})
}

func (s *ProxyStorage) LoadWhitelist(ctx context.Context) ([]string, error) {
	var record proxyWhitelistRecord
	if err := s.db.Store().Get(proxyWhitelistKey, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return record.Keys, nil
}

func (s *ProxyStorage) SaveSources(ctx context.Context, sources []models.ProxySource) error {
	return s.db.Store().Upsert(proxySourcesKey, &proxySourcesRecord{Key: proxySourcesKey, Sources: sources})
}

func (s *ProxyStorage) LoadSources(ctx context.Context) ([]models.ProxySource, error) {
	var record proxySourcesRecord
	if err := s.db.Store().Get(proxySourcesKey, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return record.Sources, nil
}
