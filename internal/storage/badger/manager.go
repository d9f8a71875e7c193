package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
)

// Manager implements interfaces.StorageManager on top of a single Badger
// database, splitting it into per-concern sub-storages.
type Manager struct {
	db *BadgerDB

	queue    *QueueStorage
	proxy    *ProxyStorage
	identity *IdentityStorage
	cache    *CacheStorage
	logger   arbor.ILogger
}

// NewManager opens the Badger database and constructs each sub-storage.
func NewManager(logger arbor.ILogger, config *common.StorageConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, &config.Badger)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		queue:    NewQueueStorage(db, logger),
		proxy:    NewProxyStorage(db, logger),
		identity: NewIdentityStorage(db, logger),
		cache:    NewCacheStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// Queue returns the job queue storage interface
func (m *Manager) Queue() interfaces.QueueStorage { return m.queue }

// Proxy returns the proxy inventory storage interface
func (m *Manager) Proxy() interfaces.ProxyStorage { return m.proxy }

// Identity returns the identity profile storage interface
func (m *Manager) Identity() interfaces.IdentityStorage { return m.identity }

// Cache returns the result/preload cache storage interface
func (m *Manager) Cache() interfaces.CacheStorage { return m.cache }

// Close closes the underlying database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
