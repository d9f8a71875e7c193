package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/storage/badger"
	"github.com/ternarybob/fetchgateway/internal/storage/localfile"
)

// NewStorageManager creates the badger-backed storage manager, falling
// back to local-file JSON storage if Badger cannot be opened (locked data
// dir, read-only filesystem, corrupted value log).
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	manager, err := badger.NewManager(logger, &config.Storage)
	if err == nil {
		return manager, nil
	}

	logger.Warn().Err(err).Msg("badger unavailable, falling back to local-file storage")
	return localfile.NewManager(logger, config.Storage.FallbackDir)
}
