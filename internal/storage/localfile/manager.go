// -----------------------------------------------------------------------
// Local-file storage manager - JSON-on-disk fallback used when Badger
// cannot be opened (locked data dir, read-only filesystem, corruption)
// -----------------------------------------------------------------------

package localfile

import (
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
)

// Manager implements interfaces.StorageManager over a directory of JSON
// files, one sub-storage per concern. Every write goes through
// writeJSONAtomic (temp file + rename) so a crash mid-write never leaves
// a half-written file for the next load to choke on.
type Manager struct {
	dir string

	queue    *QueueStorage
	proxy    *ProxyStorage
	identity *IdentityStorage
	cache    *CacheStorage
	logger   arbor.ILogger
}

// NewManager creates the fallback directory tree and constructs each
// sub-storage rooted under it.
func NewManager(logger arbor.ILogger, dir string) (*Manager, error) {
	if dir == "" {
		dir = "./data/fallback"
	}
	for _, sub := range []string{"jobs", "proxy", "identity", "cache"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		dir:      dir,
		queue:    newQueueStorage(filepath.Join(dir, "jobs")),
		proxy:    newProxyStorage(filepath.Join(dir, "proxy")),
		identity: newIdentityStorage(filepath.Join(dir, "identity")),
		cache:    newCacheStorage(filepath.Join(dir, "cache")),
		logger:   logger,
	}

	logger.Warn().Str("dir", dir).Msg("local-file storage manager initialized (badger fallback)")
	return m, nil
}

func (m *Manager) Queue() interfaces.QueueStorage       { return m.queue }
func (m *Manager) Proxy() interfaces.ProxyStorage       { return m.proxy }
func (m *Manager) Identity() interfaces.IdentityStorage { return m.identity }
func (m *Manager) Cache() interfaces.CacheStorage       { return m.cache }

// Close is a no-op; every write is already flushed to disk synchronously.
func (m *Manager) Close() error { return nil }
