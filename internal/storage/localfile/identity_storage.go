package localfile

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/ternarybob/fetchgateway/internal/interfaces"
)

// IdentityStorage persists the working-set of user agents as a single
// flat file under dir.
type IdentityStorage struct {
	mu  sync.Mutex
	dir string
}

func newIdentityStorage(dir string) *IdentityStorage {
	return &IdentityStorage{dir: dir}
}

func (s *IdentityStorage) path() string { return filepath.Join(s.dir, "working_set.json") }

func (s *IdentityStorage) SaveWorkingSet(ctx context.Context, userAgents []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.path(), userAgents)
}

func (s *IdentityStorage) LoadWorkingSet(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var uas []string
	if err := readJSON(s.path(), &uas); err != nil {
		if err == interfaces.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return uas, nil
}
