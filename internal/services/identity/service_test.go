package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/common"
)

// memStorage is a trivial in-memory interfaces.IdentityStorage for tests.
type memStorage struct {
	agents []string
}

func (m *memStorage) SaveWorkingSet(ctx context.Context, userAgents []string) error {
	m.agents = userAgents
	return nil
}

func (m *memStorage) LoadWorkingSet(ctx context.Context) ([]string, error) {
	return m.agents, nil
}

func newTestService(t *testing.T, storage *memStorage) *Service {
	t.Helper()
	logger := arbor.NewLogger()
	s, err := New(context.Background(), logger, storage, &common.IdentityConfig{WorkingSetPreference: 0.8})
	require.NoError(t, err)
	return s
}

func TestRandom_ReturnsUsableIdentity(t *testing.T) {
	s := newTestService(t, &memStorage{})
	id, ok := s.Random()
	require.True(t, ok)
	assert.NotEmpty(t, id.UserAgent)
}

func TestRandom_AvoidsImmediateReuseUntilExhausted(t *testing.T) {
	s := newTestService(t, &memStorage{})

	seen := make(map[string]int)
	for i := 0; i < len(staticCatalogue)+1; i++ {
		id, ok := s.Random()
		require.True(t, ok)
		seen[id.UserAgent]++
	}
	for ua, count := range seen {
		assert.LessOrEqualf(t, count, 2, "userAgent %s drawn too many times before a reset was possible", ua)
	}
}

func TestMarkWorking_PersistsAndReportsIsWorking(t *testing.T) {
	storage := &memStorage{}
	s := newTestService(t, storage)

	assert.False(t, s.IsWorking("ua-1"))
	s.MarkWorking("ua-1")
	assert.True(t, s.IsWorking("ua-1"))
	assert.Contains(t, storage.agents, "ua-1")
}

func TestNew_LoadsPersistedWorkingSet(t *testing.T) {
	storage := &memStorage{agents: []string{"persisted-ua"}}
	s := newTestService(t, storage)
	assert.True(t, s.IsWorking("persisted-ua"))
}
