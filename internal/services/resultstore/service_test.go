package resultstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/common"
)

func newTestService() *Service {
	logger := arbor.NewLogger()
	return New(logger, nil, &common.CacheConfig{
		ResultTTL:         50 * time.Millisecond,
		PreloadStoreTTL:   time.Hour,
		PreloadProductTTL: 50 * time.Millisecond,
	})
}

func TestResultCache_SetThenGet(t *testing.T) {
	s := newTestService()
	payload := json.RawMessage(`{"foo":1}`)

	s.SetResult("https://site/x", payload)
	got, ok := s.GetResult("https://site/x")
	assert.True(t, ok)
	assert.JSONEq(t, string(payload), string(got))
}

func TestResultCache_MissForUnknownURL(t *testing.T) {
	s := newTestService()
	_, ok := s.GetResult("https://site/never-set")
	assert.False(t, ok)
}

func TestResultCache_ExpiresAfterTTL(t *testing.T) {
	s := newTestService()
	s.SetResult("https://site/x", json.RawMessage(`{"foo":1}`))
	time.Sleep(75 * time.Millisecond)
	_, ok := s.GetResult("https://site/x")
	assert.False(t, ok, "expired entry should not be returned")
}

func TestPreload_SetThenGetByStoreAndProduct(t *testing.T) {
	s := newTestService()
	payload := json.RawMessage(`{"name":"A"}`)
	s.SetPreload("https://store/x", "42", payload)

	got, ok := s.GetPreload("https://store/x", "42")
	assert.True(t, ok)
	assert.JSONEq(t, string(payload), string(got))

	_, ok = s.GetPreload("https://store/x", "43")
	assert.False(t, ok, "different product id should miss")
}

func TestStoreMeta_SetThenGet(t *testing.T) {
	s := newTestService()
	s.SetStoreMeta("https://store/x", "chan-1")

	got, ok := s.GetStoreMeta("https://store/x")
	assert.True(t, ok)
	assert.Equal(t, "chan-1", got)
}

func TestStoreMeta_MissForUnknownStore(t *testing.T) {
	s := newTestService()
	_, ok := s.GetStoreMeta("https://store/never-seen")
	assert.False(t, ok)
}

func TestSetResult_Overwrites(t *testing.T) {
	s := newTestService()
	s.SetResult("https://site/x", json.RawMessage(`{"v":1}`))
	s.SetResult("https://site/x", json.RawMessage(`{"v":2}`))

	got, ok := s.GetResult("https://site/x")
	assert.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(got))
}
