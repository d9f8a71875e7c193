package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// --- fakes -----------------------------------------------------------

type fakeTab struct {
	slot, index int
	hasProxy    bool
}

func (t *fakeTab) Context() context.Context { return context.Background() }
func (t *fakeTab) SlotID() int              { return t.slot }
func (t *fakeTab) Index() int               { return t.index }
func (t *fakeTab) HasProxy() bool           { return t.hasProxy }

// fakePool hands out a single free tab per slot and tracks busy state;
// enough surface for the dispatcher to run one job at a time.
type fakePool struct {
	mu   sync.Mutex
	busy map[string]bool // "slot:index" -> busy
}

func newFakePool() *fakePool {
	return &fakePool{busy: make(map[string]bool)}
}

func key(slot, index int) string { return string(rune(slot)) + ":" + string(rune(index)) }

func (p *fakePool) ActiveTabs() []*models.Tab {
	return []*models.Tab{{OwningSlotID: 0, Index: 0}, {OwningSlotID: 1, Index: 0}}
}
func (p *fakePool) InstanceForTab(slotID int) (*models.BrowserInstance, bool) {
	return &models.BrowserInstance{SlotID: slotID}, true
}
func (p *fakePool) ScaleUp(queueLen int) {}
func (p *fakePool) RestartBrowser(ctx context.Context, slotID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.busy, key(slotID, 0))
}
func (p *fakePool) RotatePageProfile(ctx context.Context, slotID, tabIndex int) bool { return true }
func (p *fakePool) CreateEphemeral(ctx context.Context, proxyLiteral string) (interfaces.Tab, func(), error) {
	return &fakeTab{slot: -1}, func() {}, nil
}
func (p *fakePool) MarkBusy(slotID, tabIndex int, jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := key(slotID, tabIndex)
	if p.busy[k] {
		return false
	}
	p.busy[k] = true
	return true
}
func (p *fakePool) ReleaseTab(slotID, tabIndex int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.busy, key(slotID, tabIndex))
}
func (p *fakePool) NavigateBlank(ctx context.Context, slotID, tabIndex int) {}
func (p *fakePool) TabHandle(slotID, tabIndex int) (interfaces.Tab, bool) {
	return &fakeTab{slot: slotID, index: tabIndex}, true
}
func (p *fakePool) Shutdown(ctx context.Context) {}

type fakeProxies struct{}

func (f *fakeProxies) Acquire(protocolFilter, sessionID string) (*models.Proxy, error) {
	return nil, nil
}
func (f *fakeProxies) Release(p *models.Proxy)     {}
func (f *fakeProxies) MarkSuccess(p *models.Proxy) {}
func (f *fakeProxies) MarkBad(p *models.Proxy)     {}
func (f *fakeProxies) MarkWorking(p *models.Proxy) {}
func (f *fakeProxies) AddSource(ctx context.Context, name, location string) error { return nil }
func (f *fakeProxies) DeleteSource(ctx context.Context, name string) error        { return nil }
func (f *fakeProxies) AddRotatingProvider(name string, provider interfaces.RotatingProvider) error {
	return nil
}
func (f *fakeProxies) RemoveRotatingProvider(name string) error { return nil }
func (f *fakeProxies) Start(ctx context.Context)                {}
func (f *fakeProxies) Stop()                                    {}

type fakeIdentities struct{}

func (f *fakeIdentities) Random() (*models.Identity, bool) {
	return &models.Identity{Name: "fake", UserAgent: "fake-ua"}, true
}
func (f *fakeIdentities) Release(i *models.Identity)       {}
func (f *fakeIdentities) MarkWorking(userAgent string)     {}
func (f *fakeIdentities) IsWorking(userAgent string) bool  { return false }

type fakeResults struct {
	mu      sync.Mutex
	results map[string]json.RawMessage
}

func newFakeResults() *fakeResults {
	return &fakeResults{results: make(map[string]json.RawMessage)}
}
func (f *fakeResults) GetResult(normalizedURL string) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.results[normalizedURL]
	return v, ok
}
func (f *fakeResults) SetResult(normalizedURL string, payload json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[normalizedURL] = payload
}
func (f *fakeResults) GetPreload(storeURL, productID string) (json.RawMessage, bool) {
	return nil, false
}
func (f *fakeResults) SetPreload(storeURL, productID string, payload json.RawMessage) {}
func (f *fakeResults) GetStoreMeta(storeURL string) (string, bool)                     { return "", false }
func (f *fakeResults) SetStoreMeta(storeURL, channelID string)                         {}
func (f *fakeResults) Start(ctx context.Context)                                       {}
func (f *fakeResults) Stop()                                                           {}

// memQueueStorage is a trivial in-memory interfaces.QueueStorage for tests.
type memQueueStorage struct {
	mu    sync.Mutex
	jobs  map[string]*models.Job
	order []string
}

func newMemQueueStorage() *memQueueStorage {
	return &memQueueStorage{jobs: make(map[string]*models.Job)}
}
func (m *memQueueStorage) SaveJob(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
	return nil
}
func (m *memQueueStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return j.Clone(), nil
}
func (m *memQueueStorage) GetJobByURL(ctx context.Context, normalizedURL string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.NormalizedURL == normalizedURL {
			return j.Clone(), nil
		}
	}
	return nil, nil
}
func (m *memQueueStorage) ListJobs(ctx context.Context) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.Clone())
	}
	return out, nil
}
func (m *memQueueStorage) DeleteJob(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}
func (m *memQueueStorage) SaveQueueOrder(ctx context.Context, jobIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = append([]string(nil), jobIDs...)
	return nil
}
func (m *memQueueStorage) LoadQueueOrder(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}

// fakeRoutine succeeds immediately with a fixed payload.
type fakeRoutine struct {
	payload json.RawMessage
}

func (r *fakeRoutine) Fetch(ctx context.Context, tab interfaces.Tab, url string, onProgress interfaces.OnProgress) interfaces.FetchResult {
	return interfaces.FetchResult{Success: true, Data: r.payload}
}

// failThenSucceedRoutine fails with a given error string on its first N
// calls (per-URL), then succeeds.
type failThenSucceedRoutine struct {
	mu       sync.Mutex
	failures map[string]int
	errMsg   string
	payload  json.RawMessage
}

func (r *failThenSucceedRoutine) Fetch(ctx context.Context, tab interfaces.Tab, url string, onProgress interfaces.OnProgress) interfaces.FetchResult {
	r.mu.Lock()
	remaining := r.failures[url]
	if remaining > 0 {
		r.failures[url] = remaining - 1
	}
	r.mu.Unlock()
	if remaining > 0 {
		return interfaces.FetchResult{Success: false, Error: r.errMsg}
	}
	return interfaces.FetchResult{Success: true, Data: r.payload}
}

func newTestOrchestrator(t *testing.T, storage interfaces.QueueStorage, routines map[models.JobKind]interfaces.FetchRoutine) (*Service, *fakeResults) {
	t.Helper()
	logger := arbor.NewLogger()
	results := newFakeResults()
	cfg := &common.OrchestratorConfig{
		HedgeTimeout:  50 * time.Millisecond,
		MaxAttempts:   3,
		RotationSleep: time.Millisecond,
		OtherSleep:    time.Millisecond,
	}
	svc, err := New(context.Background(), logger, storage, cfg, newFakePool(), &fakeProxies{}, &fakeIdentities{}, results, routines)
	require.NoError(t, err)
	return svc, results
}

func waitForStatus(t *testing.T, s *Service, jobID string, status models.JobStatus, timeout time.Duration) *models.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, ok := s.GetJob(context.Background(), jobID)
		if ok && job.Status == status {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %s in time", jobID, status)
	return nil
}

// --- tests -------------------------------------------------------------

func TestEnqueue_DedupesLiveJobForSameURL(t *testing.T) {
	routines := map[models.JobKind]interfaces.FetchRoutine{
		models.JobKindProduct: &fakeRoutine{payload: json.RawMessage(`{}`)},
	}
	s, _ := newTestOrchestrator(t, nil, routines)

	j1, err := s.Enqueue(context.Background(), "https://site.com/x/", models.JobKindProduct, "")
	require.NoError(t, err)
	j2, err := s.Enqueue(context.Background(), "https://site.com/x", models.JobKindProduct, "")
	require.NoError(t, err)

	assert.Equal(t, j1.ID, j2.ID)
}

func TestEnqueue_CacheHitReturnsWithoutNewJob(t *testing.T) {
	routines := map[models.JobKind]interfaces.FetchRoutine{
		models.JobKindProduct: &fakeRoutine{payload: json.RawMessage(`{}`)},
	}
	s, results := newTestOrchestrator(t, nil, routines)
	normalized, err := models.NormalizeURL("https://site.com/x")
	require.NoError(t, err)
	results.SetResult(normalized, json.RawMessage(`{"foo":1}`))

	job, err := s.Enqueue(context.Background(), "https://site.com/x", models.JobKindProduct, "")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.JSONEq(t, `{"foo":1}`, string(job.Result.Data))

	_, ok := s.GetJobByURL(context.Background(), "https://site.com/x")
	assert.False(t, ok, "cache-hit short circuit should not register a tracked job")
}

func TestEnqueue_NotReadyReturnsErr(t *testing.T) {
	s := &Service{jobs: make(map[string]*models.Job), byURL: make(map[string]string)}
	_, err := s.Enqueue(context.Background(), "https://site.com/x", models.JobKindProduct, "")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestDispatch_HappyPathCompletesJob(t *testing.T) {
	routines := map[models.JobKind]interfaces.FetchRoutine{
		models.JobKindProduct: &fakeRoutine{payload: json.RawMessage(`{"ok":true}`)},
	}
	s, _ := newTestOrchestrator(t, newMemQueueStorage(), routines)

	job, err := s.Enqueue(context.Background(), "https://site.com/x", models.JobKindProduct, "")
	require.NoError(t, err)

	final := waitForStatus(t, s, job.ID, models.JobStatusCompleted, time.Second)
	require.NotNil(t, final.Result)
	assert.False(t, final.Result.IsPartial)
	assert.JSONEq(t, `{"ok":true}`, string(final.Result.Data))
}

func TestDispatch_ProxyOrNetworkErrorRequeuesThenSucceeds(t *testing.T) {
	routine := &failThenSucceedRoutine{
		failures: map[string]int{},
		errMsg:   "HTTP_429",
		payload:  json.RawMessage(`{"retried":true}`),
	}
	normalized, err := models.NormalizeURL("https://site.com/y")
	require.NoError(t, err)
	routine.failures[normalized] = 1

	routines := map[models.JobKind]interfaces.FetchRoutine{
		models.JobKindProduct: routine,
	}
	s, _ := newTestOrchestrator(t, newMemQueueStorage(), routines)

	job, err := s.Enqueue(context.Background(), "https://site.com/y", models.JobKindProduct, "")
	require.NoError(t, err)

	final := waitForStatus(t, s, job.ID, models.JobStatusCompleted, 2*time.Second)
	assert.JSONEq(t, `{"retried":true}`, string(final.Result.Data))
}

func TestClassify_KnownMarkers(t *testing.T) {
	assert.Equal(t, classCriticalBrowser, classify("Target closed"))
	assert.Equal(t, classProxyOrNetwork, classify("HTTP_429"))
	assert.Equal(t, classNoContent, classify("204_NO_CONTENT"))
	assert.Equal(t, classUnsupportedBrowser, classify("UNSUPPORTED_BROWSER"))
	assert.Equal(t, classOther, classify("something else entirely"))
}

func TestLoadAndRecover_DemotesProcessingJobsToHeadPending(t *testing.T) {
	storage := newMemQueueStorage()
	j1 := models.NewJob("https://site.com/a", models.JobKindProduct, "")
	j1.Status = models.JobStatusProcessing
	j2 := models.NewJob("https://site.com/b", models.JobKindProduct, "")
	j2.Status = models.JobStatusPending

	require.NoError(t, storage.SaveJob(context.Background(), j1))
	require.NoError(t, storage.SaveJob(context.Background(), j2))
	require.NoError(t, storage.SaveQueueOrder(context.Background(), []string{j2.ID, j1.ID}))

	routines := map[models.JobKind]interfaces.FetchRoutine{
		models.JobKindProduct: &fakeRoutine{payload: json.RawMessage(`{}`)},
	}
	logger := arbor.NewLogger()
	cfg := &common.OrchestratorConfig{}
	s, err := New(context.Background(), logger, storage, cfg, newFakePool(), &fakeProxies{}, &fakeIdentities{}, newFakeResults(), routines)
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.queue, 2)
	assert.Equal(t, j1.ID, s.queue[0], "recovered processing job should be at the head")
	assert.Equal(t, models.JobStatusPending, s.jobs[j1.ID].Status)
}
