// -----------------------------------------------------------------------
// Fetch Orchestrator - implements the job queue, dedup and dispatch loop
// described in spec.md §4.4
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/metrics"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// ErrNotReady is returned by Enqueue while the orchestrator is still
// loading persisted state, per the readiness bit described in §7.
var ErrNotReady = fmt.Errorf("orchestrator: not ready")

// Service is the single synchronization domain owning the jobs map, the
// FIFO queue vector and the dispatch loop's re-entrancy guard.
type Service struct {
	mu sync.Mutex

	logger     arbor.ILogger
	storage    interfaces.QueueStorage
	config     *common.OrchestratorConfig
	pool       interfaces.BrowserPool
	proxies    interfaces.ProxyInventory
	identities interfaces.IdentityProfiles
	results    interfaces.ResultStore
	routines   map[models.JobKind]interfaces.FetchRoutine
	metrics    *metrics.Metrics

	jobs  map[string]*models.Job // by job id
	byURL map[string]string      // normalizedURL -> most recent job id
	queue []string               // FIFO of pending job ids

	dispatching bool
	ready       bool

	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs the orchestrator, replays persisted jobs and queue
// order, and demotes any job left `processing` back to `pending` at the
// head of the queue (crash recovery, per §6's persistence contract).
func New(ctx context.Context, logger arbor.ILogger, storage interfaces.QueueStorage, config *common.OrchestratorConfig, pool interfaces.BrowserPool, proxies interfaces.ProxyInventory, identities interfaces.IdentityProfiles, results interfaces.ResultStore, routines map[models.JobKind]interfaces.FetchRoutine) (*Service, error) {
	s := &Service{
		logger:     logger,
		storage:    storage,
		config:     config,
		pool:       pool,
		proxies:    proxies,
		identities: identities,
		results:    results,
		routines:   routines,
		jobs:       make(map[string]*models.Job),
		byURL:      make(map[string]string),
	}

	if storage != nil {
		if err := s.loadAndRecover(ctx); err != nil {
			return nil, fmt.Errorf("orchestrator: failed to load persisted state: %w", err)
		}
	}

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()

	return s, nil
}

// loadAndRecover replays ListJobs/LoadQueueOrder and demotes processing
// jobs to pending at the queue head, preserving their relative order.
func (s *Service) loadAndRecover(ctx context.Context) error {
	jobs, err := s.storage.ListJobs(ctx)
	if err != nil {
		return err
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })

	order, err := s.storage.LoadQueueOrder(ctx)
	if err != nil {
		order = nil
	}

	s.mu.Lock()
	for _, j := range jobs {
		s.jobs[j.ID] = j
		s.byURL[j.NormalizedURL] = j.ID
	}

	recovered := make([]string, 0)
	rest := make([]string, 0, len(order))
	seen := make(map[string]bool)
	for _, id := range order {
		job, ok := s.jobs[id]
		if !ok {
			continue
		}
		seen[id] = true
		if job.Status == models.JobStatusProcessing {
			job.Status = models.JobStatusPending
			job.UpdatedAt = time.Now().UTC()
			recovered = append(recovered, id)
			continue
		}
		if job.Status == models.JobStatusPending {
			rest = append(rest, id)
		}
	}
	// Any pending/processing job not present in the persisted queue order
	// (e.g. order write lost to a crash) is still queued, so no live job is
	// silently dropped: processing ones join the recovered head group after
	// the ordered ones, pending ones go after the ordered pending jobs.
	for _, j := range jobs {
		if seen[j.ID] {
			continue
		}
		if j.Status == models.JobStatusProcessing {
			j.Status = models.JobStatusPending
			j.UpdatedAt = time.Now().UTC()
			recovered = append(recovered, j.ID)
		} else if j.Status == models.JobStatusPending {
			rest = append(rest, j.ID)
		}
	}

	s.queue = append(recovered, rest...)
	s.mu.Unlock()

	for _, id := range recovered {
		job := s.jobs[id]
		if err := s.storage.SaveJob(ctx, job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", id).Msg("orchestrator: failed to persist recovered job")
		}
	}
	if err := s.storage.SaveQueueOrder(ctx, s.queue); err != nil {
		s.logger.Warn().Err(err).Msg("orchestrator: failed to persist recovered queue order")
	}

	s.logger.Info().Int("jobs", len(s.jobs)).Int("recovered", len(recovered)).Int("queued", len(s.queue)).Msg("orchestrator: crash recovery complete")
	return nil
}

// SetMetrics attaches a metrics sink; nil is safe and disables recording.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Start launches the periodic cleanup sweep.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	interval := s.config.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() { s.cleanupSweep(ctx) })
	if err != nil {
		s.logger.Warn().Err(err).Msg("orchestrator: failed to schedule cleanup sweep, falling back to ticker")
		s.wg.Add(1)
		common.SafeGoWithContext(ctx, s.logger, "orchestrator-cleanup-ticker", func() {
			defer s.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.cleanupSweep(ctx)
				}
			}
		})
		return
	}
	s.cron.Start()
}

// Shutdown stops the cleanup sweep. Collaborating services (pool,
// proxies, identities, result store) are owned and stopped by the
// composition root, not here.
func (s *Service) Shutdown(ctx context.Context) {
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Enqueue normalizes url and returns the live Job for it if one exists,
// otherwise creates and persists a new pending Job. An ephemeralProxy
// bypasses the main queue with an immediate one-off execution.
func (s *Service) Enqueue(ctx context.Context, rawURL string, kind models.JobKind, ephemeralProxy string) (*models.Job, error) {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if !ready {
		return nil, ErrNotReady
	}

	normalized, err := models.NormalizeURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	if ephemeralProxy != "" {
		return s.runEphemeral(ctx, normalized, kind, ephemeralProxy)
	}

	s.mu.Lock()
	if id, ok := s.byURL[normalized]; ok {
		if job, ok := s.jobs[id]; ok && job.IsLive() {
			s.mu.Unlock()
			return job.Clone(), nil
		}
	}
	s.mu.Unlock()

	if payload, ok := s.results.GetResult(normalized); ok {
		job := models.NewJob(normalized, kind, "")
		job.Complete(payload)
		return job, nil
	}

	job := models.NewJob(normalized, kind, "")

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.byURL[normalized] = job.ID
	s.queue = append(s.queue, job.ID)
	queueSnapshot := append([]string(nil), s.queue...)
	s.mu.Unlock()

	if s.storage != nil {
		if err := s.storage.SaveJob(ctx, job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("orchestrator: failed to persist new job")
		}
		if err := s.storage.SaveQueueOrder(ctx, queueSnapshot); err != nil {
			s.logger.Warn().Err(err).Msg("orchestrator: failed to persist queue order")
		}
	}

	s.triggerDispatch()
	return job.Clone(), nil
}

// GetJob returns a snapshot of the in-memory job, which in-flight fetches
// update directly. Persistent storage is read only for ids not held in
// memory.
func (s *Service) GetJob(ctx context.Context, id string) (*models.Job, bool) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		clone := job.Clone()
		s.mu.Unlock()
		return clone, true
	}
	s.mu.Unlock()

	if s.storage == nil {
		return nil, false
	}
	persisted, err := s.storage.GetJob(ctx, id)
	if err != nil || persisted == nil {
		return nil, false
	}
	return persisted.Clone(), true
}

// GetJobByURL returns the most recent job for the normalized URL.
func (s *Service) GetJobByURL(ctx context.Context, rawURL string) (*models.Job, bool) {
	normalized, err := models.NormalizeURL(rawURL)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	id, ok := s.byURL[normalized]
	s.mu.Unlock()
	if ok {
		return s.GetJob(ctx, id)
	}

	if s.storage == nil {
		return nil, false
	}
	persisted, err := s.storage.GetJobByURL(ctx, normalized)
	if err != nil || persisted == nil {
		return nil, false
	}
	s.mu.Lock()
	s.jobs[persisted.ID] = persisted
	s.byURL[normalized] = persisted.ID
	s.mu.Unlock()
	return persisted.Clone(), true
}

// persistJob writes the current in-memory state of a job to storage,
// best-effort.
func (s *Service) persistJob(ctx context.Context, jobID string) {
	if s.storage == nil {
		return
	}
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	var clone *models.Job
	if ok {
		clone = job.Clone()
	}
	s.mu.Unlock()
	if clone == nil {
		return
	}
	if err := s.storage.SaveJob(ctx, clone); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("orchestrator: failed to persist job")
	}
}

// persistQueueOrder writes the current queue vector to storage.
func (s *Service) persistQueueOrder(ctx context.Context) {
	if s.storage == nil {
		return
	}
	s.mu.Lock()
	snapshot := append([]string(nil), s.queue...)
	s.mu.Unlock()
	if err := s.storage.SaveQueueOrder(ctx, snapshot); err != nil {
		s.logger.Warn().Err(err).Msg("orchestrator: failed to persist queue order")
	}
}

// requeueHead pushes jobID back to the front of the queue, per the
// head-reinsert policy for recoverable failures.
func (s *Service) requeueHead(jobID string) {
	s.mu.Lock()
	s.queue = append([]string{jobID}, s.queue...)
	s.mu.Unlock()
}

func (s *Service) jobStillProcessing(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	return ok && job.Status == models.JobStatusProcessing
}
