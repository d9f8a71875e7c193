// -----------------------------------------------------------------------
// Ephemeral execution - a one-off fetch bound to a caller-supplied proxy,
// bypassing the main queue and dedup entirely
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"fmt"

	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// runEphemeral launches an unmanaged single-tab browser bound to
// proxyLiteral and drives a single (non-hedged) bounded-retry attempt on
// it. The job is tracked for GetJob polling but never enters the main
// queue, so it is never subject to head-reinsert or scaleUp.
func (s *Service) runEphemeral(ctx context.Context, normalizedURL string, kind models.JobKind, proxyLiteral string) (*models.Job, error) {
	tab, cleanup, err := s.pool.CreateEphemeral(ctx, proxyLiteral)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: ephemeral launch failed: %w", err)
	}

	job := models.NewJob(normalizedURL, kind, proxyLiteral)
	job.Status = models.JobStatusProcessing

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	common.SafeGo(s.logger, "ephemeral-attempt-"+job.ID, func() {
		defer cleanup()
		outcome := s.runSingleAttempt(ctx, job.ID, tab)
		if outcome.success {
			s.finishSuccess(job.ID, outcome)
			return
		}
		s.mu.Lock()
		if j, ok := s.jobs[job.ID]; ok {
			j.Fail(outcome.errMsg)
		}
		s.mu.Unlock()
	})

	return job.Clone(), nil
}
