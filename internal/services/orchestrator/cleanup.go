// -----------------------------------------------------------------------
// Cleanup sweep - removes terminal jobs past the retention window
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"time"
)

// cleanupSweep removes completed/failed Jobs whose UpdatedAt is older
// than JobRetention (default 24h), per §4.4's hourly sweep.
func (s *Service) cleanupSweep(ctx context.Context) {
	retention := s.config.JobRetention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	stale := make([]string, 0)
	for id, job := range s.jobs {
		if job.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		job := s.jobs[id]
		delete(s.jobs, id)
		if s.byURL[job.NormalizedURL] == id {
			delete(s.byURL, job.NormalizedURL)
		}
	}
	s.mu.Unlock()

	if s.storage == nil || len(stale) == 0 {
		return
	}
	for _, id := range stale {
		if err := s.storage.DeleteJob(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("job_id", id).Msg("orchestrator: failed to delete stale job")
		}
	}
	s.logger.Info().Int("removed", len(stale)).Msg("orchestrator: cleanup sweep complete")
}
