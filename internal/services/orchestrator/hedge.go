// -----------------------------------------------------------------------
// Hedged execution - races a second attempt when the first lags
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"time"

	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// hedgedExecute starts attempt A on tabA (already marked busy by the
// dispatch loop). If A is still running when the hedge timer fires and
// the job is still processing, a second attempt B starts on a different
// free tab, sharing one cancellation signal. The first success wins; on
// a fully-failed pair, the last-received outcome's classification decides
// the job's fate.
func (s *Service) hedgedExecute(ctx context.Context, jobID string, tabA interfaces.Tab) {
	sharedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomeCh := make(chan *attemptOutcome, 2)
	outstanding := 1
	common.SafeGo(s.logger, "hedge-attempt-a-"+jobID, func() {
		outcomeCh <- s.runSingleAttempt(sharedCtx, jobID, tabA)
	})

	hedgeTimeout := s.config.HedgeTimeout
	if hedgeTimeout <= 0 {
		hedgeTimeout = 2 * time.Second
	}
	timer := time.NewTimer(hedgeTimeout)
	defer timer.Stop()

	var tabB interfaces.Tab
	var first, last *attemptOutcome
	timerArmed := true

	for outstanding > 0 {
		var timerCh <-chan time.Time
		if timerArmed {
			timerCh = timer.C
		}

		select {
		case <-timerCh:
			timerArmed = false
			if first == nil && s.jobStillProcessing(jobID) {
				if t, ok := s.pickAndMarkTab(jobID, tabA.SlotID()); ok {
					tabB = t
					outstanding++
					common.SafeGo(s.logger, "hedge-attempt-b-"+jobID, func() {
						outcomeCh <- s.runSingleAttempt(sharedCtx, jobID, tabB)
					})
				}
			}

		case outc := <-outcomeCh:
			outstanding--
			if outc.success && first == nil {
				first = outc
				cancel()
			} else {
				last = outc
			}
		}
	}

	s.releaseTab(tabA)
	if tabB != nil {
		s.releaseTab(tabB)
	}

	if s.metrics != nil {
		winner := "none"
		switch {
		case first != nil && tabB != nil && first.tab != nil && first.tab.SlotID() == tabB.SlotID():
			winner = "b"
		case first != nil:
			winner = "a"
		}
		s.metrics.HedgeOutcomes.WithLabelValues(winner).Inc()
	}

	if first != nil {
		s.finishSuccess(jobID, first)
		return
	}
	s.finishFailure(jobID, last)
}

// finishSuccess finalizes the job with the winning attempt's payload,
// caches the result, marks the used identity/proxy working, and for
// store jobs schedules follow-up product jobs.
func (s *Service) finishSuccess(jobID string, outcome *attemptOutcome) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	job.Complete(outcome.data)
	normalizedURL := job.NormalizedURL
	kind := job.Kind
	s.mu.Unlock()

	s.persistJob(context.Background(), jobID)
	s.results.SetResult(normalizedURL, outcome.data)

	if outcome.tab != nil && outcome.tab.SlotID() >= 0 {
		if inst, ok := s.pool.InstanceForTab(outcome.tab.SlotID()); ok {
			if inst.Identity != nil {
				s.identities.MarkWorking(inst.Identity.UserAgent)
			}
			if inst.BoundProxy != nil {
				s.proxies.MarkWorking(inst.BoundProxy)
			}
		}
	}

	if kind == models.JobKindStore {
		s.scheduleStoreFollowups(normalizedURL, outcome.data)
	}

	if s.metrics != nil {
		s.metrics.JobOutcomes.WithLabelValues(string(kind), "completed").Inc()
	}
}

// finishFailure applies the last outcome's classification: critical-
// browser/proxy-or-network requeue the job at the head as pending
// (remediation already ran inside runSingleAttempt); everything else is
// a terminal failure.
func (s *Service) finishFailure(jobID string, outcome *attemptOutcome) {
	if outcome == nil {
		outcome = &attemptOutcome{class: classOther, errMsg: "both hedged attempts produced no outcome"}
	}

	switch outcome.class {
	case classCriticalBrowser, classProxyOrNetwork:
		s.mu.Lock()
		if job, ok := s.jobs[jobID]; ok {
			job.Status = models.JobStatusPending
		}
		s.mu.Unlock()
		s.requeueHead(jobID)
		s.persistJob(context.Background(), jobID)
		s.persistQueueOrder(context.Background())

	default:
		s.mu.Lock()
		job, ok := s.jobs[jobID]
		var kind models.JobKind
		if ok {
			job.Fail(outcome.errMsg)
			kind = job.Kind
		}
		s.mu.Unlock()
		s.persistJob(context.Background(), jobID)
		if ok && s.metrics != nil {
			s.metrics.JobOutcomes.WithLabelValues(string(kind), "failed").Inc()
		}
	}
}
