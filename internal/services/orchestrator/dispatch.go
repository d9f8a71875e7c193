// -----------------------------------------------------------------------
// Dispatch loop - single re-entrant-guarded loop assigning jobs to tabs
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// triggerDispatch starts the dispatch loop unless one is already running;
// re-entrant calls from enqueue/attempt-completion are idempotent.
func (s *Service) triggerDispatch() {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	s.mu.Unlock()

	common.SafeGo(s.logger, "orchestrator-dispatch-loop", s.dispatchLoop)
}

// dispatchLoop pops jobs while the queue is non-empty and a tab is free,
// launching hedgedExecute without awaiting it. It returns (clearing the
// re-entrancy flag) once the queue drains or no tab is currently free.
func (s *Service) dispatchLoop() {
	defer func() {
		s.mu.Lock()
		s.dispatching = false
		s.mu.Unlock()
	}()

	for {
		s.mu.Lock()
		queueLen := len(s.queue)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.QueueDepth.Set(float64(queueLen))
		}
		if queueLen == 0 {
			return
		}

		s.pool.ScaleUp(queueLen)

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		jobID := s.queue[0]
		job, ok := s.jobs[jobID]
		if !ok || job.Status != models.JobStatusPending {
			s.queue = s.queue[1:]
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		tab, ok := s.pickAndMarkTab(jobID, -1)
		if !ok {
			return // no free tab; jobID stays at the head
		}

		s.mu.Lock()
		s.queue = s.queue[1:]
		job.Status = models.JobStatusProcessing
		job.UpdatedAt = time.Now().UTC()
		s.mu.Unlock()

		s.persistJob(context.Background(), jobID)
		s.persistQueueOrder(context.Background())

		common.SafeGo(s.logger, fmt.Sprintf("hedged-execute-%s", jobID), func() {
			s.hedgedExecute(context.Background(), jobID, tab)
			s.triggerDispatch()
		})
	}
}

// pickAndMarkTab enumerates active tabs, excludes excludeSlot (used by
// the hedge's second attempt to prefer a different browser), sorts
// direct-first, and atomically claims the first candidate that is still
// free by the time MarkBusy runs.
func (s *Service) pickAndMarkTab(jobID string, excludeSlot int) (interfaces.Tab, bool) {
	type candidate struct {
		slot, index int
		direct      bool
	}

	tabs := s.pool.ActiveTabs()
	now := time.Now()
	candidates := make([]candidate, 0, len(tabs))
	for _, t := range tabs {
		if t.OwningSlotID == excludeSlot {
			continue
		}
		if !t.IsFree() || t.IsResting(now) {
			continue
		}
		inst, ok := s.pool.InstanceForTab(t.OwningSlotID)
		direct := ok && !inst.HasProxy()
		candidates = append(candidates, candidate{slot: t.OwningSlotID, index: t.Index, direct: direct})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].direct && !candidates[j].direct
	})

	for _, c := range candidates {
		if s.pool.MarkBusy(c.slot, c.index, jobID) {
			tab, ok := s.pool.TabHandle(c.slot, c.index)
			if ok {
				return tab, true
			}
			s.pool.ReleaseTab(c.slot, c.index)
		}
	}
	return nil, false
}

func (s *Service) releaseTab(tab interfaces.Tab) {
	if tab == nil || tab.SlotID() < 0 {
		return
	}
	s.pool.ReleaseTab(tab.SlotID(), tab.Index())
}
