// -----------------------------------------------------------------------
// Single attempt - bounded retry loop invoking the per-kind fetch routine
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
)

// attemptOutcome is the terminal result of one tab-bound attempt, a
// single side of a (possibly hedged) pair.
type attemptOutcome struct {
	success   bool
	abandoned bool // critical-browser/proxy-or-network: caller must requeue at head, not fail the job
	data      json.RawMessage
	class     errorClass
	errMsg    string
	tab       interfaces.Tab
}

// runSingleAttempt drives the per-kind fetch routine on tab for up to
// MaxAttempts retries, applying the error classifier's remediation after
// each failure. unsupported-browser does not consume retry budget.
func (s *Service) runSingleAttempt(ctx context.Context, jobID string, tab interfaces.Tab) *attemptOutcome {
	s.mu.Lock()
	job := s.jobs[jobID]
	s.mu.Unlock()
	if job == nil {
		return &attemptOutcome{class: classOther, errMsg: "job not found", tab: tab}
	}

	routine, ok := s.routines[job.Kind]
	if !ok {
		return &attemptOutcome{class: classOther, errMsg: fmt.Sprintf("no fetch routine registered for kind %q", job.Kind), tab: tab}
	}

	maxAttempts := s.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	maxRotations := maxAttempts * 2

	onProgress := func(partial json.RawMessage) {
		s.mu.Lock()
		if j, ok := s.jobs[jobID]; ok {
			j.SetPartial(partial)
		}
		s.mu.Unlock()
		s.persistJob(context.Background(), jobID)
	}

	attempts := 0
	rotations := 0
	for attempts < maxAttempts {
		select {
		case <-ctx.Done():
			return &attemptOutcome{class: classOther, errMsg: "cancelled", tab: tab}
		default:
		}

		result := routine.Fetch(ctx, tab, job.NormalizedURL, onProgress)
		if result.Success {
			return &attemptOutcome{success: true, data: result.Data, tab: tab}
		}

		class := classify(result.Error)
		switch class {
		case classCriticalBrowser:
			s.remediateCriticalBrowser(tab)
			return &attemptOutcome{abandoned: true, class: class, errMsg: result.Error, tab: tab}

		case classProxyOrNetwork:
			s.remediateProxyOrNetwork(tab)
			return &attemptOutcome{abandoned: true, class: class, errMsg: result.Error, tab: tab}

		case classNoContent:
			return &attemptOutcome{class: class, errMsg: "204_NO_CONTENT", tab: tab}

		case classUnsupportedBrowser:
			rotations++
			if rotations > maxRotations {
				return &attemptOutcome{class: classOther, errMsg: result.Error, tab: tab}
			}
			if !s.pool.RotatePageProfile(ctx, tab.SlotID(), tab.Index()) {
				sleepCtx(ctx, s.config.RotationSleep)
			}
			s.pool.NavigateBlank(ctx, tab.SlotID(), tab.Index())
			continue

		default:
			s.pool.NavigateBlank(ctx, tab.SlotID(), tab.Index())
			sleepCtx(ctx, s.config.OtherSleep)
			attempts++
			continue
		}
	}

	return &attemptOutcome{class: classOther, errMsg: "attempts exhausted", tab: tab}
}

// remediateCriticalBrowser restarts the tab's slot; fire-and-forget so
// the attempt's caller is not blocked on the restart's cool-off.
func (s *Service) remediateCriticalBrowser(tab interfaces.Tab) {
	slot := tab.SlotID()
	common.SafeGo(s.logger, fmt.Sprintf("restart-slot-%d", slot), func() {
		s.pool.RestartBrowser(context.Background(), slot)
	})
}

// remediateProxyOrNetwork marks the tab's bound proxy bad (if any) and
// restarts the slot.
func (s *Service) remediateProxyOrNetwork(tab interfaces.Tab) {
	slot := tab.SlotID()
	if inst, ok := s.pool.InstanceForTab(slot); ok && inst.BoundProxy != nil {
		s.proxies.MarkBad(inst.BoundProxy)
	}
	common.SafeGo(s.logger, fmt.Sprintf("restart-slot-%d", slot), func() {
		s.pool.RestartBrowser(context.Background(), slot)
	})
}

// sleepCtx sleeps for d or returns early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
