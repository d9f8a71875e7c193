// -----------------------------------------------------------------------
// Browser pool interface consumed by the orchestrator
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/fetchgateway/internal/models"
)

// BrowserPool is the orchestrator's view of the managed Chrome fleet.
type BrowserPool interface {
	// ActiveTabs returns all tabs on instances currently in the active state,
	// used by the dispatcher to find a free worker.
	ActiveTabs() []*models.Tab

	// InstanceForTab returns the BrowserInstance owning a tab, for the
	// direct-first sort and proxy lookups.
	InstanceForTab(slotID int) (*models.BrowserInstance, bool)

	// ScaleUp launches the lowest-index free slot if occupancy thresholds
	// justify it. Fire-and-forget; does not block the caller.
	ScaleUp(queueLen int)

	// RestartBrowser closes and relaunches the instance at slotID.
	RestartBrowser(ctx context.Context, slotID int)

	// RotatePageProfile swaps a tab's bound identity in place. Returns
	// false if no usable identity could be drawn.
	RotatePageProfile(ctx context.Context, slotID, tabIndex int) bool

	// CreateEphemeral launches an unmanaged single-tab browser bound to
	// the given proxy literal. The caller owns its shutdown.
	CreateEphemeral(ctx context.Context, proxyLiteral string) (Tab, func(), error)

	// MarkBusy/ReleaseTab track which tabs are assigned to a job.
	MarkBusy(slotID, tabIndex int, jobID string) bool
	ReleaseTab(slotID, tabIndex int)

	// NavigateBlank clears tab state between retries.
	NavigateBlank(ctx context.Context, slotID, tabIndex int)

	// TabHandle resolves a live Tab implementation for dispatch.
	TabHandle(slotID, tabIndex int) (Tab, bool)

	Shutdown(ctx context.Context)
}
