// -----------------------------------------------------------------------
// Tab handle - the minimal surface handed to fetch routines
// -----------------------------------------------------------------------

package browserpool

import (
	"context"
	"strconv"
)

// tabHandle wraps a chromedp tab context and satisfies interfaces.Tab,
// the surface the orchestrator hands to a per-kind fetch routine.
type tabHandle struct {
	ctx      context.Context
	slotID   int
	index    int
	hasProxy bool
}

func (t *tabHandle) Context() context.Context { return t.ctx }
func (t *tabHandle) SlotID() int              { return t.slotID }
func (t *tabHandle) Index() int               { return t.index }
func (t *tabHandle) HasProxy() bool           { return t.hasProxy }

func tabKey(slotID, index int) string {
	return strconv.Itoa(slotID) + ":" + strconv.Itoa(index)
}
