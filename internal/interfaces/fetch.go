// -----------------------------------------------------------------------
// Fetch routine collaborator interface (§4.5)
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"encoding/json"
)

// OnProgress is invoked zero or more times by a fetch routine before its
// terminal return, each time carrying a partial payload.
type OnProgress func(partial json.RawMessage)

// FetchResult is the terminal outcome of a single fetch attempt.
type FetchResult struct {
	Success bool
	Data    json.RawMessage
	Error   string // one of the classified error strings recognized by the orchestrator's classifier
}

// Tab is the minimal surface the orchestrator hands to a fetch routine;
// concrete implementations wrap a chromedp tab context.
type Tab interface {
	Context() context.Context
	SlotID() int
	Index() int
	HasProxy() bool
}

// FetchRoutine drives a browser tab to retrieve and parse one URL's data.
// The orchestrator is agnostic to how a routine obtains its result; it
// only interprets FetchResult.Error against its classification taxonomy.
type FetchRoutine interface {
	Fetch(ctx context.Context, tab Tab, url string, onProgress OnProgress) FetchResult
}
