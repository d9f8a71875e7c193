// -----------------------------------------------------------------------
// Result store interface - preload/store-meta/result caches
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"encoding/json"
)

// ResultStore serves progressive and final payloads to the orchestrator
// and fetch routines, backed by in-memory TTL maps with periodic
// persistence snapshots.
type ResultStore interface {
	GetResult(normalizedURL string) (json.RawMessage, bool)
	SetResult(normalizedURL string, payload json.RawMessage)

	GetPreload(storeURL, productID string) (json.RawMessage, bool)
	SetPreload(storeURL, productID string, payload json.RawMessage)

	GetStoreMeta(storeURL string) (string, bool)
	SetStoreMeta(storeURL, channelID string)

	// Start launches the periodic snapshot-persistence loop.
	Start(ctx context.Context)
	Stop()
}
