// -----------------------------------------------------------------------
// Store fetch routine - navigates a store page and extracts its
// embedded bootstrap state
// -----------------------------------------------------------------------

package fetchroutine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
)

// storeRoutine implements interfaces.FetchRoutine for models.JobKindStore:
// navigate, extract embedded state, cache channelId and every product's
// preload payload, return the full id set for the orchestrator's
// follow-up fan-out.
type storeRoutine struct {
	logger  arbor.ILogger
	results interfaces.ResultStore
}

// newStoreRoutine constructs the store fetch routine.
func newStoreRoutine(logger arbor.ILogger, results interfaces.ResultStore) *storeRoutine {
	return &storeRoutine{logger: logger, results: results}
}

// storeResult is the final payload handed back to callers of GET
// /fetch/{id} for a store-kind job.
type storeResult struct {
	ChannelID     string                     `json:"channelId"`
	AllProductIDs []string                   `json:"allProductIds"`
	ProductsMap   map[string]json.RawMessage `json:"productsMap"`
}

func (r *storeRoutine) Fetch(ctx context.Context, tab interfaces.Tab, url string, onProgress interfaces.OnProgress) interfaces.FetchResult {
	state, err := extractEmbeddedState(ctx, tab.Context(), url)
	if err != nil {
		return interfaces.FetchResult{Success: false, Error: classifyExtractionError(err)}
	}

	ids := make([]string, 0, len(state.Products))
	for id, payload := range state.Products {
		ids = append(ids, id)
		r.results.SetPreload(url, id, payload)
	}
	r.results.SetStoreMeta(url, state.ChannelID)

	result := storeResult{
		ChannelID:     state.ChannelID,
		AllProductIDs: ids,
		ProductsMap:   state.Products,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return interfaces.FetchResult{Success: false, Error: fmt.Sprintf("OTHER: %v", err)}
	}
	return interfaces.FetchResult{Success: true, Data: data}
}
