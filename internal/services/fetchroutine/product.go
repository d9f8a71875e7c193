// -----------------------------------------------------------------------
// Product fetch routine - preload-first, direct-API, bootstrap-fallback
// -----------------------------------------------------------------------

package fetchroutine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
)

// productRoutine implements interfaces.FetchRoutine for
// models.JobKindProduct, per §9 open question (c)'s cleaner phrasing:
// attempt the direct API iff both channelId and the target preload are
// already cached; otherwise bootstrap from the store page first.
type productRoutine struct {
	logger  arbor.ILogger
	results interfaces.ResultStore
	client  *http.Client
}

// newProductRoutine constructs the product fetch routine.
func newProductRoutine(logger arbor.ILogger, results interfaces.ResultStore, client *http.Client) *productRoutine {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &productRoutine{logger: logger, results: results, client: client}
}

func (r *productRoutine) Fetch(ctx context.Context, tab interfaces.Tab, rawURL string, onProgress interfaces.OnProgress) interfaces.FetchResult {
	storeURL, productID := splitProductURL(rawURL)
	if productID == "" {
		return interfaces.FetchResult{Success: false, Error: "OTHER: product url missing id parameter"}
	}

	channelID, hasChannel := r.results.GetStoreMeta(storeURL)
	preload, hasPreload := r.results.GetPreload(storeURL, productID)

	if hasPreload {
		onProgress(preload)
	}

	if hasChannel && hasPreload {
		if res := r.callAPI(ctx, storeURL, productID, channelID); res.Success {
			return res
		}
		// retryable HTTP outcome: fall through to the bootstrap path.
	}

	state, err := extractEmbeddedState(ctx, tab.Context(), storeURL)
	if err != nil {
		return interfaces.FetchResult{Success: false, Error: classifyExtractionError(err)}
	}
	for id, payload := range state.Products {
		r.results.SetPreload(storeURL, id, payload)
	}
	r.results.SetStoreMeta(storeURL, state.ChannelID)

	if target, ok := state.Products[productID]; ok {
		onProgress(target)
	}

	return r.callAPI(ctx, storeURL, productID, state.ChannelID)
}

// callAPI requests the target product directly, using storeURL as the
// referrer the way a browser-driven navigation would.
func (r *productRoutine) callAPI(ctx context.Context, storeURL, productID, channelID string) interfaces.FetchResult {
	apiURL := fmt.Sprintf("%s/api/products/%s?channelId=%s", storeURL, url.QueryEscape(productID), url.QueryEscape(channelID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return interfaces.FetchResult{Success: false, Error: fmt.Sprintf("OTHER: %v", err)}
	}
	req.Header.Set("Referer", storeURL)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return interfaces.FetchResult{Success: false, Error: fmt.Sprintf("PROXY_OR_NETWORK: %v", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return interfaces.FetchResult{Success: false, Error: "NO_CONTENT: product api returned 204"}
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusForbidden, resp.StatusCode >= 500:
		return interfaces.FetchResult{Success: false, Error: fmt.Sprintf("PROXY_OR_NETWORK: product api status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return interfaces.FetchResult{Success: false, Error: fmt.Sprintf("OTHER: product api status %d", resp.StatusCode)}
	}

	var payload json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return interfaces.FetchResult{Success: false, Error: fmt.Sprintf("OTHER: decode product api response: %v", err)}
	}
	return interfaces.FetchResult{Success: true, Data: payload}
}

// splitProductURL separates the store's base URL from the product id
// carried as the allow-listed "id" query parameter (models.NormalizeURL
// keeps only id/sku/variant, so product job URLs always look like
// "https://store/path?id=X").
func splitProductURL(rawURL string) (storeURL, productID string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, ""
	}
	productID = u.Query().Get("id")
	u.RawQuery = ""
	return strings.TrimRight(u.String(), "?"), productID
}

// classifyExtractionError maps a navigation/extraction failure onto one
// of the orchestrator's recognized error-string prefixes.
func classifyExtractionError(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "UNSUPPORTED_BROWSER") {
		return msg
	}
	if strings.Contains(msg, "navigate") {
		return fmt.Sprintf("PROXY_OR_NETWORK: %v", err)
	}
	return fmt.Sprintf("OTHER: %v", err)
}
