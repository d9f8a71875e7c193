// -----------------------------------------------------------------------
// Store follow-ups - spawns product jobs for every id a store scrape
// reported, bounded per spec.md §9 open question (b)
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/fetchgateway/internal/models"
)

// storePayload is the minimum schema the orchestrator reads out of an
// otherwise-opaque store result: the set of product ids to follow up on.
// Everything else in the payload is treated as an opaque blob.
type storePayload struct {
	AllProductIDs []string `json:"allProductIds"`
}

// scheduleStoreFollowups enqueues a product Job for every id the store
// scrape returned, capped at MaxStoreFollowups to bound fan-out from a
// single store page.
func (s *Service) scheduleStoreFollowups(storeURL string, data json.RawMessage) {
	var payload storePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.logger.Debug().Err(err).Str("store_url", storeURL).Msg("orchestrator: store payload has no follow-up ids")
		return
	}

	max := s.config.MaxStoreFollowups
	if max <= 0 {
		max = 200
	}
	if len(payload.AllProductIDs) > max {
		s.logger.Warn().Int("total", len(payload.AllProductIDs)).Int("cap", max).Str("store_url", storeURL).Msg("orchestrator: store follow-ups truncated")
	}

	count := 0
	for _, id := range payload.AllProductIDs {
		if count >= max {
			break
		}
		productURL := fmt.Sprintf("%s?id=%s", storeURL, id)
		if _, err := s.Enqueue(context.Background(), productURL, models.JobKindProduct, ""); err != nil {
			s.logger.Warn().Err(err).Str("product_url", productURL).Msg("orchestrator: failed to enqueue store follow-up")
			continue
		}
		count++
	}
}
