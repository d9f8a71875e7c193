// -----------------------------------------------------------------------
// Registry - builds the per-kind routine map the orchestrator dispatches
// against
// -----------------------------------------------------------------------

package fetchroutine

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// New builds the reference {product, store, category} routine set. It
// exists to prove the orchestrator's control flow against a realistic
// site shape, not to be production extraction logic for any particular
// origin.
func New(logger arbor.ILogger, results interfaces.ResultStore, client *http.Client) map[models.JobKind]interfaces.FetchRoutine {
	return map[models.JobKind]interfaces.FetchRoutine{
		models.JobKindProduct:  newProductRoutine(logger, results, client),
		models.JobKindStore:    newStoreRoutine(logger, results),
		models.JobKindCategory: newCategoryRoutine(logger),
	}
}
