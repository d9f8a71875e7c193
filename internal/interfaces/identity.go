// -----------------------------------------------------------------------
// Identity profiles interface
// -----------------------------------------------------------------------

package interfaces

import "github.com/ternarybob/fetchgateway/internal/models"

// IdentityProfiles serves plausible desktop browser identities and
// remembers which ones survived an origin's fingerprint checks.
type IdentityProfiles interface {
	Random() (*models.Identity, bool)
	Release(i *models.Identity)
	MarkWorking(userAgent string)
	IsWorking(userAgent string) bool
}
