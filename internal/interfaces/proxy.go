// -----------------------------------------------------------------------
// Proxy inventory and rotating-provider interfaces
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/fetchgateway/internal/models"
)

// ProxyInventory provides a best-available proxy per request and keeps
// the pool fresh and honest via a perpetual validation loop.
type ProxyInventory interface {
	Acquire(protocolFilter, sessionID string) (*models.Proxy, error)
	Release(p *models.Proxy)
	MarkSuccess(p *models.Proxy)
	MarkBad(p *models.Proxy)
	MarkWorking(p *models.Proxy)

	AddSource(ctx context.Context, name, location string) error
	DeleteSource(ctx context.Context, name string) error

	AddRotatingProvider(name string, provider RotatingProvider) error
	RemoveRotatingProvider(name string) error

	Start(ctx context.Context)
	Stop()
}

// RotatingProvider abstracts an upstream proxy provider: a list-mode
// provider refreshing a cached list, or a gateway-mode provider returning
// a fixed host:port with a synthetic per-call username.
type RotatingProvider interface {
	Initialize(config map[string]string) error
	Acquire() (*models.Proxy, error)
	MarkBad(p *models.Proxy)
	Stats() map[string]any
	HealthCheck(ctx context.Context) error
	Shutdown()
}
