// -----------------------------------------------------------------------
// Composition root - wires storage, the four control-plane services and
// the reference fetch routines into a runnable application
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/metrics"
	"github.com/ternarybob/fetchgateway/internal/models"
	"github.com/ternarybob/fetchgateway/internal/services/browserpool"
	"github.com/ternarybob/fetchgateway/internal/services/fetchroutine"
	"github.com/ternarybob/fetchgateway/internal/services/identity"
	"github.com/ternarybob/fetchgateway/internal/services/orchestrator"
	"github.com/ternarybob/fetchgateway/internal/services/proxy"
	"github.com/ternarybob/fetchgateway/internal/services/resultstore"
	"github.com/ternarybob/fetchgateway/internal/storage"
)

// App holds every long-lived component the gateway needs: storage, the
// four control-plane services (proxy inventory, identity profiles,
// browser pool, orchestrator), the result store, and the registry of
// per-kind fetch routines the orchestrator dispatches against.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	Proxies      interfaces.ProxyInventory
	Identities   interfaces.IdentityProfiles
	Pool         interfaces.BrowserPool
	Results      interfaces.ResultStore
	Orchestrator *orchestrator.Service
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry

	ctx    context.Context
	cancel context.CancelFunc
}

// New initializes storage, every control-plane service in dependency
// order (proxy inventory and identity profiles first since the browser
// pool's launch protocol draws from both), starts their background
// loops, and runs crash recovery on the orchestrator's persisted queue.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		Config: cfg,
		Logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	storageManager, err := storage.NewStorageManager(logger, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("app: failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	a.Registry = prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New("fetchgateway", a.Registry)
	}

	identities, err := identity.New(ctx, logger, storageManager.Identity(), &cfg.Identity)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("app: failed to initialize identity profiles: %w", err)
	}
	a.Identities = identities

	proxies, err := proxy.New(ctx, logger, storageManager.Proxy(), &cfg.Proxy)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("app: failed to initialize proxy inventory: %w", err)
	}
	a.Proxies = proxies
	proxies.Start(ctx)

	a.Pool = browserpool.New(ctx, logger, &cfg.BrowserPool, identities, proxies)

	results := resultstore.New(logger, storageManager.Cache(), &cfg.Cache)
	a.Results = results
	results.Start(ctx)

	routines := fetchroutine.New(logger, results, &http.Client{Timeout: 30 * time.Second})

	orch, err := orchestrator.New(ctx, logger, storageManager.Queue(), &cfg.Orchestrator, a.Pool, proxies, identities, results, routines)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("app: failed to initialize orchestrator: %w", err)
	}
	if a.Metrics != nil {
		orch.SetMetrics(a.Metrics)
	}
	a.Orchestrator = orch
	orch.Start(ctx)

	logger.Info().
		Int("min_browsers", cfg.BrowserPool.MinBrowsers).
		Int("max_browsers", cfg.BrowserPool.MaxBrowsers).
		Str("proxy_rotation", cfg.Proxy.RotationStrategy).
		Msg("app: all services initialized")

	return a, nil
}

// Enqueue is the thin pass-through the HTTP surface calls; kept on App so
// handlers depend on one composition object rather than reaching into
// individual services.
func (a *App) Enqueue(ctx context.Context, rawURL string, kind models.JobKind, ephemeralProxy string) (*models.Job, error) {
	return a.Orchestrator.Enqueue(ctx, rawURL, kind, ephemeralProxy)
}

// Close shuts down every service in reverse dependency order, then the
// storage backend.
func (a *App) Close() error {
	a.Logger.Info().Msg("app: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if a.Orchestrator != nil {
		a.Orchestrator.Shutdown(shutdownCtx)
	}
	if a.Results != nil {
		a.Results.Stop()
	}
	if a.Pool != nil {
		a.Pool.Shutdown(shutdownCtx)
	}
	if a.Proxies != nil {
		a.Proxies.Stop()
	}

	a.cancel()

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("app: failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("app: shutdown complete")
	return nil
}
