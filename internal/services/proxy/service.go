// -----------------------------------------------------------------------
// Proxy Inventory service - implements interfaces.ProxyInventory
// -----------------------------------------------------------------------

package proxy

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// Service holds the validated proxy pool, the persistent whitelist, the
// in-memory bad set, configured sources and attached rotating providers,
// and runs the perpetual background validation loop.
type Service struct {
	mu sync.Mutex

	logger  arbor.ILogger
	storage interfaces.ProxyStorage
	config  *common.ProxyConfig
	validator *Validator
	rng     *rand.Rand

	pool      []*models.Proxy
	whitelist map[string]bool
	badSet    map[string]bool
	sources   []models.ProxySource
	providers map[string]interfaces.RotatingProvider
	sticky    map[string]string // sessionId -> proxy key

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs the proxy inventory, loading any persisted pool/whitelist/sources.
func New(ctx context.Context, logger arbor.ILogger, storage interfaces.ProxyStorage, config *common.ProxyConfig) (*Service, error) {
	s := &Service{
		logger:    logger,
		storage:   storage,
		config:    config,
		validator: NewValidator(config),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		whitelist: make(map[string]bool),
		badSet:    make(map[string]bool),
		providers: make(map[string]interfaces.RotatingProvider),
		sticky:    make(map[string]string),
	}

	if storage != nil {
		if pool, err := storage.LoadPool(ctx); err == nil {
			s.pool = pool
		}
		if keys, err := storage.LoadWhitelist(ctx); err == nil {
			for _, k := range keys {
				s.whitelist[k] = true
			}
		}
		if sources, err := storage.LoadSources(ctx); err == nil {
			s.sources = sources
		}
	}

	if envProxies := LoadAllowListEnv(config.AllowListEnv, os.Getenv); len(envProxies) > 0 {
		s.mu.Lock()
		s.pool = append(s.pool, envProxies...)
		s.mu.Unlock()
		logger.Info().Int("count", len(envProxies)).Msg("proxy: loaded allow-list from environment")
	}

	logger.Info().Int("pool_size", len(s.pool)).Int("whitelist_size", len(s.whitelist)).Msg("proxy: inventory initialized")
	return s, nil
}

// Start launches the perpetual validation loop.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	interval := s.config.ValidationInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	s.wg.Add(1)
	common.SafeGoWithContext(ctx, s.logger, "proxy-validation-loop", func() {
		defer s.wg.Done()
		s.runValidationCycle(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runValidationCycle(ctx)
			}
		}
	})
}

// Stop halts the validation loop and shuts down attached providers.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	providers := make([]interfaces.RotatingProvider, 0, len(s.providers))
	for _, p := range s.providers {
		providers = append(providers, p)
	}
	s.mu.Unlock()
	for _, p := range providers {
		p.Shutdown()
	}
}

func (s *Service) runValidationCycle(ctx context.Context) {
	s.mu.Lock()
	sources := append([]models.ProxySource(nil), s.sources...)
	revalidateThreshold := s.config.RevalidationThreshold
	candidates := make([]*models.Proxy, 0, len(s.pool))
	for _, p := range s.pool {
		if s.badSet[p.Key()] {
			continue
		}
		if p.IsRotating {
			continue // rotating-provider proxies are assumed live
		}
		if time.Since(p.LastValidatedAt) >= revalidateThreshold {
			candidates = append(candidates, p)
		}
	}
	s.mu.Unlock()

	client := &http.Client{Timeout: s.config.ValidationTimeout}
	for _, src := range sources {
		fetched, err := FetchSource(src, client)
		if err != nil {
			s.logger.Warn().Err(err).Str("source", src.Name).Msg("proxy: failed to fetch source")
			continue
		}
		candidates = append(candidates, fetched...)
	}

	validated := s.validator.ValidateBatch(ctx, candidates)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Rotating-provider proxies are carried over unchanged; everything
	// else is replaced by this cycle's validated set.
	rotating := make([]*models.Proxy, 0)
	for _, p := range s.pool {
		if p.IsRotating {
			rotating = append(rotating, p)
		}
	}

	merged := append(rotating, validated...)
	if s.config.MaxSize > 0 && len(merged) > s.config.MaxSize {
		merged = trimToMaxSize(merged, s.config.MaxSize)
	}
	s.pool = merged

	if s.storage != nil {
		if err := s.storage.SavePool(context.Background(), s.pool); err != nil {
			s.logger.Warn().Err(err).Msg("proxy: failed to persist pool")
		}
	}

	s.logger.Info().Int("validated", len(validated)).Int("pool_size", len(s.pool)).Msg("proxy: validation cycle complete")
}

// trimToMaxSize keeps the proxies with the highest success/(fail+1) ratio.
func trimToMaxSize(proxies []*models.Proxy, max int) []*models.Proxy {
	sorted := append([]*models.Proxy(nil), proxies...)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].FailRatio() > sorted[i].FailRatio() {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

// Acquire returns a proxy per the configured rotation policy.
func (s *Service) Acquire(protocolFilter, sessionID string) (*models.Proxy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		if key, ok := s.sticky[sessionID]; ok {
			for _, p := range s.pool {
				if p.Key() == key && s.eligibleLocked(p, protocolFilter) {
					return p, nil
				}
			}
		}
	}

	candidates := make([]*models.Proxy, 0, len(s.pool))
	for _, p := range s.pool {
		if s.eligibleLocked(p, protocolFilter) {
			candidates = append(candidates, p)
		}
	}

	for _, provider := range s.providers {
		if p, err := provider.Acquire(); err == nil && p != nil {
			candidates = append([]*models.Proxy{p}, candidates...)
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no eligible proxies available")
	}

	SortByPriority(candidates, s.whitelist)

	var chosen *models.Proxy
	switch models.RotationStrategy(s.config.RotationStrategy) {
	case models.RotationRoundRobin:
		chosen = SelectRoundRobin(candidates)
	case models.RotationWeighted:
		chosen = SelectWeighted(candidates, s.config.MaxAcceptableLatency, s.rng)
	case models.RotationRandom:
		chosen = SelectRandom(candidates, s.rng)
	case models.RotationStickySession:
		chosen = candidates[0]
	default:
		chosen = SelectLatencyBased(candidates)
	}

	if chosen == nil {
		return nil, fmt.Errorf("no proxy selected")
	}

	chosen.LastUsedAt = time.Now().UTC()
	if sessionID != "" {
		s.sticky[sessionID] = chosen.Key()
	}
	return chosen, nil
}

func (s *Service) eligibleLocked(p *models.Proxy, protocolFilter string) bool {
	if s.badSet[p.Key()] {
		return false
	}
	if !p.IsActive {
		return false
	}
	if p.IsPenalized(time.Now()) {
		return false
	}
	if protocolFilter != "" && p.Protocol != protocolFilter {
		return false
	}
	return true
}

// Release and MarkSuccess both increment the success counter and clear any
// transient penalty, per the spec's grouped operation semantics.
func (s *Service) Release(p *models.Proxy) { s.MarkSuccess(p) }

func (s *Service) MarkSuccess(p *models.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.pool {
		if c.Key() == p.Key() {
			c.SuccessCount++
			c.PenaltyUntil = time.Time{}
			return
		}
	}
}

// MarkBad increments failCount and always applies a transient cool-off;
// after reaching the strike threshold the proxy is deactivated and added
// to the bad set, which is kept in memory only and not persisted.
func (s *Service) MarkBad(p *models.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *models.Proxy
	for _, c := range s.pool {
		if c.Key() == p.Key() {
			target = c
			break
		}
	}
	if target == nil {
		target = p
	}

	target.FailCount++
	target.PenaltyUntil = time.Now().Add(s.config.TransientPenalty)

	if target.FailCount >= s.config.StrikeThreshold {
		target.IsActive = false
		target.PenaltyUntil = time.Now().Add(s.config.StrikePenalty)
		s.badSet[target.Key()] = true
		delete(s.whitelist, target.Key())

		for name, provider := range s.providers {
			if target.ProviderName == name {
				provider.MarkBad(target)
			}
		}
	}
}

// MarkWorking adds the proxy to the persistent whitelist, raising its rank
// in subsequent selections.
func (s *Service) MarkWorking(p *models.Proxy) {
	s.mu.Lock()
	s.whitelist[p.Key()] = true
	keys := make([]string, 0, len(s.whitelist))
	for k := range s.whitelist {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	if s.storage != nil {
		if err := s.storage.SaveWhitelist(context.Background(), keys); err != nil {
			s.logger.Warn().Err(err).Msg("proxy: failed to persist whitelist")
		}
	}
}

// AddSource registers a new ingestion source (URL or local file).
func (s *Service) AddSource(ctx context.Context, name, location string) error {
	s.mu.Lock()
	for _, src := range s.sources {
		if src.Name == name {
			s.mu.Unlock()
			return fmt.Errorf("source %s already exists", name)
		}
	}
	s.sources = append(s.sources, models.ProxySource{Name: name, Location: location})
	sources := append([]models.ProxySource(nil), s.sources...)
	s.mu.Unlock()

	if s.storage != nil {
		return s.storage.SaveSources(ctx, sources)
	}
	return nil
}

// DeleteSource removes a configured ingestion source.
func (s *Service) DeleteSource(ctx context.Context, name string) error {
	s.mu.Lock()
	idx := -1
	for i, src := range s.sources {
		if src.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("source %s not found", name)
	}
	s.sources = append(s.sources[:idx], s.sources[idx+1:]...)
	sources := append([]models.ProxySource(nil), s.sources...)
	s.mu.Unlock()

	if s.storage != nil {
		return s.storage.SaveSources(ctx, sources)
	}
	return nil
}

// AddRotatingProvider attaches an on-demand provider under name.
func (s *Service) AddRotatingProvider(name string, provider interfaces.RotatingProvider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.providers[name]; exists {
		return fmt.Errorf("provider %s already attached", name)
	}
	s.providers[name] = provider
	return nil
}

// RemoveRotatingProvider detaches and shuts down a provider.
func (s *Service) RemoveRotatingProvider(name string) error {
	s.mu.Lock()
	provider, exists := s.providers[name]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("provider %s not attached", name)
	}
	delete(s.providers, name)
	s.mu.Unlock()

	provider.Shutdown()
	return nil
}
