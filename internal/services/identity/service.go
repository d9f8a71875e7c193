// -----------------------------------------------------------------------
// Identity Profiles service - implements interfaces.IdentityProfiles
// -----------------------------------------------------------------------

package identity

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// Service mixes a static catalogue, a dynamic generator and a persisted
// working-set to hand out plausible browser identities.
type Service struct {
	mu sync.Mutex

	logger  arbor.ILogger
	storage interfaces.IdentityStorage
	config  *common.IdentityConfig
	rng     *rand.Rand

	workingSet   map[string]bool // userAgent -> observed to succeed
	usedProfiles map[string]bool // userAgent -> drawn since last reset
}

// New constructs the identity service, loading any persisted working set.
func New(ctx context.Context, logger arbor.ILogger, storage interfaces.IdentityStorage, config *common.IdentityConfig) (*Service, error) {
	s := &Service{
		logger:       logger,
		storage:      storage,
		config:       config,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		workingSet:   make(map[string]bool),
		usedProfiles: make(map[string]bool),
	}

	if storage != nil {
		agents, err := storage.LoadWorkingSet(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("identity: failed to load persisted working set, starting empty")
		}
		for _, ua := range agents {
			s.workingSet[ua] = true
		}
		logger.Info().Int("count", len(s.workingSet)).Msg("identity: loaded working set")
	}

	return s, nil
}

// Random draws an identity, preferring the working set ~80% of the time
// (configurable). A usedProfiles set avoids immediate reuse until the
// pool of distinct candidates is exhausted, then resets.
func (s *Service) Random() (*models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.candidatesLocked()
	if len(candidates) == 0 {
		return nil, false
	}

	fresh := make([]models.Identity, 0, len(candidates))
	for _, c := range candidates {
		if !s.usedProfiles[c.UserAgent] {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		// Exhausted: reset and consider the full candidate set again.
		s.usedProfiles = make(map[string]bool)
		fresh = candidates
	}

	chosen := fresh[s.rng.Intn(len(fresh))]
	s.usedProfiles[chosen.UserAgent] = true
	return &chosen, true
}

// candidatesLocked builds the draw pool for this call: with probability
// WorkingSetPreference, restrict to identities whose userAgent is in the
// working set (if any); otherwise offer the full catalogue plus a freshly
// generated identity.
func (s *Service) candidatesLocked() []models.Identity {
	preferWorking := len(s.workingSet) > 0 && s.rng.Float64() < s.config.WorkingSetPreference
	if preferWorking {
		working := make([]models.Identity, 0, len(s.workingSet))
		for ua := range s.workingSet {
			if id, ok := matchCatalogue(ua); ok {
				working = append(working, id)
				continue
			}
			working = append(working, syntheticFromUserAgent(ua))
		}
		if len(working) > 0 {
			return working
		}
	}

	pool := make([]models.Identity, 0, len(staticCatalogue)+1)
	pool = append(pool, staticCatalogue...)
	pool = append(pool, Generate(s.rng))
	return pool
}

// matchCatalogue returns the static catalogue entry with the given
// userAgent, if one still carries it.
func matchCatalogue(userAgent string) (models.Identity, bool) {
	for _, id := range staticCatalogue {
		if id.UserAgent == userAgent {
			return id, true
		}
	}
	return models.Identity{}, false
}

// syntheticFromUserAgent reconstructs a usable Identity around a persisted
// userAgent string when the full bundle that produced it is no longer
// available (only the userAgent survives across restarts, per the
// identity persistence format).
func syntheticFromUserAgent(userAgent string) models.Identity {
	vp := viewports[0]
	return models.Identity{
		Name:                "working-set",
		UserAgent:           userAgent,
		ViewportWidth:       vp[0],
		ViewportHeight:      vp[1],
		Platform:            "Win32",
		Vendor:              "Google Inc.",
		Languages:           []string{"en-US", "en"},
		HardwareConcurrency: 8,
		DeviceMemory:        8,
		ClientHints:         "",
		Generated:           true,
	}
}

// Release returns an identity to circulation; nothing to reclaim beyond
// letting a future usedProfiles reset make it eligible again.
func (s *Service) Release(i *models.Identity) {}

// MarkWorking adds a userAgent to the persistent working set.
func (s *Service) MarkWorking(userAgent string) {
	s.mu.Lock()
	if s.workingSet[userAgent] {
		s.mu.Unlock()
		return
	}
	s.workingSet[userAgent] = true
	agents := make([]string, 0, len(s.workingSet))
	for ua := range s.workingSet {
		agents = append(agents, ua)
	}
	s.mu.Unlock()

	if s.storage != nil {
		if err := s.storage.SaveWorkingSet(context.Background(), agents); err != nil {
			s.logger.Warn().Err(err).Msg("identity: failed to persist working set")
		}
	}
}

// IsWorking reports whether userAgent is in the persisted working set.
func (s *Service) IsWorking(userAgent string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workingSet[userAgent]
}
