// -----------------------------------------------------------------------
// Proxy selection - priority ordering and rotation policies
// -----------------------------------------------------------------------

package proxy

import (
	"math/rand"
	"sort"
	"time"

	"github.com/ternarybob/fetchgateway/internal/models"
)

// SortByPriority orders candidates by the tuple: rotating-provider >
// source=env > whitelisted > ipType=residential > lowest latency.
func SortByPriority(candidates []*models.Proxy, whitelist map[string]bool) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.IsRotating != b.IsRotating {
			return a.IsRotating
		}
		aEnv, bEnv := a.Source == "env", b.Source == "env"
		if aEnv != bEnv {
			return aEnv
		}
		aWhite, bWhite := whitelist[a.Key()], whitelist[b.Key()]
		if aWhite != bWhite {
			return aWhite
		}
		aRes, bRes := a.IPType == models.IPTypeResidential, b.IPType == models.IPTypeResidential
		if aRes != bRes {
			return aRes
		}
		return a.Latency < b.Latency
	})
}

// SelectRoundRobin returns the least-recently-used candidate.
func SelectRoundRobin(candidates []*models.Proxy) *models.Proxy {
	return leastRecentlyUsed(candidates)
}

// SelectLatencyBased takes the top-5 by priority (candidates must already
// be priority-sorted) then picks the least-recently-used within that set,
// avoiding stickiness on the single fastest proxy.
func SelectLatencyBased(candidates []*models.Proxy) *models.Proxy {
	n := 5
	if len(candidates) < n {
		n = len(candidates)
	}
	return leastRecentlyUsed(candidates[:n])
}

func leastRecentlyUsed(candidates []*models.Proxy) *models.Proxy {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.LastUsedAt.Before(best.LastUsedAt) {
			best = c
		}
	}
	return best
}

// SelectWeighted draws with probability proportional to
// 0.7*successRate + 0.3*(1 - latency/maxLatency).
func SelectWeighted(candidates []*models.Proxy, maxLatency time.Duration, rng *rand.Rand) *models.Proxy {
	if len(candidates) == 0 {
		return nil
	}
	if maxLatency <= 0 {
		maxLatency = time.Second
	}

	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		latencyScore := 1 - float64(c.Latency)/float64(maxLatency)
		if latencyScore < 0 {
			latencyScore = 0
		}
		w := 0.7*c.SuccessRate() + 0.3*latencyScore
		if w <= 0 {
			w = 0.01 // keep every candidate drawable
		}
		weights[i] = w
		total += w
	}

	r := rng.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if r <= cum {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// SelectRandom draws uniformly.
func SelectRandom(candidates []*models.Proxy, rng *rand.Rand) *models.Proxy {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rng.Intn(len(candidates))]
}
