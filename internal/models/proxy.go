// -----------------------------------------------------------------------
// Proxy Model - inventory records and selection policy types
// -----------------------------------------------------------------------

package models

import (
	"strconv"
	"time"
)

// IPType classifies the address space a proxy's egress IP belongs to.
type IPType string

const (
	IPTypeResidential IPType = "residential"
	IPTypeDatacenter  IPType = "datacenter"
	IPTypeUnknown     IPType = "unknown"
)

// RotationStrategy selects which selection policy Acquire uses.
type RotationStrategy string

const (
	RotationRoundRobin    RotationStrategy = "round-robin"
	RotationLatencyBased  RotationStrategy = "latency-based"
	RotationWeighted      RotationStrategy = "weighted"
	RotationRandom        RotationStrategy = "random"
	RotationStickySession RotationStrategy = "sticky-session"
)

// Proxy is a validated or pending inventory record.
type Proxy struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"` // http, https, socks5
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	Source      string `json:"source"`             // source tag: file/url name, "env", or provider name
	IsRotating  bool   `json:"isRotating"`          // true when served by a RotatingProvider
	ProviderName string `json:"providerName,omitempty"`

	Latency       time.Duration `json:"latency"`
	IPType        IPType        `json:"ipType"`
	CanReachOrigin bool         `json:"canReachOrigin"`
	ISP           string        `json:"isp,omitempty"`
	Org           string        `json:"org,omitempty"`
	Country       string        `json:"country,omitempty"`

	SuccessCount int       `json:"successCount"`
	FailCount    int       `json:"failCount"`
	IsActive     bool      `json:"isActive"`
	PenaltyUntil time.Time `json:"penaltyUntil"`
	LastUsedAt   time.Time `json:"lastUsedAt"`
	LastValidatedAt time.Time `json:"lastValidatedAt"`
}

// Key returns the host:port identity used for whitelist/bad-set membership.
func (p *Proxy) Key() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}

// IsPenalized reports whether the proxy is under a transient cool-off.
func (p *Proxy) IsPenalized(now time.Time) bool {
	return now.Before(p.PenaltyUntil)
}

// SuccessRate returns successCount/(successCount+failCount), 0 when no data.
func (p *Proxy) SuccessRate() float64 {
	total := p.SuccessCount + p.FailCount
	if total == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(total)
}

// FailRatio returns successCount/(failCount+1), used to rank which proxies
// survive a pool trim to max size.
func (p *Proxy) FailRatio() float64 {
	return float64(p.SuccessCount) / float64(p.FailCount+1)
}

// ProxySource is a configured ingestion source (URL or local file).
type ProxySource struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}
