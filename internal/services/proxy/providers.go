// -----------------------------------------------------------------------
// Rotating providers - list-mode and gateway-mode upstream proxy sources
// -----------------------------------------------------------------------

package proxy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ternarybob/fetchgateway/internal/models"
)

// ListModeProvider periodically refreshes a cached proxy list from a
// remote endpoint and rotates through it.
type ListModeProvider struct {
	mu sync.Mutex

	name       string
	listURL    string
	refreshInterval time.Duration
	httpClient *http.Client

	list   []*models.Proxy
	cursor int

	cancel context.CancelFunc
}

// NewListModeProvider constructs a list-mode provider.
func NewListModeProvider(name string) *ListModeProvider {
	return &ListModeProvider{name: name, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

func (p *ListModeProvider) Initialize(config map[string]string) error {
	p.listURL = config["list_url"]
	if p.listURL == "" {
		return fmt.Errorf("list-mode provider %s: missing list_url", p.name)
	}
	interval := 10 * time.Minute
	if raw, ok := config["refresh_interval_seconds"]; ok {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			interval = time.Duration(secs) * time.Second
		}
	}
	p.refreshInterval = interval

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.refresh(ctx)
	go p.refreshLoop(ctx)
	return nil
}

func (p *ListModeProvider) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(p.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *ListModeProvider) refresh(ctx context.Context) {
	source := models.ProxySource{Name: p.name, Location: p.listURL}
	proxies, err := FetchSource(source, p.httpClient)
	if err != nil || len(proxies) == 0 {
		return
	}
	for _, pr := range proxies {
		pr.IsRotating = true
		pr.ProviderName = p.name
		pr.IsActive = true
	}

	p.mu.Lock()
	p.list = proxies
	p.cursor = 0
	p.mu.Unlock()
}

func (p *ListModeProvider) Acquire() (*models.Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.list) == 0 {
		return nil, fmt.Errorf("provider %s: list not yet populated", p.name)
	}
	pr := p.list[p.cursor%len(p.list)]
	p.cursor++
	return pr, nil
}

func (p *ListModeProvider) MarkBad(pr *models.Proxy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.list {
		if c.Key() == pr.Key() {
			p.list = append(p.list[:i], p.list[i+1:]...)
			return
		}
	}
}

func (p *ListModeProvider) Stats() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]any{"name": p.name, "mode": "list", "pool_size": len(p.list)}
}

func (p *ListModeProvider) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.list) == 0 {
		return fmt.Errorf("provider %s: empty list", p.name)
	}
	return nil
}

func (p *ListModeProvider) Shutdown() {
	if p.cancel != nil {
		p.cancel()
	}
}

// GatewayModeProvider returns a fixed host:port with a synthetic per-call
// username encoding a session id (and optional country), delegating
// rotation to the upstream gateway.
type GatewayModeProvider struct {
	mu sync.Mutex

	name         string
	host         string
	port         int
	protocol     string
	userTemplate string // fmt format with one %s for the session id, e.g. "user-session-%s"; "-country-<country>" is appended when set
	basePassword string
	country      string
}

// NewGatewayModeProvider constructs a gateway-mode provider.
func NewGatewayModeProvider(name string) *GatewayModeProvider {
	return &GatewayModeProvider{name: name}
}

func (p *GatewayModeProvider) Initialize(config map[string]string) error {
	p.host = config["host"]
	if p.host == "" {
		return fmt.Errorf("gateway-mode provider %s: missing host", p.name)
	}
	port, err := strconv.Atoi(config["port"])
	if err != nil {
		return fmt.Errorf("gateway-mode provider %s: invalid port: %w", p.name, err)
	}
	p.port = port
	p.protocol = config["protocol"]
	if p.protocol == "" {
		p.protocol = "http"
	}
	p.basePassword = config["password"]
	p.country = config["country"]
	p.userTemplate = config["username_template"]
	if p.userTemplate == "" {
		p.userTemplate = "user-session-%s"
	}
	return nil
}

func (p *GatewayModeProvider) Acquire() (*models.Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	session, err := randomSessionID()
	if err != nil {
		return nil, err
	}
	username := fmt.Sprintf(p.userTemplate, session)
	if p.country != "" {
		username = username + "-country-" + p.country
	}

	return &models.Proxy{
		Host:         p.host,
		Port:         p.port,
		Protocol:     p.protocol,
		Username:     username,
		Password:     p.basePassword,
		IsRotating:   true,
		ProviderName: p.name,
		IsActive:     true,
	}, nil
}

func randomSessionID() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (p *GatewayModeProvider) MarkBad(pr *models.Proxy) {}

func (p *GatewayModeProvider) Stats() map[string]any {
	return map[string]any{"name": p.name, "mode": "gateway"}
}

func (p *GatewayModeProvider) HealthCheck(ctx context.Context) error {
	if p.host == "" {
		return fmt.Errorf("gateway-mode provider %s: not initialized", p.name)
	}
	return nil
}

func (p *GatewayModeProvider) Shutdown() {}
