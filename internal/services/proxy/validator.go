// -----------------------------------------------------------------------
// Proxy validation - connectivity, IP classification and origin reachability
// -----------------------------------------------------------------------

package proxy

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// Validator performs per-proxy connectivity, IP-classification and
// origin-reachability checks, grounded on a CONNECT-tunnel-plus-TLS-handshake
// probe against the configured target origin.
type Validator struct {
	config  *common.ProxyConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewValidator builds a Validator using the proxy config's timeouts.
func NewValidator(config *common.ProxyConfig) *Validator {
	return &Validator{
		config:  config,
		client:  &http.Client{Timeout: config.ValidationTimeout},
		limiter: rate.NewLimiter(rate.Every(time.Second/10), 10), // paces IP-info lookups
	}
}

// ValidateBatch validates proxies in bounded parallel batches and returns
// only those that passed every check, with latency/classification fields
// populated.
func (v *Validator) ValidateBatch(ctx context.Context, proxies []*models.Proxy) []*models.Proxy {
	batchSize := v.config.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	results := make([]*models.Proxy, 0, len(proxies))
	sem := make(chan struct{}, batchSize)
	resultCh := make(chan *models.Proxy, len(proxies))

	for _, p := range proxies {
		sem <- struct{}{}
		go func(p *models.Proxy) {
			defer func() { <-sem }()
			if ok := v.validateOne(ctx, p); ok {
				resultCh <- p
			} else {
				resultCh <- nil
			}
		}(p)
	}

	for range proxies {
		if p := <-resultCh; p != nil {
			results = append(results, p)
		}
	}
	return results
}

// validateOne runs the IP-classification and origin-reachability checks
// concurrently and mutates p in place on success.
func (v *Validator) validateOne(ctx context.Context, p *models.Proxy) bool {
	checkCtx, cancel := context.WithTimeout(ctx, v.config.ValidationTimeout)
	defer cancel()

	start := time.Now()

	type ipResult struct {
		ipType  models.IPType
		isp     string
		org     string
		country string
		err     error
	}
	ipCh := make(chan ipResult, 1)
	go func() {
		v.limiter.Wait(checkCtx)
		ipType, isp, org, country, err := v.classifyIP(checkCtx, p)
		ipCh <- ipResult{ipType, isp, org, country, err}
	}()

	reachable := v.checkOriginReachable(checkCtx, p)

	ipRes := <-ipCh
	latency := time.Since(start)

	if ipRes.err != nil {
		return false
	}
	if latency > v.config.MaxAcceptableLatency {
		return false
	}
	if !reachable {
		return false
	}

	p.Latency = latency
	p.IPType = ipRes.ipType
	p.ISP = ipRes.isp
	p.Org = ipRes.org
	p.Country = ipRes.country
	p.CanReachOrigin = reachable
	p.LastValidatedAt = time.Now().UTC()
	p.IsActive = true
	return true
}

// classifyIP queries the configured IP-info endpoint through the proxy to
// determine residential/datacenter classification and ownership metadata.
func (v *Validator) classifyIP(ctx context.Context, p *models.Proxy) (models.IPType, string, string, string, error) {
	transport, err := transportFor(p, v.config.ValidationTimeout)
	if err != nil {
		return models.IPTypeUnknown, "", "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.IPInfoURL, nil)
	if err != nil {
		return models.IPTypeUnknown, "", "", "", err
	}

	client := &http.Client{Transport: transport, Timeout: v.config.ValidationTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return models.IPTypeUnknown, "", "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.IPTypeUnknown, "", "", "", err
	}

	var info struct {
		ISP  string `json:"isp"`
		Org  string `json:"org"`
		Country string `json:"country"`
		Hosting bool `json:"hosting"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return models.IPTypeUnknown, "", "", "", err
	}

	ipType := models.IPTypeResidential
	lowerISP := strings.ToLower(info.ISP + " " + info.Org)
	if info.Hosting || strings.Contains(lowerISP, "hosting") || strings.Contains(lowerISP, "datacenter") || strings.Contains(lowerISP, "cloud") {
		ipType = models.IPTypeDatacenter
	}

	return ipType, info.ISP, info.Org, info.Country, nil
}

// checkOriginReachable opens an HTTP CONNECT tunnel (or a socks5 dial) to
// the configured target origin and performs a minimal TLS handshake.
func (v *Validator) checkOriginReachable(ctx context.Context, p *models.Proxy) bool {
	target := v.config.TargetOrigin
	if target == "" {
		return true
	}

	switch p.Protocol {
	case "socks5":
		dialer, err := proxy.SOCKS5("tcp", fmt.Sprintf("%s:%d", p.Host, p.Port), proxyAuth(p), &net.Dialer{Timeout: v.config.ValidationTimeout})
		if err != nil {
			return false
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return false
		}
		conn, err := ctxDialer.DialContext(ctx, "tcp", target)
		if err != nil {
			return false
		}
		defer conn.Close()
		return tlsHandshake(conn, target)

	default: // http, https via CONNECT
		dialer := &net.Dialer{Timeout: v.config.ValidationTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", p.Host, p.Port))
		if err != nil {
			return false
		}
		defer conn.Close()

		connectReq := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n", target, target)
		if p.Username != "" {
			connectReq += fmt.Sprintf("Proxy-Authorization: Basic %s\r\n", basicAuth(p.Username, p.Password))
		}
		connectReq += "\r\n"

		if _, err := conn.Write([]byte(connectReq)); err != nil {
			return false
		}
		buf := make([]byte, 1024)
		n, err := conn.Read(buf)
		if err != nil {
			return false
		}
		resp := string(buf[:n])
		if len(resp) < 12 || resp[9:12] != "200" {
			return false
		}
		return tlsHandshake(conn, target)
	}
}

func tlsHandshake(conn net.Conn, target string) bool {
	host := target
	if idx := strings.LastIndex(target, ":"); idx >= 0 {
		host = target[:idx]
	}
	tlsConn := tls.Client(conn, &tls.Config{ServerName: host, InsecureSkipVerify: true})
	defer tlsConn.Close()
	if err := tlsConn.Handshake(); err != nil {
		return false
	}
	return true
}

func proxyAuth(p *models.Proxy) *proxy.Auth {
	if p.Username == "" {
		return nil
	}
	return &proxy.Auth{User: p.Username, Password: p.Password}
}

func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

// transportFor builds an *http.Transport that routes through the proxy,
// used for the IP-classification probe.
func transportFor(p *models.Proxy, timeout time.Duration) (*http.Transport, error) {
	proxyURL := &url.URL{
		Scheme: p.Protocol,
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
	}
	if p.Username != "" {
		proxyURL.User = url.UserPassword(p.Username, p.Password)
	}
	return &http.Transport{
		Proxy:               http.ProxyURL(proxyURL),
		TLSHandshakeTimeout: timeout,
	}, nil
}
