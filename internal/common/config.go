package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root application configuration, loaded with priority
// default -> file1 -> file2 -> ... -> env -> CLI flags.
type Config struct {
	Environment string              `toml:"environment"`
	Server      ServerConfig        `toml:"server"`
	Logging     LoggingConfig       `toml:"logging"`
	Storage     StorageConfig       `toml:"storage"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	BrowserPool BrowserPoolConfig   `toml:"browser_pool"`
	Proxy       ProxyConfig         `toml:"proxy"`
	Identity    IdentityConfig      `toml:"identity"`
	Cache       CacheConfig         `toml:"cache"`
	WebSocket   WebSocketConfig     `toml:"websocket"`
	Metrics     MetricsConfig       `toml:"metrics"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// StorageConfig selects the persistence backend and its fallback.
type StorageConfig struct {
	Badger        BadgerConfig `toml:"badger"`
	FallbackDir   string       `toml:"fallback_dir"` // local JSON fallback directory when Badger is unavailable
}

// OrchestratorConfig tunes the dispatch loop, hedging and retry policy.
type OrchestratorConfig struct {
	HedgeTimeout      time.Duration `toml:"hedge_timeout"`       // default 2s
	MaxAttempts       int           `toml:"max_attempts"`        // default 3
	InitialBackoff    time.Duration `toml:"initial_backoff"`     // default 1s
	MaxBackoff        time.Duration `toml:"max_backoff"`         // default 30s
	BackoffMultiplier float64       `toml:"backoff_multiplier"`  // default 2.0
	CleanupInterval   time.Duration `toml:"cleanup_interval"`    // default 1h
	JobRetention      time.Duration `toml:"job_retention"`       // default 24h
	RotationSleep     time.Duration `toml:"rotation_sleep"`      // default 5s, sleep when identity rotation yields nothing
	OtherSleep        time.Duration `toml:"other_sleep"`         // default 3s, sleep on "other" recoverable error
	MaxStoreFollowups int           `toml:"max_store_followups"` // cap on product jobs spawned per store scrape (open question b)
}

// BrowserPoolConfig mirrors §6 "Browser pool" recognized options.
// ProxiedCount is parsed from a raw string accepting a numeric literal,
// "true" (= MaxBrowsers), "false" (= 0), or a negative integer meaning
// "all except |n|".
type BrowserPoolConfig struct {
	MinBrowsers     int    `toml:"min_browsers"`
	MaxBrowsers     int    `toml:"max_browsers"`
	MinTabs         int    `toml:"min_tabs"`
	TabsPerBrowser  int    `toml:"tabs_per_browser"`
	ProxiedCountRaw string `toml:"proxied_count"`
	Headless        bool   `toml:"headless"`
	NavigationTimeout time.Duration `toml:"navigation_timeout"` // default 20-30s
	CloseTimeout      time.Duration `toml:"close_timeout"`      // default 5s
	RestartCooloffMin time.Duration `toml:"restart_cooloff_min"` // default 5s
	RestartCooloffMax time.Duration `toml:"restart_cooloff_max"` // default 10s
}

// ResolveProxiedCount interprets ProxiedCountRaw against MaxBrowsers.
func (c BrowserPoolConfig) ResolveProxiedCount() int {
	raw := strings.TrimSpace(c.ProxiedCountRaw)
	switch raw {
	case "", "false":
		return 0
	case "true":
		return c.MaxBrowsers
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if n < 0 {
		rest := c.MaxBrowsers + n // n is negative: "all except |n|"
		if rest < 0 {
			return 0
		}
		return rest
	}
	return n
}

// ProxyConfig mirrors §6 "Proxy" recognized options.
type ProxyConfig struct {
	MaxSize               int              `toml:"max_size"`
	MinSize               int              `toml:"min_size"`
	ValidationInterval    time.Duration    `toml:"validation_interval"`     // default 30m
	RevalidationThreshold time.Duration    `toml:"revalidation_threshold"`  // default 1h
	BatchSize             int              `toml:"batch_size"`              // default 200
	RotationStrategy      string           `toml:"rotation_strategy"`       // round-robin|latency-based|weighted|sticky-session|random
	ValidationTimeout     time.Duration    `toml:"validation_timeout"`      // default 5s
	MaxAcceptableLatency  time.Duration    `toml:"max_acceptable_latency"`  // default 2.5s
	TransientPenalty      time.Duration    `toml:"transient_penalty"`       // default 5m
	StrikePenalty         time.Duration    `toml:"strike_penalty"`          // default 60m
	StrikeThreshold       int              `toml:"strike_threshold"`        // default 3
	AllowListEnv          string           `toml:"allow_list_env"`          // env var name holding a comma-separated inline proxy list
	SourcesDir            string           `toml:"sources_dir"`
	TargetOrigin          string           `toml:"target_origin"`           // host:port reachability is validated against
	IPInfoURL             string           `toml:"ip_info_url"`             // IP classification endpoint
}

// IdentityConfig tunes working-set preference weighting.
type IdentityConfig struct {
	WorkingSetPreference float64 `toml:"working_set_preference"` // default 0.8
}

// CacheConfig mirrors §6 "Caches" recognized options.
type CacheConfig struct {
	ResultTTL        time.Duration `toml:"result_ttl"`          // default 10m
	PreloadStoreTTL  time.Duration `toml:"preload_store_ttl"`   // default 24h (StoreMeta)
	PreloadProductTTL time.Duration `toml:"preload_product_ttl"` // default 15m (PreloadEntry)
}

// WebSocketConfig tunes the progressive job-status push surface.
type WebSocketConfig struct {
	MinLevel string `toml:"min_level"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// NewDefaultConfig returns a configuration with the defaults named
// throughout the spec's §5/§6 timeout and tuning tables.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/badger",
			},
			FallbackDir: "./data/fallback",
		},
		Orchestrator: OrchestratorConfig{
			HedgeTimeout:      2 * time.Second,
			MaxAttempts:       3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
			CleanupInterval:   1 * time.Hour,
			JobRetention:      24 * time.Hour,
			RotationSleep:     5 * time.Second,
			OtherSleep:        3 * time.Second,
			MaxStoreFollowups: 200,
		},
		BrowserPool: BrowserPoolConfig{
			MinBrowsers:       1,
			MaxBrowsers:       4,
			MinTabs:           1,
			TabsPerBrowser:    3,
			ProxiedCountRaw:   "1",
			Headless:          true,
			NavigationTimeout: 25 * time.Second,
			CloseTimeout:      5 * time.Second,
			RestartCooloffMin: 5 * time.Second,
			RestartCooloffMax: 10 * time.Second,
		},
		Proxy: ProxyConfig{
			MaxSize:               500,
			MinSize:               10,
			ValidationInterval:    30 * time.Minute,
			RevalidationThreshold: 1 * time.Hour,
			BatchSize:             200,
			RotationStrategy:      string(RotationLatencyBasedDefault),
			ValidationTimeout:     5 * time.Second,
			MaxAcceptableLatency:  2500 * time.Millisecond,
			TransientPenalty:      5 * time.Minute,
			StrikePenalty:         60 * time.Minute,
			StrikeThreshold:       3,
			AllowListEnv:          "FETCHGATEWAY_PROXY_ALLOWLIST",
			SourcesDir:            "./proxies",
			TargetOrigin:          "www.example.com:443",
			IPInfoURL:             "http://ip-api.com/json/",
		},
		Identity: IdentityConfig{
			WorkingSetPreference: 0.8,
		},
		Cache: CacheConfig{
			ResultTTL:         10 * time.Minute,
			PreloadStoreTTL:   24 * time.Hour,
			PreloadProductTTL: 15 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// RotationLatencyBasedDefault avoids importing models from common (kept
// as a plain string constant to prevent a common<->models import cycle
// concern even though none currently exists).
const RotationLatencyBasedDefault = "latency-based"

// LoadFromFiles loads configuration from multiple TOML files with
// priority default -> file1 -> file2 -> ... -> env. Later files override
// earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FETCHGATEWAY_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("FETCHGATEWAY_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FETCHGATEWAY_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if level := os.Getenv("FETCHGATEWAY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("FETCHGATEWAY_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if strategy := os.Getenv("FETCHGATEWAY_PROXY_ROTATION_STRATEGY"); strategy != "" {
		config.Proxy.RotationStrategy = strategy
	}
	if maxBrowsers := os.Getenv("FETCHGATEWAY_MAX_BROWSERS"); maxBrowsers != "" {
		if mb, err := strconv.Atoi(maxBrowsers); err == nil {
			config.BrowserPool.MaxBrowsers = mb
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides, highest priority.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
