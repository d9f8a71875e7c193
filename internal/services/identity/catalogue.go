package identity

import "github.com/ternarybob/fetchgateway/internal/models"

// staticCatalogue is a small set of plausible, real-world desktop browser
// identities. Selection mixes these with generator.go's dynamic draws.
var staticCatalogue = []models.Identity{
	{
		Name:                "chrome-windows",
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		Platform:            "Win32",
		Vendor:              "Google Inc.",
		Languages:           []string{"en-US", "en"},
		HardwareConcurrency: 8,
		DeviceMemory:        8,
		ClientHints:         `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
	},
	{
		Name:                "chrome-macos",
		UserAgent:           "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		ViewportWidth:       1680,
		ViewportHeight:      1050,
		Platform:            "MacIntel",
		Vendor:              "Google Inc.",
		Languages:           []string{"en-US", "en"},
		HardwareConcurrency: 10,
		DeviceMemory:        16,
		ClientHints:         `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
	},
	{
		Name:                "edge-windows",
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0",
		ViewportWidth:       1536,
		ViewportHeight:      864,
		Platform:            "Win32",
		Vendor:              "Google Inc.",
		Languages:           []string{"en-US", "en"},
		HardwareConcurrency: 4,
		DeviceMemory:        8,
		ClientHints:         `"Chromium";v="123", "Microsoft Edge";v="123", "Not-A.Brand";v="99"`,
	},
	{
		Name:                "chrome-linux",
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		ViewportWidth:       1920,
		ViewportHeight:      1200,
		Platform:            "Linux x86_64",
		Vendor:              "Google Inc.",
		Languages:           []string{"en-US", "en"},
		HardwareConcurrency: 12,
		DeviceMemory:        16,
		ClientHints:         `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
	},
	{
		Name:                "chrome-windows-laptop",
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		ViewportWidth:       1366,
		ViewportHeight:      768,
		Platform:            "Win32",
		Vendor:              "Google Inc.",
		Languages:           []string{"en-US", "en"},
		HardwareConcurrency: 4,
		DeviceMemory:        4,
		ClientHints:         `"Chromium";v="122", "Google Chrome";v="122", "Not-A.Brand";v="99"`,
	},
}
