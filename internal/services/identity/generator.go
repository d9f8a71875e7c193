package identity

import (
	"fmt"
	"math/rand"

	"github.com/ternarybob/fetchgateway/internal/models"
)

// chromeVersions is the small band of recent major versions the generator
// draws from; keeping it narrow avoids producing an implausible outlier.
var chromeVersions = []int{121, 122, 123, 124, 125}

var viewports = [][2]int{{1920, 1080}, {1536, 864}, {1440, 900}, {1366, 768}, {1680, 1050}}

// Generate builds a synthetic but plausible Chrome-on-Windows identity by
// pairing a version string with the matching sec-ch-ua client-hint value.
// Draws are not checked against the static catalogue, so a result can
// match a catalogue entry's userAgent or even its full combination.
func Generate(rng *rand.Rand) models.Identity {
	version := chromeVersions[rng.Intn(len(chromeVersions))]
	vp := viewports[rng.Intn(len(viewports))]

	return models.Identity{
		Name:                fmt.Sprintf("generated-chrome-%d", version),
		UserAgent:           fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36", version),
		ViewportWidth:       vp[0],
		ViewportHeight:      vp[1],
		Platform:            "Win32",
		Vendor:              "Google Inc.",
		Languages:           []string{"en-US", "en"},
		HardwareConcurrency: []int{4, 6, 8, 12}[rng.Intn(4)],
		DeviceMemory:        []int{4, 8, 16}[rng.Intn(3)],
		ClientHints:         fmt.Sprintf(`"Chromium";v="%d", "Google Chrome";v="%d", "Not-A.Brand";v="99"`, version, version),
		Generated:           true,
	}
}
