// -----------------------------------------------------------------------
// Stealth script injection and tracker/analytics host blocking
// -----------------------------------------------------------------------

package browserpool

import (
	"fmt"
	"strings"

	"github.com/ternarybob/fetchgateway/internal/models"
)

// blockedHostPatterns are substrings matched against request URLs; any
// match is added to the tab's blocked-URL list so the browser aborts the
// request before it reaches the network, per the launch protocol's
// tracker/analytics interceptor.
var blockedHostPatterns = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"facebook.com/tr",
	"connect.facebook.net",
	"hotjar.com",
	"segment.io",
	"segment.com",
	"mixpanel.com",
	"amplitude.com",
	"sentry.io",
	"fullstory.com",
	"newrelic.com",
	"bugsnag.com",
	"*.woff2",
	"*.woff",
	"*.ttf",
}

// blockedURLPatterns returns the Chrome wildcard patterns passed to
// network.SetBlockedURLs for a tab, one per tracker host plus wildcard
// entries for non-essential font resources.
func blockedURLPatterns() []string {
	patterns := make([]string, 0, len(blockedHostPatterns))
	for _, p := range blockedHostPatterns {
		if strings.HasPrefix(p, "*.") {
			patterns = append(patterns, "*"+p)
			continue
		}
		patterns = append(patterns, "*"+p+"*")
	}
	return patterns
}

// buildStealthScript renders the pre-document script pinning navigator
// properties to the given identity, so that a fresh document never
// observes the chromedp-default fingerprint before the page's own scripts
// run.
func buildStealthScript(identity *models.Identity) string {
	languages := make([]string, 0, len(identity.Languages))
	for _, l := range identity.Languages {
		languages = append(languages, fmt.Sprintf("%q", l))
	}
	languagesJS := strings.Join(languages, ", ")
	if languagesJS == "" {
		languagesJS = `"en-US", "en"`
	}

	return fmt.Sprintf(`
		Object.defineProperty(navigator, 'webdriver', { get: () => false, configurable: true });
		Object.defineProperty(navigator, 'platform', { get: () => %q, configurable: true });
		Object.defineProperty(navigator, 'vendor', { get: () => %q, configurable: true });
		Object.defineProperty(navigator, 'languages', { get: () => [%s], configurable: true });
		Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d, configurable: true });
		Object.defineProperty(navigator, 'deviceMemory', { get: () => %d, configurable: true });
		Object.defineProperty(navigator, 'plugins', {
			get: () => {
				const plugins = [
					{ name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
					{ name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
					{ name: 'Native Client', filename: 'internal-nacl-plugin' },
				];
				plugins.length = 3;
				return plugins;
			},
			configurable: true,
		});
		if (!window.chrome) { window.chrome = {}; }
		window.chrome.runtime = { id: undefined };
		const originalQuery = window.navigator.permissions.query;
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications' ?
				Promise.resolve({ state: Notification.permission }) :
				originalQuery(parameters)
		);
	`, identity.Platform, identity.Vendor, languagesJS, identity.HardwareConcurrency, identity.DeviceMemory)
}
