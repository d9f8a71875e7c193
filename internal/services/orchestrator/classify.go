// -----------------------------------------------------------------------
// Error classification - pure function over the error string a fetch
// routine reports, per the orchestrator's remediation taxonomy
// -----------------------------------------------------------------------

package orchestrator

import "strings"

// errorClass is the orchestrator's remediation category for a failed
// fetch attempt.
type errorClass int

const (
	classCriticalBrowser errorClass = iota
	classProxyOrNetwork
	classNoContent
	classUnsupportedBrowser
	classOther
)

var criticalBrowserMarkers = []string{
	"target closed",
	"session closed",
	"detached frame",
	"execution context was destroyed",
	"execution-context destroyed",
}

var proxyOrNetworkMarkers = []string{
	"429",
	"403",
	"network",
	"timeout",
	"channel_id_not_found",
	"proxy_issue",
	"connection refused",
	"connection reset",
	"no such host",
	"eof",
}

// classify maps a fetch routine's reported error string to a remediation
// class. Matching is case-insensitive substring, per the spec's
// "markers tagged" phrasing - routines are free to return loosely-formed
// error strings/codes rather than a closed enum.
func classify(errMsg string) errorClass {
	lower := strings.ToLower(errMsg)

	for _, marker := range criticalBrowserMarkers {
		if strings.Contains(lower, marker) {
			return classCriticalBrowser
		}
	}
	for _, marker := range proxyOrNetworkMarkers {
		if strings.Contains(lower, marker) {
			return classProxyOrNetwork
		}
	}
	if strings.Contains(lower, "204") || strings.Contains(lower, "no_content") {
		return classNoContent
	}
	if strings.Contains(lower, "unsupported_browser") || strings.Contains(lower, "unsupported browser") {
		return classUnsupportedBrowser
	}
	return classOther
}
