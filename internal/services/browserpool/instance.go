// -----------------------------------------------------------------------
// Browser instance launch protocol - one managed Chrome process per slot
// -----------------------------------------------------------------------

package browserpool

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/common"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
	"github.com/ternarybob/fetchgateway/internal/models"
)

// launchedInstance bundles a live BrowserInstance with the chromedp
// contexts and cancel funcs needed to tear it down cleanly.
type launchedInstance struct {
	instance *models.BrowserInstance

	allocCtx    context.Context
	allocCancel context.CancelFunc

	browserCtx    context.Context
	browserCancel context.CancelFunc

	// tabCtx/tabCancel are parallel to instance.Tabs by index.
	tabCtx    []context.Context
	tabCancel []context.CancelFunc
}

// launchSlot performs the launch protocol for slot i: draw an identity,
// optionally acquire a proxy, start the browser process, then warm up
// tabsPerBrowser tabs with stealth injection and tracker blocking. On any
// failure it tears down whatever was partially started and marks the
// proxy bad if one was acquired.
func launchSlot(ctx context.Context, logger arbor.ILogger, slotID int, proxied bool, cfg *common.BrowserPoolConfig, identities interfaces.IdentityProfiles, proxies interfaces.ProxyInventory) (*launchedInstance, error) {
	identity, ok := identities.Random()
	if !ok {
		return nil, fmt.Errorf("browserpool: no identity available for slot %d", slotID)
	}

	var boundProxy *models.Proxy
	if proxied {
		p, err := proxies.Acquire("", "")
		if err != nil {
			logger.Warn().Err(err).Int("slot", slotID).Msg("browserpool: no proxy available for proxied slot, launching direct")
		} else {
			boundProxy = p
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.UserAgent(identity.UserAgent),
		chromedp.WindowSize(identity.ViewportWidth, identity.ViewportHeight),
	)
	if boundProxy != nil {
		opts = append(opts, chromedp.ProxyServer(fmt.Sprintf("%s://%s:%d", boundProxy.Protocol, boundProxy.Host, boundProxy.Port)))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	li := &launchedInstance{
		instance: &models.BrowserInstance{
			SlotID:     slotID,
			Identity:   identity,
			BoundProxy: boundProxy,
			State:      models.BrowserStateLaunching,
			LaunchedAt: time.Now().UTC(),
		},
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}

	if err := chromedp.Run(browserCtx); err != nil {
		li.teardown(logger)
		markLaunchFailureProxyBad(proxies, boundProxy)
		return nil, fmt.Errorf("browserpool: slot %d: browser launch failed: %w", slotID, err)
	}

	tabsPerBrowser := cfg.TabsPerBrowser
	if tabsPerBrowser < 1 {
		tabsPerBrowser = 1
	}

	for idx := 0; idx < tabsPerBrowser; idx++ {
		tabCtx, tabCancel, err := launchTab(browserCtx, identity, boundProxy, cfg)
		if err != nil {
			li.teardown(logger)
			markLaunchFailureProxyBad(proxies, boundProxy)
			return nil, fmt.Errorf("browserpool: slot %d tab %d: %w", slotID, idx, err)
		}
		li.tabCtx = append(li.tabCtx, tabCtx)
		li.tabCancel = append(li.tabCancel, tabCancel)
		li.instance.Tabs = append(li.instance.Tabs, &models.Tab{OwningSlotID: slotID, Index: idx})
	}

	li.instance.State = models.BrowserStateActive
	li.instance.LastUsedAt = time.Now().UTC()
	return li, nil
}

// launchTab creates one isolated tab context, injects the stealth script,
// installs the tracker/analytics blocklist, authenticates the proxy if
// credentials are present, and performs a low-stakes warm-up navigation.
func launchTab(browserCtx context.Context, identity *models.Identity, boundProxy *models.Proxy, cfg *common.BrowserPoolConfig) (context.Context, context.CancelFunc, error) {
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)

	navTimeout := cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 25 * time.Second
	}
	runCtx, runCancel := context.WithTimeout(tabCtx, navTimeout)
	defer runCancel()

	if boundProxy != nil && boundProxy.Username != "" {
		installProxyAuth(tabCtx, boundProxy)
	}

	script := buildStealthScript(identity)
	actions := []chromedp.Action{
		network.Enable(),
		network.SetBlockedURLs(blockedURLPatterns()),
		page.AddScriptToEvaluateOnNewDocument(script),
		chromedp.Navigate("about:blank"),
	}

	if err := chromedp.Run(runCtx, actions...); err != nil {
		tabCancel()
		return nil, nil, fmt.Errorf("tab setup failed: %w", err)
	}
	return tabCtx, tabCancel, nil
}

// installProxyAuth answers the browser's Fetch.authRequired challenge with
// the bound proxy's credentials, so process-level --proxy-server launches
// authenticate without a user-facing prompt.
func installProxyAuth(tabCtx context.Context, p *models.Proxy) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventAuthRequired:
			go chromedp.Run(tabCtx, fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
				Response: fetch.AuthChallengeResponseResponseProvideCredentials,
				Username: p.Username,
				Password: p.Password,
			}))
		case *fetch.EventRequestPaused:
			go chromedp.Run(tabCtx, fetch.ContinueRequest(e.RequestID))
		}
	})
	_ = chromedp.Run(tabCtx, fetch.Enable().WithHandleAuthRequests(true))
}

// teardown cancels every context this launchedInstance created, in
// reverse order, tolerating partial construction.
func (li *launchedInstance) teardown(logger arbor.ILogger) {
	for _, cancel := range li.tabCancel {
		if cancel != nil {
			cancel()
		}
	}
	if li.browserCancel != nil {
		li.browserCancel()
	}
	if li.allocCancel != nil {
		li.allocCancel()
	}
	if li.instance != nil {
		li.instance.State = models.BrowserStateClosed
	}
}

// close shuts down a live instance with a bounded timeout, per the
// restart protocol's "close tabs/browser with a bounded timeout" step.
func (li *launchedInstance) close(closeTimeout time.Duration) {
	done := make(chan struct{})
	go func() {
		for _, cancel := range li.tabCancel {
			if cancel != nil {
				cancel()
			}
		}
		if li.browserCancel != nil {
			li.browserCancel()
		}
		if li.allocCancel != nil {
			li.allocCancel()
		}
		close(done)
	}()

	if closeTimeout <= 0 {
		closeTimeout = 5 * time.Second
	}
	select {
	case <-done:
	case <-time.After(closeTimeout):
	}
	li.instance.State = models.BrowserStateClosed
}

func markLaunchFailureProxyBad(proxies interfaces.ProxyInventory, p *models.Proxy) {
	if p != nil {
		proxies.MarkBad(p)
	}
}
