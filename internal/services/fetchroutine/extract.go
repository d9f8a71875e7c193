// -----------------------------------------------------------------------
// Embedded-state extraction - parses a store page's preloaded JSON state
// out of its rendered document
// -----------------------------------------------------------------------

package fetchroutine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// embeddedState is the minimum schema read out of the store page's
// preloaded state script: a channel/tenant id plus a map of productId to
// partial payload, per spec.md §4.5 and §9's "minimum schema for
// identifiers" note.
type embeddedState struct {
	ChannelID string                     `json:"channelId"`
	Products  map[string]json.RawMessage `json:"products"`
}

// embeddedStateSelector is the CSS selector for the script tag a store
// page uses to bootstrap client-side state with server-rendered data.
const embeddedStateSelector = `script#__STORE_STATE__`

// extractEmbeddedState navigates the tab to storeURL, renders the
// document, and parses the embedded state script via goquery.
func extractEmbeddedState(ctx context.Context, tabCtx context.Context, storeURL string) (*embeddedState, error) {
	if err := chromedp.Run(tabCtx, chromedp.Navigate(storeURL)); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return nil, fmt.Errorf("outer html: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	script := doc.Find(embeddedStateSelector).First()
	if script.Length() == 0 {
		return nil, fmt.Errorf("UNSUPPORTED_BROWSER: embedded state script not found")
	}

	var state embeddedState
	if err := json.Unmarshal([]byte(script.Text()), &state); err != nil {
		return nil, fmt.Errorf("unmarshal embedded state: %w", err)
	}
	return &state, nil
}
