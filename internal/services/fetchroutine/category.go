// -----------------------------------------------------------------------
// Category fetch routine - navigates a category listing and extracts its
// linked store/product ids
// -----------------------------------------------------------------------

package fetchroutine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fetchgateway/internal/interfaces"
)

// categoryLinkSelector is the CSS selector for anchors a category page
// uses to link out to its stores.
const categoryLinkSelector = `a[data-store-id]`

// categoryRoutine implements interfaces.FetchRoutine for
// models.JobKindCategory: navigate, collect linked store ids, return them
// as the final payload. Category pages carry no preload/bootstrap state
// of their own; they exist to seed store jobs.
type categoryRoutine struct {
	logger arbor.ILogger
}

func newCategoryRoutine(logger arbor.ILogger) *categoryRoutine {
	return &categoryRoutine{logger: logger}
}

type categoryResult struct {
	StoreIDs []string `json:"storeIds"`
}

func (r *categoryRoutine) Fetch(ctx context.Context, tab interfaces.Tab, url string, onProgress interfaces.OnProgress) interfaces.FetchResult {
	if err := chromedp.Run(tab.Context(), chromedp.Navigate(url)); err != nil {
		return interfaces.FetchResult{Success: false, Error: fmt.Sprintf("PROXY_OR_NETWORK: navigate: %v", err)}
	}

	var html string
	if err := chromedp.Run(tab.Context(), chromedp.OuterHTML("html", &html)); err != nil {
		return interfaces.FetchResult{Success: false, Error: fmt.Sprintf("OTHER: outer html: %v", err)}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return interfaces.FetchResult{Success: false, Error: fmt.Sprintf("OTHER: parse document: %v", err)}
	}

	var ids []string
	doc.Find(categoryLinkSelector).Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("data-store-id"); ok && id != "" {
			ids = append(ids, id)
		}
	})
	if len(ids) == 0 {
		return interfaces.FetchResult{Success: false, Error: "UNSUPPORTED_BROWSER: no store links found on category page"}
	}

	data, err := json.Marshal(categoryResult{StoreIDs: ids})
	if err != nil {
		return interfaces.FetchResult{Success: false, Error: fmt.Sprintf("OTHER: %v", err)}
	}
	return interfaces.FetchResult{Success: true, Data: data}
}
