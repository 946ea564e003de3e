package wowhead

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/krelborne/wowloot/internal/utils"
	"github.com/krelborne/wowloot/pkg/itempage"
	"github.com/krelborne/wowloot/pkg/loot"
	"github.com/krelborne/wowloot/pkg/pagecache"
	"github.com/krelborne/wowloot/pkg/whttp"
)

const (
	BaseURL = "https://www.wowhead.com"

	DefaultMaxAttempts  = 3
	DefaultRetryWaitMin = 1 * time.Second
	DefaultRetryWaitMax = 4 * time.Second
	DefaultMinInterval  = 500 * time.Millisecond

	browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Reason classifies why a fetch gave up.
type Reason int

const (
	ReasonNetworkError Reason = iota
	ReasonRateLimited
	ReasonNotFound
)

func (r Reason) String() string {
	switch r {
	case ReasonRateLimited:
		return "rate limited"
	case ReasonNotFound:
		return "not found"
	default:
		return "network error"
	}
}

// FetchError is returned when a page could not be retrieved. Callers pick
// the failure class off Reason with errors.As.
type FetchError struct {
	Reason   Reason
	Kind     loot.Kind
	ID       int
	URL      string
	Status   int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	switch e.Reason {
	case ReasonNotFound:
		return fmt.Sprintf("%s %d not found (HTTP 404)", e.Kind, e.ID)
	case ReasonRateLimited:
		return fmt.Sprintf("rate limited fetching %s %d after %d attempts", e.Kind, e.ID, e.Attempts)
	default:
		if e.Err != nil {
			return fmt.Sprintf("fetching %s %d: %v", e.Kind, e.ID, e.Err)
		}
		return fmt.Sprintf("fetching %s %d: HTTP %d", e.Kind, e.ID, e.Status)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// SourcePage is a retrieved page plus where it came from.
type SourcePage struct {
	Kind      loot.Kind
	ID        int
	Body      string
	FromCache bool
}

// Client fetches pages with retry, rate-limit backoff and a write-through
// page cache. Requests are paced so two network successes are at least
// MinRequestInterval apart; cache hits cost no network traffic and no delay.
type Client struct {
	Cache              *pagecache.Store
	HTTP               *http.Client
	MaxAttempts        int
	RetryWaitMin       time.Duration
	RetryWaitMax       time.Duration
	MinRequestInterval time.Duration

	sleep       func(time.Duration)
	lastSuccess time.Time
}

func NewClient(cache *pagecache.Store, httpClient *http.Client) *Client {
	return &Client{
		Cache:              cache,
		HTTP:               httpClient,
		MaxAttempts:        DefaultMaxAttempts,
		RetryWaitMin:       DefaultRetryWaitMin,
		RetryWaitMax:       DefaultRetryWaitMax,
		MinRequestInterval: DefaultMinInterval,
		sleep:              time.Sleep,
	}
}

// PageURL builds the canonical page address for a target.
func PageURL(kind loot.Kind, id int) string {
	return fmt.Sprintf("%s/%s=%d", BaseURL, kind, id)
}

// FetchPage returns the page for (kind, id), serving from cache when
// possible and otherwise retrying up to MaxAttempts times. Rate limits and
// transport errors back off on the RetryWaitMin..RetryWaitMax schedule;
// a 404 fails immediately.
func (c *Client) FetchPage(ctx context.Context, kind loot.Kind, id int) (*SourcePage, error) {
	if body, ok := c.Cache.Get(kind, id); ok {
		utils.Log.Debugf("Cache hit for %s %d", kind, id)
		return &SourcePage{Kind: kind, ID: id, Body: string(body), FromCache: true}, nil
	}

	url := PageURL(kind, id)
	c.throttle()

	var lastErr error
	var lastStatus int
	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		res, err := whttp.SendHTTPRequest(ctx,
			&whttp.WHTTPReq{
				Method: "GET",
				URL:    url,
				Headers: []whttp.WHTTPHeader{
					{Name: "User-Agent", Value: browserUserAgent},
					{Name: "Accept", Value: "text/html,application/xhtml+xml"},
				},
			}, c.HTTP)

		if err != nil {
			lastErr = err
			lastStatus = 0
			if attempt+1 < c.MaxAttempts {
				wait := retryablehttp.DefaultBackoff(c.RetryWaitMin, c.RetryWaitMax, attempt, nil)
				utils.Log.Warnf("Request to %s failed (attempt %d/%d), retrying in %s: %v", url, attempt+1, c.MaxAttempts, wait, err)
				c.sleep(wait)
			}
			continue
		}

		switch {
		case res.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("HTTP 429 for %s", url)
			lastStatus = res.StatusCode
			if attempt+1 < c.MaxAttempts {
				wait := retryablehttp.DefaultBackoff(c.RetryWaitMin, c.RetryWaitMax, attempt,
					&http.Response{StatusCode: res.StatusCode, Header: res.Header})
				utils.Log.Warnf("Rate limited on %s (attempt %d/%d), backing off %s", url, attempt+1, c.MaxAttempts, wait)
				c.sleep(wait)
			}
			continue

		case res.StatusCode == http.StatusNotFound:
			return nil, &FetchError{Reason: ReasonNotFound, Kind: kind, ID: id, URL: url, Status: res.StatusCode, Attempts: attempt + 1}

		case res.StatusCode >= 200 && res.StatusCode < 300:
			c.lastSuccess = time.Now()
			if err := c.Cache.Put(kind, id, []byte(res.BodyString)); err != nil {
				utils.Log.Warnf("Failed to cache %s %d: %v", kind, id, err)
			}
			return &SourcePage{Kind: kind, ID: id, Body: res.BodyString}, nil

		default:
			return nil, &FetchError{Reason: ReasonNetworkError, Kind: kind, ID: id, URL: url, Status: res.StatusCode, Attempts: attempt + 1}
		}
	}

	reason := ReasonNetworkError
	if lastStatus == http.StatusTooManyRequests {
		reason = ReasonRateLimited
	}
	return nil, &FetchError{Reason: reason, Kind: kind, ID: id, URL: url, Status: lastStatus, Attempts: c.MaxAttempts, Err: lastErr}
}

// FetchItemInfo retrieves an individual item page and parses its metadata.
func (c *Client) FetchItemInfo(ctx context.Context, itemID int) (*itempage.Info, error) {
	page, err := c.FetchPage(ctx, loot.KindItem, itemID)
	if err != nil {
		return nil, err
	}
	return itempage.Parse(page.Body, itemID), nil
}

// throttle spaces network requests out from the previous success.
func (c *Client) throttle() {
	if c.lastSuccess.IsZero() || c.MinRequestInterval <= 0 {
		return
	}
	if since := time.Since(c.lastSuccess); since < c.MinRequestInterval {
		c.sleep(c.MinRequestInterval - since)
	}
}

// PageName resolves a target's display name from its page markup, trying
// the og:title meta tag, then the first heading, then the document title.
func PageName(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(content) != "" {
			return cleanTitle(content)
		}
		if h1 := doc.Find("h1").First(); strings.TrimSpace(h1.Text()) != "" {
			return cleanTitle(h1.Text())
		}
	}
	if title, ok := whttp.PageTitle(body); ok {
		return cleanTitle(title)
	}
	return ""
}

// cleanTitle cuts site-name suffixes off a page title.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	for _, sep := range []string{"—", " - ", " – "} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimRight(s, " -–—")
}
