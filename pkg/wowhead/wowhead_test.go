package wowhead

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/krelborne/wowloot/pkg/loot"
	"github.com/krelborne/wowloot/pkg/pagecache"
)

// rewriteTransport sends every request to the test server regardless of
// the host baked into the page URL.
type rewriteTransport struct {
	host string
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = rt.host
	return http.DefaultTransport.RoundTrip(req)
}

// flakyTransport fails the first n round trips with a transport error.
type flakyTransport struct {
	rt    http.RoundTripper
	fails int
	calls int
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, fmt.Errorf("connection reset")
	}
	return f.rt.RoundTrip(req)
}

func testClient(t *testing.T, srv *httptest.Server) (*Client, *[]time.Duration) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("bad test server URL: %v", err)
	}
	c := NewClient(pagecache.New(t.TempDir()), &http.Client{Transport: rewriteTransport{host: u.Host}})
	sleeps := &[]time.Duration{}
	c.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return c, sleeps
}

func TestFetchPageWritesThroughCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, "<html><body>npc 1234</body></html>")
	}))
	defer srv.Close()

	c, sleeps := testClient(t, srv)

	page, err := c.FetchPage(context.Background(), loot.KindNPC, 1234)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.FromCache {
		t.Fatal("first fetch should not come from cache")
	}
	if page.Body != "<html><body>npc 1234</body></html>" {
		t.Fatalf("unexpected body: %q", page.Body)
	}
	if _, ok := c.Cache.Get(loot.KindNPC, 1234); !ok {
		t.Fatal("fetched page not written to cache")
	}

	// Second fetch must be served from disk: no request, no pacing.
	again, err := c.FetchPage(context.Background(), loot.KindNPC, 1234)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !again.FromCache {
		t.Fatal("second fetch should come from cache")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 network request, got %d", got)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("cache hits must not sleep, recorded %v", *sleeps)
	}
}

func TestFetchPageRateLimitedBacksOffThenGivesUp(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, sleeps := testClient(t, srv)

	_, err := c.FetchPage(context.Background(), loot.KindNPC, 42)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Reason != ReasonRateLimited {
		t.Fatalf("reason = %v, want rate limited", fe.Reason)
	}
	if got := atomic.LoadInt32(&hits); fe.Attempts != 3 || got != 3 {
		t.Fatalf("expected 3 attempts, got attempts=%d hits=%d", fe.Attempts, got)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*sleeps) != len(want) || (*sleeps)[0] != want[0] || (*sleeps)[1] != want[1] {
		t.Fatalf("backoff schedule = %v, want %v", *sleeps, want)
	}
	if _, ok := c.Cache.Get(loot.KindNPC, 42); ok {
		t.Fatal("failed fetch must not populate the cache")
	}
}

func TestFetchPageNotFoundFailsFast(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, sleeps := testClient(t, srv)

	_, err := c.FetchPage(context.Background(), loot.KindObject, 9)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Reason != ReasonNotFound || fe.Attempts != 1 {
		t.Fatalf("unexpected failure: %+v", fe)
	}
	if got := atomic.LoadInt32(&hits); got != 1 || len(*sleeps) != 0 {
		t.Fatalf("404 must not retry: hits=%d sleeps=%v", got, *sleeps)
	}
}

func TestFetchPageServerErrorFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := testClient(t, srv)

	_, err := c.FetchPage(context.Background(), loot.KindNPC, 7)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Reason != ReasonNetworkError || fe.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected failure: %+v", fe)
	}
}

func TestFetchPageRetriesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "recovered")
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	c := NewClient(pagecache.New(t.TempDir()), &http.Client{
		Transport: &flakyTransport{rt: rewriteTransport{host: u.Host}, fails: 1},
	})
	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	page, err := c.FetchPage(context.Background(), loot.KindNPC, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Body != "recovered" {
		t.Fatalf("unexpected body %q", page.Body)
	}
	if len(sleeps) != 1 || sleeps[0] != 1*time.Second {
		t.Fatalf("expected one 1s backoff, got %v", sleeps)
	}
}

func TestFetchPagePacesConsecutiveRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	c, sleeps := testClient(t, srv)

	if _, err := c.FetchPage(context.Background(), loot.KindNPC, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("first request should not be paced, got %v", *sleeps)
	}

	c.lastSuccess = time.Now()
	if _, err := c.FetchPage(context.Background(), loot.KindNPC, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*sleeps) != 1 {
		t.Fatalf("expected one pacing sleep, got %v", *sleeps)
	}
	if d := (*sleeps)[0]; d <= 0 || d > c.MinRequestInterval {
		t.Fatalf("pacing sleep out of range: %v", d)
	}
}

func TestFetchItemInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/item=2244" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `<html><head><title>x</title><script type="application/json" id="data.page.info">{"name":"Krol Blade","quality":3,"classs":2,"flags":"0"}</script></head><body></body></html>`)
	}))
	defer srv.Close()

	c, _ := testClient(t, srv)

	info, err := c.FetchItemInfo(context.Background(), 2244)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "Krol Blade" || info.Quality != loot.QualityRare || !info.HasClass {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestPageURL(t *testing.T) {
	if got := PageURL(loot.KindNPC, 1234); got != "https://www.wowhead.com/npc=1234" {
		t.Fatalf("PageURL = %q", got)
	}
	if got := PageURL(loot.KindObject, 7); got != "https://www.wowhead.com/object=7" {
		t.Fatalf("PageURL = %q", got)
	}
}

func TestPageName(t *testing.T) {
	og := `<html><head><meta property="og:title" content="Rattlegore - NPC"><title>nope</title></head><body><h1>nope</h1></body></html>`
	if got := PageName(og); got != "Rattlegore" {
		t.Fatalf("og:title gave %q", got)
	}

	h1 := `<html><head><title>nope</title></head><body><h1> Scholomance Chest </h1></body></html>`
	if got := PageName(h1); got != "Scholomance Chest" {
		t.Fatalf("h1 gave %q", got)
	}

	titleOnly := `<html><head><title>Deadmines — Zone</title></head><body></body></html>`
	if got := PageName(titleOnly); got != "Deadmines" {
		t.Fatalf("title gave %q", got)
	}

	if got := PageName("<html><body></body></html>"); got != "" {
		t.Fatalf("empty page gave %q", got)
	}
}
