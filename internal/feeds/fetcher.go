package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	// DefaultTimeout bounds a single feed request.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies the ingester to feed servers.
	DefaultUserAgent = "Mozilla/5.0 (compatible; Feedsift/1.0; +https://github.com/hoanghai1803/feedsift)"

	rateLimitDelay = 1 * time.Second
	maxWords       = 5000
)

// FetchError reports a feed that could not be retrieved or parsed. The
// message embeds the underlying transport or parse error text.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching feed %q: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching feed %q: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Feed is a parsed feed document.
type Feed struct {
	Title       string
	Description string
	Items       []RawItem
}

// FetcherOptions configures a Fetcher. Zero values fall back to the defaults.
type FetcherOptions struct {
	Timeout   time.Duration
	UserAgent string
}

// Fetcher retrieves feed documents over HTTP. It never retries and never
// touches persistence; failures are returned to the caller as *FetchError.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	rateLimiter map[string]time.Time // per-domain last article request
	mu          sync.Mutex           // protects rateLimiter
}

// NewFetcher creates a Fetcher with a bounded request timeout and an
// identifying User-Agent.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &userAgentTransport{
				base:      http.DefaultTransport,
				userAgent: opts.UserAgent,
			},
		},
		timeout:     opts.Timeout,
		userAgent:   opts.UserAgent,
		rateLimiter: make(map[string]time.Time),
	}
}

// userAgentTransport wraps an http.RoundTripper to inject the configured
// User-Agent header on every request.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")
	return t.base.RoundTrip(req)
}

// Fetch retrieves and parses the feed at feedURL.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = f.client

	parsed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		fetchErr := &FetchError{URL: feedURL, Err: err}
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			fetchErr.StatusCode = httpErr.StatusCode
		}
		return nil, fetchErr
	}

	feed := &Feed{
		Title:       parsed.Title,
		Description: parsed.Description,
		Items:       make([]RawItem, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		feed.Items = append(feed.Items, rawItemFromGofeed(item))
	}
	return feed, nil
}

// ExtractArticle fetches the full article text from the given URL using
// go-readability. The returned text is truncated to 5000 words maximum.
func (f *Fetcher) ExtractArticle(ctx context.Context, articleURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	domain := extractDomain(articleURL)
	if err := f.waitForRateLimit(ctx, domain); err != nil {
		return "", err
	}

	text, err := extractFullText(articleURL, f.timeout, f.userAgent)
	if err != nil {
		return "", fmt.Errorf("extracting article from %q: %w", articleURL, err)
	}

	return truncateWords(text, maxWords), nil
}

// waitForRateLimit enforces a minimum delay of 1 second between article
// requests to the same domain. The wait is abandoned if ctx ends first.
func (f *Fetcher) waitForRateLimit(ctx context.Context, domain string) error {
	f.mu.Lock()
	var wait time.Duration
	now := time.Now()
	if last, ok := f.rateLimiter[domain]; ok {
		if next := last.Add(rateLimitDelay); next.After(now) {
			wait = next.Sub(now)
		}
	}
	// Reserve the slot before sleeping so concurrent callers queue behind us.
	f.rateLimiter[domain] = now.Add(wait)
	f.mu.Unlock()

	if wait == 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// extractDomain parses a URL and returns its hostname. If parsing fails, it
// returns the raw URL as a fallback key.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
