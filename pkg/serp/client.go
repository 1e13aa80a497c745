// Package serp fetches and parses search-engine result pages.
package serp

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/contact-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://www.google.com"

	// userAgent mimics a desktop browser; the result page served to unknown
	// agents is a stripped variant the parser does not target.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	maxBodyBytes = 2 * 1024 * 1024
)

// Client performs web search and page fetch operations.
type Client interface {
	// Search fetches the result page for query and returns parsed entries,
	// at most maxResults of them.
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
	// Fetch retrieves the raw HTML of a page.
	Fetch(ctx context.Context, targetURL string) (*Page, error)
}

// Result is one raw search result entry.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Page is a fetched document.
type Page struct {
	URL        string `json:"url"`
	HTML       string `json:"html"`
	StatusCode int    `json:"status_code"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default search engine base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithSearchRate caps outgoing searches per second. Zero disables the limiter.
func WithSearchRate(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a search-engine client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(0.5), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "serp: rate limit wait")
		}
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("num", strconv.Itoa(maxResults))
	body, err := c.get(ctx, c.baseURL+"/search?"+q.Encode())
	if err != nil {
		return nil, err
	}

	return ParseResults(body, maxResults), nil
}

func (c *httpClient) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	body, err := c.get(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	return &Page{URL: targetURL, HTML: string(body), StatusCode: http.StatusOK}, nil
}

func (c *httpClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "serp: create request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serp: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "serp: read response")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("serp: status %d for %s", resp.StatusCode, rawURL),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("serp: status %d for %s", resp.StatusCode, rawURL)
	}

	return body, nil
}
