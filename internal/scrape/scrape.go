// Package scrape fetches result pages and reduces them to plain text.
package scrape

import (
	"bytes"
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/sells-group/contact-cli/internal/model"
	"github.com/sells-group/contact-cli/internal/pool"
	"github.com/sells-group/contact-cli/pkg/serp"
)

// DefaultMaxTextChars caps extracted page text.
const DefaultMaxTextChars = 8000

// skipTags are elements whose text never carries contact details.
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"iframe":   true,
	"svg":      true,
}

// Scraper fetches a page and returns its text content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*model.PageContent, error)
}

// HTTPScraper fetches pages over plain HTTP under the shared pool.
type HTTPScraper struct {
	client   serp.Client
	pool     *pool.Pool
	maxChars int
}

// NewHTTPScraper creates an HTTPScraper. maxChars <= 0 uses the default cap.
func NewHTTPScraper(client serp.Client, p *pool.Pool, maxChars int) *HTTPScraper {
	if maxChars <= 0 {
		maxChars = DefaultMaxTextChars
	}
	return &HTTPScraper{client: client, pool: p, maxChars: maxChars}
}

// Scrape downloads the page and extracts readable text. Fetch failures after
// retries are reported as an unsuccessful PageContent rather than an error,
// so one dead link never aborts a record.
func (s *HTTPScraper) Scrape(ctx context.Context, url string) (*model.PageContent, error) {
	page, err := pool.Run(ctx, s.pool, "scrape", func(ctx context.Context) (*serp.Page, error) {
		return s.client.Fetch(ctx, url)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Warn("scrape failed", zap.String("url", url), zap.Error(err))
		return &model.PageContent{URL: url, Success: false}, nil
	}

	title, text := ExtractText([]byte(page.HTML), s.maxChars)
	return &model.PageContent{
		URL:     url,
		Title:   title,
		Text:    text,
		Success: true,
	}, nil
}

// ExtractText parses HTML and returns the document title and the visible
// text, whitespace-collapsed and truncated to maxChars.
func ExtractText(body []byte, maxChars int) (title, text string) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text = strings.Join(strings.Fields(sb.String()), " ")
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return title, text
}
