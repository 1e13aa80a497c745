package serp

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// resultContainerClasses mark elements that wrap a single organic result in
// the desktop result page layout.
var resultContainerClasses = []string{"MjjYud", "g"}

// ParseResults extracts organic results from a search result page. It first
// tries the known container layout, then falls back to scanning every anchor
// that wraps a heading. Results are deduplicated by URL and capped at max.
func ParseResults(body []byte, max int) []Result {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	results := parseContainers(doc, max)
	if len(results) == 0 {
		results = parseAnchors(doc, max)
	}
	return results
}

// parseContainers walks known result containers and pulls the anchor with a
// heading child plus the first text block that follows it as the snippet.
func parseContainers(doc *html.Node, max int) []Result {
	var results []Result
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= max {
			return
		}
		if n.Type == html.ElementNode && isResultContainer(n) {
			if r, ok := extractResult(n); ok && !seen[r.URL] {
				seen[r.URL] = true
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

// parseAnchors is the loose fallback: any external anchor containing an h3.
func parseAnchors(doc *html.Node, max int) []Result {
	var results []Result
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= max {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := cleanHref(attr(n, "href"))
			if href != "" && !seen[href] {
				if h3 := findElement(n, "h3"); h3 != nil {
					seen[href] = true
					results = append(results, Result{URL: href, Title: textContent(h3)})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

func isResultContainer(n *html.Node) bool {
	if n.Data != "div" {
		return false
	}
	classes := strings.Fields(attr(n, "class"))
	for _, c := range classes {
		for _, want := range resultContainerClasses {
			if c == want {
				return true
			}
		}
	}
	if attr(n, "data-sokoban-container") != "" {
		return true
	}
	return false
}

// extractResult pulls URL, title and snippet out of a result container.
func extractResult(container *html.Node) (Result, bool) {
	var r Result

	var anchor *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if anchor != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && findElement(n, "h3") != nil {
			anchor = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)
	if anchor == nil {
		return r, false
	}

	r.URL = cleanHref(attr(anchor, "href"))
	if r.URL == "" {
		return r, false
	}
	r.Title = textContent(findElement(anchor, "h3"))
	r.Snippet = findSnippet(container, anchor)
	return r, true
}

// findSnippet returns the longest text block in the container that is not
// part of the title anchor.
func findSnippet(container, anchor *html.Node) string {
	var best string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == anchor {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "div" || n.Data == "span") {
			if t := strings.TrimSpace(textContent(n)); len(t) > len(best) {
				best = t
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)
	if len(best) > 300 {
		best = best[:300]
	}
	return best
}

// cleanHref normalizes an anchor href into an absolute external URL, or
// returns "" for internal navigation and redirect links.
func cleanHref(href string) string {
	// Result links are sometimes wrapped as /url?q=<target>&...
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		if target := u.Query().Get("q"); target != "" {
			href = target
		}
	}
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.Contains(lower, "google.com") || strings.Contains(lower, "google.co") {
		return ""
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
