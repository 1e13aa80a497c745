package search

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/contact-cli/internal/model"
	"github.com/sells-group/contact-cli/internal/pool"
	"github.com/sells-group/contact-cli/pkg/serp"
)

// Searcher executes queries through the search client under the shared pool.
type Searcher struct {
	client serp.Client
	pool   *pool.Pool
}

// NewSearcher creates a Searcher.
func NewSearcher(client serp.Client, p *pool.Pool) *Searcher {
	return &Searcher{client: client, pool: p}
}

// Search runs one query and returns ranked, filtered hits, at most
// maxResults of them.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int) ([]model.SearchHit, error) {
	// Ask for extra raw results since the blocklist thins them out.
	raw, err := pool.Run(ctx, s.pool, "search", func(ctx context.Context) ([]serp.Result, error) {
		return s.client.Search(ctx, query, maxResults*2)
	})
	if err != nil {
		return nil, err
	}

	hits := FilterRank(raw, maxResults)
	zap.L().Debug("search complete",
		zap.String("query", query),
		zap.Int("raw", len(raw)),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}

// FilterRank drops blocked and duplicate URLs, ranks the remainder and
// returns the best max hits in rank order. Ties keep their original order.
func FilterRank(raw []serp.Result, max int) []model.SearchHit {
	seen := make(map[string]bool, len(raw))
	hits := make([]model.SearchHit, 0, len(raw))

	for _, r := range raw {
		if r.URL == "" || seen[r.URL] || IsBlockedURL(r.URL) {
			continue
		}
		seen[r.URL] = true
		hits = append(hits, model.SearchHit{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Snippet,
			Rank:    RankURL(r.URL),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Rank < hits[j].Rank
	})

	if len(hits) > max {
		hits = hits[:max]
	}
	return hits
}
