// Package pipeline resolves provider records: tiered search, scrape,
// extraction and identity verification, with retry across query tiers.
package pipeline

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/contact-cli/internal/config"
	"github.com/sells-group/contact-cli/internal/llm"
	"github.com/sells-group/contact-cli/internal/model"
	"github.com/sells-group/contact-cli/internal/scrape"
	"github.com/sells-group/contact-cli/internal/search"
)

// Searcher runs one query and returns ranked hits.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.SearchHit, error)
}

// Resolver runs the resolution state machine for a single provider record.
type Resolver struct {
	searcher Searcher
	scraper  scrape.Scraper
	llm      llm.Service
	cfg      config.PipelineConfig
}

// NewResolver creates a Resolver.
func NewResolver(searcher Searcher, scraper scrape.Scraper, svc llm.Service, cfg config.PipelineConfig) *Resolver {
	return &Resolver{searcher: searcher, scraper: scraper, llm: svc, cfg: cfg}
}

// recordContext carries per-record state across the pipeline steps.
type recordContext struct {
	provider model.Provider
	queries  []string
	queryIdx int
	retries  int

	hits     []model.SearchHit
	pages    []*model.PageContent
	contacts []model.ExtractedContact

	best       *model.ExtractedContact
	bestScore  int
	reasoning  string
	sourceURLs []string
	status     model.MatchStatus

	// last transport failure across tiers; diagnostic, never fails the record
	searchErr error
}

// Resolve runs a provider through the pipeline and returns its terminal
// result. It only fails on context cancellation; everything else degrades
// to a NOT_FOUND outcome.
func (r *Resolver) Resolve(ctx context.Context, p model.Provider) (*model.RecordResult, error) {
	log := zap.L().With(zap.String("project_id", p.ProjectID))

	rc := &recordContext{
		provider: p,
		queries:  search.BuildQueries(p),
		status:   model.MatchNotFound,
	}
	log.Info("record start", zap.Int("queries", len(rc.queries)))

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.runTier(ctx, rc, log); err != nil {
			return nil, err
		}

		if !r.shouldRetry(rc) {
			break
		}
		rc.queryIdx++
		rc.retries++
		rc.hits = nil
		rc.pages = nil
		rc.contacts = nil
		log.Info("retrying next tier",
			zap.Int("query_idx", rc.queryIdx),
			zap.Int("retries", rc.retries),
		)
	}

	result := &model.RecordResult{
		Contact:    rc.best,
		Confidence: rc.bestScore,
		Reasoning:  rc.reasoning,
		SourceURLs: rc.sourceURLs,
		Status:     rc.status,
		Retries:    rc.retries,
	}
	if rc.searchErr != nil {
		log.Warn("record saw search failures", zap.Error(rc.searchErr))
	}
	log.Info("record done",
		zap.String("status", string(result.Status)),
		zap.Int("confidence", result.Confidence),
		zap.Int("retries", result.Retries),
	)
	return result, nil
}

// runTier executes search, scrape, extract and verify for the current query.
func (r *Resolver) runTier(ctx context.Context, rc *recordContext, log *zap.Logger) error {
	if err := r.doSearch(ctx, rc, log); err != nil {
		return err
	}
	if err := r.doScrape(ctx, rc); err != nil {
		return err
	}
	if err := r.doExtract(ctx, rc, log); err != nil {
		return err
	}
	return r.doVerify(ctx, rc, log)
}

func (r *Resolver) doSearch(ctx context.Context, rc *recordContext, log *zap.Logger) error {
	if rc.queryIdx >= len(rc.queries) {
		rc.hits = nil
		return nil
	}

	// Pace search tiers like a human would, except the first.
	if rc.queryIdx > 0 {
		if err := pacedSleep(ctx, r.cfg.TierDelayMinSecs, r.cfg.TierDelayMaxSecs); err != nil {
			return err
		}
	}

	hits, err := r.searcher.Search(ctx, rc.queries[rc.queryIdx], r.cfg.MaxResults)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A dead tier is not fatal; the record moves on with no hits.
		log.Warn("search tier failed", zap.Int("query_idx", rc.queryIdx), zap.Error(err))
		rc.searchErr = err
		rc.hits = nil
		return nil
	}
	rc.hits = hits
	return nil
}

func (r *Resolver) doScrape(ctx context.Context, rc *recordContext) error {
	max := r.cfg.MaxScrapePages
	if max <= 0 {
		max = 5
	}

	for i, hit := range rc.hits {
		if i >= max {
			break
		}
		page, err := r.scraper.Scrape(ctx, hit.URL)
		if err != nil {
			return err
		}
		if page.Success && page.Text != "" {
			rc.pages = append(rc.pages, page)
		}
	}
	return nil
}

func (r *Resolver) doExtract(ctx context.Context, rc *recordContext, log *zap.Logger) error {
	for _, page := range rc.pages {
		contact, err := r.llm.ExtractContact(ctx, page.Text, rc.provider, page.URL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("extraction failed", zap.String("url", page.URL), zap.Error(err))
			continue
		}
		if !contact.IsEmpty() {
			rc.contacts = append(rc.contacts, contact)
		}
	}
	return nil
}

// doVerify scores every candidate from the current tier and keeps the single
// best. Only candidates at or above the threshold contribute source URLs.
func (r *Resolver) doVerify(ctx context.Context, rc *recordContext, log *zap.Logger) error {
	pageTexts := make(map[string]string, len(rc.pages))
	for _, p := range rc.pages {
		pageTexts[p.URL] = p.Text
	}

	var best *model.ExtractedContact
	bestScore := 0
	bestReasoning := ""
	var sourceURLs []string

	for i := range rc.contacts {
		contact := rc.contacts[i]
		outcome, err := r.llm.VerifyIdentity(ctx, rc.provider, contact, pageTexts[contact.SourceURL])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("verification failed", zap.String("url", contact.SourceURL), zap.Error(err))
			continue
		}

		if outcome.Confidence > bestScore {
			bestScore = outcome.Confidence
			best = &contact
			bestReasoning = outcome.Reasoning
		}
		if outcome.Confidence >= r.cfg.ConfidenceThreshold {
			sourceURLs = append(sourceURLs, contact.SourceURL)
		}
	}

	if bestScore >= r.cfg.ConfidenceThreshold && best != nil {
		rc.status = model.MatchFound
		if best.Phone == "" && best.Email == "" {
			rc.status = model.MatchPartial
		}
	} else {
		rc.status = model.MatchNotFound
		best = nil
	}

	rc.best = best
	rc.bestScore = bestScore
	rc.reasoning = bestReasoning
	rc.sourceURLs = sourceURLs
	return nil
}

// shouldRetry decides whether a non-FOUND record gets the next query tier.
func (r *Resolver) shouldRetry(rc *recordContext) bool {
	if rc.status == model.MatchFound {
		return false
	}
	return rc.queryIdx+1 < len(rc.queries) && rc.retries < r.cfg.MaxRetries
}

// pacedSleep pauses for a random duration in [min, max] seconds, honoring ctx.
func pacedSleep(ctx context.Context, minSecs, maxSecs float64) error {
	if maxSecs <= 0 {
		return nil
	}
	if maxSecs < minSecs {
		maxSecs = minSecs
	}
	d := time.Duration((minSecs + rand.Float64()*(maxSecs-minSecs)) * float64(time.Second))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
