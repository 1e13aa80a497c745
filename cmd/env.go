package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-cli/internal/llm"
	"github.com/sells-group/contact-cli/internal/pipeline"
	"github.com/sells-group/contact-cli/internal/pool"
	"github.com/sells-group/contact-cli/internal/resilience"
	"github.com/sells-group/contact-cli/internal/scrape"
	"github.com/sells-group/contact-cli/internal/search"
	"github.com/sells-group/contact-cli/internal/store"
	anthropicpkg "github.com/sells-group/contact-cli/pkg/anthropic"
	"github.com/sells-group/contact-cli/pkg/serp"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "contact_cli.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// env bundles the wired pipeline plus the store behind it.
type env struct {
	Store        store.Store
	Resolver     *pipeline.Resolver
	Orchestrator *pipeline.Orchestrator
}

func (e *env) Close() {
	_ = e.Store.Close()
}

// initEnv builds the full resolution pipeline from config. Search traffic is
// rate limited; page fetches are not, they spread across many hosts.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	if cfg.Anthropic.Key == "" {
		_ = st.Close()
		return nil, eris.New("anthropic API key is required (CONTACT_ANTHROPIC_KEY)")
	}

	searchClient := serp.NewClient(
		serp.WithBaseURL(cfg.Serp.BaseURL),
		serp.WithSearchRate(cfg.Serp.SearchesPerSec),
		serp.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Serp.TimeoutSecs) * time.Second}),
	)
	fetchClient := serp.NewClient(
		serp.WithSearchRate(0),
		serp.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Scrape.TimeoutSecs) * time.Second}),
	)

	p := pool.New(cfg.Pool.Size, resilience.DefaultRetryConfig())

	searcher := search.NewSearcher(searchClient, p)
	scraper := scrape.NewHTTPScraper(fetchClient, p, cfg.Scrape.MaxTextChars)

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	svc := llm.NewService(anthropicClient, cfg.Anthropic.Model)

	resolver := pipeline.NewResolver(searcher, scraper, svc, cfg.Pipeline)
	orchestrator := pipeline.NewOrchestrator(resolver, st, cfg.Pipeline)

	return &env{
		Store:        st,
		Resolver:     resolver,
		Orchestrator: orchestrator,
	}, nil
}
