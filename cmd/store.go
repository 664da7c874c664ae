package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/character-scraper/internal/config"
	"github.com/sells-group/character-scraper/internal/crawl"
	"github.com/sells-group/character-scraper/internal/sites"
	"github.com/sells-group/character-scraper/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "characters.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured store and applies its schema.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func siteOptions(c *config.Config) sites.Options {
	return sites.Options{
		UseProxy:  c.Scrape.UseProxy,
		Proxy:     c.Proxy,
		Timeout:   time.Duration(c.Scrape.TimeoutSecs) * time.Second,
		UserAgent: c.Scrape.UserAgent,
	}
}

func newCrawler(st store.Store) *crawl.Runner {
	return crawl.New(st, sites.DefaultRegistry(), siteOptions(cfg), crawl.Config{
		MaxConcurrentCharacters: cfg.Scrape.MaxConcurrentCharacters,
		MaxConcurrentSites:      cfg.Scrape.MaxConcurrentSites,
	})
}
