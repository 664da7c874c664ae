// Package crawl drives site adapters: it walks cursors, fans out
// per-character fetches and hands normalized batches to the store.
package crawl

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/character-scraper/internal/ingest"
	"github.com/sells-group/character-scraper/internal/model"
	"github.com/sells-group/character-scraper/internal/sites"
	"github.com/sells-group/character-scraper/internal/store"
)

// Opener resolves a URL to a freshly constructed adapter. *sites.Registry
// implements it.
type Opener interface {
	Open(rawURL string, opts sites.Options) (sites.Scraper, error)
}

// Config bounds the runner's concurrency.
type Config struct {
	// MaxConcurrentCharacters limits per-character fetches fanned out from
	// one URL page.
	MaxConcurrentCharacters int
	// MaxConcurrentSites limits how many sites ScrapeAll walks at once.
	MaxConcurrentSites int
}

// Runner orchestrates scrapes against a store.
type Runner struct {
	store    store.Store
	opener   Opener
	siteOpts sites.Options
	cfg      Config
}

// SiteOpts controls a single site walk.
type SiteOpts struct {
	// FirstPageOnly stops after the first listing page.
	FirstPageOnly bool
	// MaxPages stops after this many pages when positive.
	MaxPages int
}

// Stats summarizes one site walk.
type Stats struct {
	Pages              int `json:"pages_processed" yaml:"pages_processed"`
	CharactersUpserted int `json:"characters_upserted" yaml:"characters_upserted"`
	URLsQueued         int `json:"urls_queued" yaml:"urls_queued"`
	URLsFailed         int `json:"urls_failed" yaml:"urls_failed"`
}

// SiteResult is the outcome of one site within ScrapeAll.
type SiteResult struct {
	Site  model.Site `json:"site" yaml:"site"`
	Stats Stats      `json:"stats" yaml:"stats"`
	Err   error      `json:"-" yaml:"-"`
}

// New creates a Runner. siteOpts is passed to every adapter it opens.
func New(st store.Store, opener Opener, siteOpts sites.Options, cfg Config) *Runner {
	if cfg.MaxConcurrentCharacters <= 0 {
		cfg.MaxConcurrentCharacters = 10
	}
	if cfg.MaxConcurrentSites <= 0 {
		cfg.MaxConcurrentSites = 5
	}
	return &Runner{store: st, opener: opener, siteOpts: siteOpts, cfg: cfg}
}

// ScrapeSite walks site's listing until the adapter reports no next cursor.
// Character pages are normalized and upserted page by page; URL pages fan
// out to ScrapeCharacter. A page fetch or store failure ends the walk, but
// pages already upserted stay stored.
func (r *Runner) ScrapeSite(ctx context.Context, site model.Site, opts SiteOpts) (Stats, error) {
	log := zap.L().With(
		zap.String("component", "crawl.runner"),
		zap.String("site", site.Name),
		zap.String("site_url", site.URL),
	)

	var stats Stats
	sc, err := r.opener.Open(site.URL, r.siteOpts)
	if err != nil {
		return stats, eris.Wrapf(err, "crawl: open scraper for %s", site.Name)
	}
	defer sc.Close() //nolint:errcheck

	start := time.Now()
	var cursor *model.Cursor
	for {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrapf(err, "crawl: %s cancelled after %d pages", site.Name, stats.Pages)
		}

		log.Debug("scraping page", zap.Int("page_index", stats.Pages))
		page, err := sc.ScrapeSite(ctx, site.URL, cursor)
		if err != nil {
			return stats, eris.Wrapf(err, "crawl: %s page %d", site.Name, stats.Pages+1)
		}
		stats.Pages++

		switch page.Kind() {
		case sites.KindCharacters:
			rows, err := r.store.UpsertBatch(ctx, site.ID, ingest.Normalize(page.Characters))
			if err != nil {
				return stats, eris.Wrapf(err, "crawl: %s store page %d", site.Name, stats.Pages)
			}
			stats.CharactersUpserted += len(rows)
		case sites.KindURLs:
			stats.URLsQueued += len(page.URLs)
			upserted, failed := r.fanOut(ctx, sc, site, page.URLs)
			stats.CharactersUpserted += upserted
			stats.URLsFailed += failed
		}

		if page.Next == nil || opts.FirstPageOnly || (opts.MaxPages > 0 && stats.Pages >= opts.MaxPages) {
			break
		}
		cursor = page.Next
	}

	log.Info("site scrape complete",
		zap.Int("pages_processed", stats.Pages),
		zap.Int("characters_upserted", stats.CharactersUpserted),
		zap.Int("urls_queued", stats.URLsQueued),
		zap.Int("urls_failed", stats.URLsFailed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return stats, nil
}

// fanOut scrapes and stores each character URL independently. A failure
// is counted and logged; it never affects sibling URLs.
func (r *Runner) fanOut(ctx context.Context, sc sites.Scraper, site model.Site, urls []string) (upserted, failed int) {
	log := zap.L().With(zap.String("component", "crawl.fanout"), zap.String("site", site.Name))

	var ok, bad atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrentCharacters)

	for _, u := range urls {
		g.Go(func() error {
			n, err := r.ingestCharacter(gctx, sc, site, u)
			if err != nil {
				log.Warn("character scrape failed", zap.String("url", u), zap.Error(err))
				bad.Add(1)
				return nil
			}
			ok.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load()), int(bad.Load())
}

func (r *Runner) ingestCharacter(ctx context.Context, sc sites.Scraper, site model.Site, characterURL string) (int, error) {
	c, err := sc.ScrapeCharacter(ctx, characterURL)
	if err != nil {
		return 0, err
	}
	rows, err := r.store.UpsertBatch(ctx, site.ID, ingest.Normalize([]model.Character{*c}))
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ScrapeAll walks every enabled site in the store concurrently. When names
// is non-empty only sites with a matching name run. One site's failure is
// reported in its SiteResult and never aborts the others.
func (r *Runner) ScrapeAll(ctx context.Context, names ...string) ([]SiteResult, error) {
	log := zap.L().With(zap.String("component", "crawl.runner"))

	enabled, err := r.store.ListSites(ctx, true)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: list sites")
	}
	selected := filterSites(enabled, names)
	if len(selected) == 0 {
		log.Info("no sites selected", zap.Strings("names", names))
		return nil, nil
	}
	log.Info("selected sites", zap.Int("count", len(selected)))

	results := make([]SiteResult, len(selected))
	var mu sync.Mutex
	var failed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrentSites)
	for i, site := range selected {
		g.Go(func() error {
			stats, err := r.ScrapeSite(gctx, site, SiteOpts{})
			results[i] = SiteResult{Site: site, Stats: stats, Err: err}
			if err != nil {
				log.Error("site scrape failed", zap.String("site", site.Name), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("scrape run complete",
		zap.Int("sites", len(selected)),
		zap.Int("failed", failed),
	)
	return results, nil
}

func filterSites(all []model.Site, names []string) []model.Site {
	if len(names) == 0 {
		return all
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}
	var out []model.Site
	for _, s := range all {
		if want[strings.ToLower(s.Name)] {
			out = append(out, s)
		}
	}
	return out
}

// Collect walks rawURL without touching the store and returns every
// character seen. URL pages are resolved through ScrapeCharacter in order.
// On failure the characters gathered so far are returned with the error.
func (r *Runner) Collect(ctx context.Context, rawURL string, firstPageOnly bool) ([]model.Character, error) {
	sc, err := r.opener.Open(rawURL, r.siteOpts)
	if err != nil {
		return nil, err
	}
	defer sc.Close() //nolint:errcheck

	var out []model.Character
	var cursor *model.Cursor
	for {
		page, err := sc.ScrapeSite(ctx, rawURL, cursor)
		if err != nil {
			return out, err
		}
		out = append(out, page.Characters...)
		for _, u := range page.URLs {
			c, err := sc.ScrapeCharacter(ctx, u)
			if err != nil {
				return out, err
			}
			out = append(out, *c)
		}
		if firstPageOnly || page.Next == nil {
			return out, nil
		}
		cursor = page.Next
	}
}

// ScrapeCharacter fetches a single profile without storing it.
func (r *Runner) ScrapeCharacter(ctx context.Context, characterURL string) (*model.Character, error) {
	sc, err := r.opener.Open(characterURL, r.siteOpts)
	if err != nil {
		return nil, err
	}
	defer sc.Close() //nolint:errcheck
	return sc.ScrapeCharacter(ctx, characterURL)
}
