package sites

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/character-scraper/internal/fetcher"
	"github.com/sells-group/character-scraper/internal/model"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"

// base carries the state shared by every adapter: its name, its transport
// and the API origin it talks to.
type base struct {
	name      string
	http      fetcher.Fetcher
	apiBase   string
	userAgent string
	log       *zap.Logger
}

// newBase acquires the adapter's transport. A proxy misconfiguration fails
// here, before any request is made.
func newBase(name, defaultAPIBase string, opts Options) (*base, error) {
	var proxyURL *url.URL
	if opts.UseProxy {
		u, err := opts.Proxy.URL()
		if err != nil {
			return nil, eris.Wrapf(err, "%s: build transport", name)
		}
		proxyURL = u
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	apiBase := opts.APIBaseURL
	if apiBase == "" {
		apiBase = defaultAPIBase
	}

	return &base{
		name: name,
		http: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: ua,
			Timeout:   opts.Timeout,
			Proxy:     proxyURL,
		}),
		apiBase:   apiBase,
		userAgent: ua,
		log:       zap.L().With(zap.String("component", "sites."+name)),
	}, nil
}

// Name returns the adapter identifier.
func (b *base) Name() string { return b.name }

// Close releases the adapter's transport.
func (b *base) Close() error {
	return b.http.Close()
}

// ScrapeCharacter is the default for listing-only sites.
func (b *base) ScrapeCharacter(_ context.Context, characterURL string) (*model.Character, error) {
	return nil, eris.Wrapf(ErrUnsupported, "%s: no per-character scraping for %s; use ScrapeSite instead", b.name, characterURL)
}

func (b *base) getJSON(ctx context.Context, rawURL string, headers http.Header) (gjson.Result, error) {
	body, err := b.http.Get(ctx, rawURL, headers)
	if err != nil {
		return gjson.Result{}, eris.Wrapf(err, "%s: fetch", b.name)
	}
	doc, err := fetcher.ParseJSON(rawURL, body)
	if err != nil {
		return gjson.Result{}, eris.Wrapf(err, "%s: decode", b.name)
	}
	return doc, nil
}

func (b *base) postJSON(ctx context.Context, rawURL string, headers http.Header, payload any) (gjson.Result, error) {
	body, err := b.http.PostJSON(ctx, rawURL, headers, payload)
	if err != nil {
		return gjson.Result{}, eris.Wrapf(err, "%s: fetch", b.name)
	}
	doc, err := fetcher.ParseJSON(rawURL, body)
	if err != nil {
		return gjson.Result{}, eris.Wrapf(err, "%s: decode", b.name)
	}
	return doc, nil
}

// skip records an admission drop. Dropped items never fail the page.
func (b *base) skip(pageURL, reason string, fields ...zap.Field) {
	b.log.Info("skipping character: "+reason, append([]zap.Field{zap.String("url", pageURL)}, fields...)...)
}

// browserHeaders returns the request headers a Chromium browser sends for
// an XHR against the site, plus any site-specific extras.
func (b *base) browserHeaders(extra map[string]string) http.Header {
	h := http.Header{}
	h.Set("accept-language", "en-US,en;q=0.8")
	h.Set("sec-ch-ua", `"Brave";v="141", "Not?A_Brand";v="8", "Chromium";v="141"`)
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-ch-ua-platform", `"macOS"`)
	h.Set("sec-gpc", "1")
	h.Set("user-agent", b.userAgent)
	for k, v := range extra {
		h.Set(k, v)
	}
	return h
}
