package sites

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/character-scraper/internal/config"
	"github.com/sells-group/character-scraper/internal/fetcher"
	"github.com/sells-group/character-scraper/internal/model"
)

var (
	// ErrUnsupported is returned by adapters that cannot perform the
	// requested operation; the message names the supported entry point.
	ErrUnsupported = eris.New("sites: operation not supported")
	// ErrUnroutable is returned when no registered adapter matches a URL.
	ErrUnroutable = eris.New("sites: no scraper for url")
	// ErrProxyConfig is returned when UseProxy is set but the proxy
	// environment is incomplete.
	ErrProxyConfig = config.ErrProxyConfig
)

// TransportError and ParseError are the per-call fetch failures adapters
// surface. Both end the pagination walk that produced them.
type (
	TransportError = fetcher.TransportError
	ParseError     = fetcher.ParseError
)

// IsFetchFailure reports whether err is a TransportError or ParseError.
func IsFetchFailure(err error) bool {
	var te *TransportError
	var pe *ParseError
	return errors.As(err, &te) || errors.As(err, &pe)
}

// Kind tells callers which half of a Page is populated.
type Kind int

const (
	// KindEmpty is a page with no admitted items.
	KindEmpty Kind = iota
	// KindCharacters pages embed fully populated characters.
	KindCharacters
	// KindURLs pages list character URLs that need ScrapeCharacter.
	KindURLs
)

// Page is one listing fetch. At most one of Characters and URLs is set.
// Next is nil when no further pages exist.
type Page struct {
	Characters []model.Character
	URLs       []string
	Next       *model.Cursor
}

// Kind reports which item list the page carries.
func (p *Page) Kind() Kind {
	switch {
	case len(p.Characters) > 0:
		return KindCharacters
	case len(p.URLs) > 0:
		return KindURLs
	default:
		return KindEmpty
	}
}

// Scraper is the contract every site adapter implements.
type Scraper interface {
	// Name returns the adapter identifier (e.g., "chub", "janitor").
	Name() string

	// ScrapeCharacter fetches and normalizes a single profile. Listing-only
	// adapters return ErrUnsupported.
	ScrapeCharacter(ctx context.Context, characterURL string) (*model.Character, error)

	// ScrapeSite fetches one listing page. A nil cursor requests the first page.
	ScrapeSite(ctx context.Context, siteURL string, cursor *model.Cursor) (*Page, error)

	// Close releases the adapter's transport.
	Close() error
}

// Options configures adapter construction.
type Options struct {
	// UseProxy routes the transport through Proxy. Construction fails with
	// ErrProxyConfig when Proxy is incomplete.
	UseProxy bool
	Proxy    config.ProxyConfig
	// Timeout is the per-request deadline.
	Timeout time.Duration
	// UserAgent overrides the browser user agent sent to sites.
	UserAgent string
	// APIBaseURL replaces the site's API origin (used by tests).
	APIBaseURL string
}

// Constructor builds an adapter from options.
type Constructor func(opts Options) (Scraper, error)
