package sites

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	_ Scraper = (*Chub)(nil)
	_ Scraper = (*Janitor)(nil)
	_ Scraper = (*Pygmalion)(nil)
	_ Scraper = (*Wyvern)(nil)
)

type route struct {
	host string
	ctor Constructor
}

// Registry maps URLs to adapter constructors by host substring. Routes are
// tested in registration order and the first match wins.
type Registry struct {
	routes []route
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry with every built-in site registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("chub.ai", NewChub)
	r.Register("janitorai.com", NewJanitor)
	r.Register("pygmalion.chat", NewPygmalion)
	r.Register("wyvern.chat", NewWyvern)
	return r
}

// Register adds a host identifier and the constructor for its adapter.
func (r *Registry) Register(host string, ctor Constructor) {
	r.routes = append(r.routes, route{host: strings.ToLower(host), ctor: ctor})
}

// Resolve returns the constructor responsible for rawURL.
func (r *Registry) Resolve(rawURL string) (Constructor, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, eris.Wrapf(ErrUnroutable, "sites: %q is not an absolute url", rawURL)
	}
	host := strings.ToLower(u.Hostname())
	for _, rt := range r.routes {
		if strings.Contains(host, rt.host) {
			return rt.ctor, nil
		}
	}
	return nil, eris.Wrapf(ErrUnroutable, "sites: no scraper found for %s", rawURL)
}

// Open resolves rawURL and constructs its adapter. The caller owns the
// returned Scraper and must Close it.
func (r *Registry) Open(rawURL string, opts Options) (Scraper, error) {
	ctor, err := r.Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	return ctor(opts)
}

// Hosts returns the registered host identifiers in registration order.
func (r *Registry) Hosts() []string {
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.host
	}
	return out
}
