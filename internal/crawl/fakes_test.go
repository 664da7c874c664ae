package crawl

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/sells-group/character-scraper/internal/ingest"
	"github.com/sells-group/character-scraper/internal/model"
	"github.com/sells-group/character-scraper/internal/sites"
	"github.com/sells-group/character-scraper/internal/store"
)

// fakeScraper serves scripted pages keyed by page number.
type fakeScraper struct {
	mu         sync.Mutex
	pages      map[int]*sites.Page
	pageErr    map[int]error
	characters map[string]model.Character
	requested  []int
	closed     bool
}

func (f *fakeScraper) Name() string { return "fake" }

func (f *fakeScraper) ScrapeSite(_ context.Context, _ string, cursor *model.Cursor) (*sites.Page, error) {
	n := cursor.Page(1)
	f.mu.Lock()
	f.requested = append(f.requested, n)
	f.mu.Unlock()
	if err := f.pageErr[n]; err != nil {
		return nil, err
	}
	p, ok := f.pages[n]
	if !ok {
		return &sites.Page{}, nil
	}
	return p, nil
}

func (f *fakeScraper) ScrapeCharacter(_ context.Context, u string) (*model.Character, error) {
	c, ok := f.characters[u]
	if !ok {
		return nil, &sites.TransportError{Method: "GET", URL: u, StatusCode: 404, Err: errors.New("not found")}
	}
	return &c, nil
}

func (f *fakeScraper) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeOpener hands out one scraper per host substring via a real registry.
func fakeOpener(byHost map[string]*fakeScraper) *sites.Registry {
	reg := sites.NewRegistry()
	hosts := make([]string, 0, len(byHost))
	for h := range byHost {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	for _, h := range hosts {
		s := byHost[h]
		reg.Register(h, func(sites.Options) (sites.Scraper, error) { return s, nil })
	}
	return reg
}

// memStore records batches in memory.
type memStore struct {
	store.Store

	mu        sync.Mutex
	sites     []model.Site
	batches   map[string][]ingest.Batch
	failSite  string
	listErr   error
	upsertErr error
}

func newMemStore(sites ...model.Site) *memStore {
	return &memStore{sites: sites, batches: map[string][]ingest.Batch{}}
}

func (m *memStore) ListSites(_ context.Context, enabledOnly bool) ([]model.Site, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Site
	for _, s := range m.sites {
		if !enabledOnly || s.IsEnabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) UpsertBatch(_ context.Context, siteID string, b ingest.Batch) ([]store.CharacterRow, error) {
	if m.upsertErr != nil && (m.failSite == "" || m.failSite == siteID) {
		return nil, m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[siteID] = append(m.batches[siteID], b)
	rows := make([]store.CharacterRow, len(b.Characters))
	for i, c := range b.Characters {
		rows[i] = store.CharacterRow{ID: "id-" + c.URL, URL: c.URL}
	}
	return rows, nil
}

func (m *memStore) stored(siteID string) []ingest.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ingest.Batch(nil), m.batches[siteID]...)
}

func char(url, creator string) model.Character {
	return model.Character{
		Name:     url,
		URL:      url,
		ImageURL: url + ".png",
		Creator:  model.CreatorInput{Name: creator, SiteUniqueIdentifier: creator},
	}
}
