package crawl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/character-scraper/internal/model"
	"github.com/sells-group/character-scraper/internal/sites"
)

var testSite = model.Site{ID: "site-1", Name: "alpha", URL: "https://alpha.test/", IsEnabled: true}

func TestRunner_ScrapeSite_WalksCursorsAndNormalizes(t *testing.T) {
	fs := &fakeScraper{pages: map[int]*sites.Page{
		1: {
			Characters: []model.Character{char("https://alpha.test/1", "a"), char("https://alpha.test/2", "a"), char("https://alpha.test/1", "a")},
			Next:       model.PageCursor(2),
		},
		2: {Characters: []model.Character{char("https://alpha.test/3", "b")}},
	}}
	st := newMemStore(testSite)
	r := New(st, fakeOpener(map[string]*fakeScraper{"alpha.test": fs}), sites.Options{}, Config{})

	stats, err := r.ScrapeSite(context.Background(), testSite, SiteOpts{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 2, CharactersUpserted: 3}, stats)
	assert.Equal(t, []int{1, 2}, fs.requested)
	assert.True(t, fs.closed)

	batches := st.stored("site-1")
	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Characters, 2)
	assert.Len(t, batches[0].Creators, 1)
}

func TestRunner_ScrapeSite_FirstPageOnly(t *testing.T) {
	fs := &fakeScraper{pages: map[int]*sites.Page{
		1: {Characters: []model.Character{char("https://alpha.test/1", "a")}, Next: model.PageCursor(2)},
	}}
	r := New(newMemStore(), fakeOpener(map[string]*fakeScraper{"alpha.test": fs}), sites.Options{}, Config{})

	stats, err := r.ScrapeSite(context.Background(), testSite, SiteOpts{FirstPageOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, []int{1}, fs.requested)
}

func TestRunner_ScrapeSite_MaxPages(t *testing.T) {
	fs := &fakeScraper{pages: map[int]*sites.Page{}}
	for i := 1; i <= 5; i++ {
		fs.pages[i] = &sites.Page{Characters: []model.Character{char("https://alpha.test/x", "a")}, Next: model.PageCursor(i + 1)}
	}
	r := New(newMemStore(), fakeOpener(map[string]*fakeScraper{"alpha.test": fs}), sites.Options{}, Config{})

	stats, err := r.ScrapeSite(context.Background(), testSite, SiteOpts{MaxPages: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pages)
}

func TestRunner_ScrapeSite_PageFailureKeepsEarlierPages(t *testing.T) {
	fs := &fakeScraper{
		pages: map[int]*sites.Page{
			1: {Characters: []model.Character{char("https://alpha.test/1", "a")}, Next: model.PageCursor(2)},
		},
		pageErr: map[int]error{2: &sites.TransportError{Method: "GET", URL: "https://api.alpha.test?page=2", StatusCode: 503, Err: errors.New("unavailable")}},
	}
	st := newMemStore()
	r := New(st, fakeOpener(map[string]*fakeScraper{"alpha.test": fs}), sites.Options{}, Config{})

	stats, err := r.ScrapeSite(context.Background(), testSite, SiteOpts{})
	require.Error(t, err)
	assert.True(t, sites.IsFetchFailure(err))
	assert.Contains(t, err.Error(), "alpha page 2")
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 1, stats.CharactersUpserted)
	assert.Len(t, st.stored("site-1"), 1)
	assert.True(t, fs.closed)
}

func TestRunner_ScrapeSite_StoreFailureEndsWalk(t *testing.T) {
	fs := &fakeScraper{pages: map[int]*sites.Page{
		1: {Characters: []model.Character{char("https://alpha.test/1", "a")}, Next: model.PageCursor(2)},
	}}
	st := newMemStore()
	st.upsertErr = errors.New("db down")
	r := New(st, fakeOpener(map[string]*fakeScraper{"alpha.test": fs}), sites.Options{}, Config{})

	_, err := r.ScrapeSite(context.Background(), testSite, SiteOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, []int{1}, fs.requested)
}

func TestRunner_ScrapeSite_URLPagesFanOut(t *testing.T) {
	fs := &fakeScraper{
		pages: map[int]*sites.Page{
			1: {URLs: []string{"https://alpha.test/c/1", "https://alpha.test/c/2", "https://alpha.test/c/missing"}},
		},
		characters: map[string]model.Character{
			"https://alpha.test/c/1": char("https://alpha.test/c/1", "a"),
			"https://alpha.test/c/2": char("https://alpha.test/c/2", "b"),
		},
	}
	st := newMemStore()
	r := New(st, fakeOpener(map[string]*fakeScraper{"alpha.test": fs}), sites.Options{}, Config{MaxConcurrentCharacters: 2})

	stats, err := r.ScrapeSite(context.Background(), testSite, SiteOpts{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 1, CharactersUpserted: 2, URLsQueued: 3, URLsFailed: 1}, stats)
	assert.Len(t, st.stored("site-1"), 2)
}

func TestRunner_ScrapeSite_Unroutable(t *testing.T) {
	r := New(newMemStore(), sites.NewRegistry(), sites.Options{}, Config{})

	_, err := r.ScrapeSite(context.Background(), testSite, SiteOpts{})
	assert.ErrorIs(t, err, sites.ErrUnroutable)
}

func TestRunner_ScrapeSite_Cancelled(t *testing.T) {
	fs := &fakeScraper{}
	r := New(newMemStore(), fakeOpener(map[string]*fakeScraper{"alpha.test": fs}), sites.Options{}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.ScrapeSite(ctx, testSite, SiteOpts{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fs.requested)
}

func TestRunner_ScrapeAll_IsolatesFailures(t *testing.T) {
	good := &fakeScraper{pages: map[int]*sites.Page{1: {Characters: []model.Character{char("https://good.test/1", "a")}}}}
	bad := &fakeScraper{pageErr: map[int]error{1: &sites.ParseError{URL: "https://bad.test", Reason: "not json"}}}
	off := &fakeScraper{}

	st := newMemStore(
		model.Site{ID: "g", Name: "good", URL: "https://good.test", IsEnabled: true},
		model.Site{ID: "b", Name: "bad", URL: "https://bad.test", IsEnabled: true},
		model.Site{ID: "o", Name: "off", URL: "https://off.test", IsEnabled: false},
	)
	r := New(st, fakeOpener(map[string]*fakeScraper{"good.test": good, "bad.test": bad, "off.test": off}), sites.Options{}, Config{})

	results, err := r.ScrapeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "good", results[0].Site.Name)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Stats.CharactersUpserted)

	assert.Equal(t, "bad", results[1].Site.Name)
	assert.Error(t, results[1].Err)
	assert.Empty(t, off.requested)
}

func TestRunner_ScrapeAll_FilterByName(t *testing.T) {
	a := &fakeScraper{}
	b := &fakeScraper{}
	st := newMemStore(
		model.Site{ID: "a", Name: "Alpha", URL: "https://a.test", IsEnabled: true},
		model.Site{ID: "b", Name: "beta", URL: "https://b.test", IsEnabled: true},
	)
	r := New(st, fakeOpener(map[string]*fakeScraper{"a.test": a, "b.test": b}), sites.Options{}, Config{})

	results, err := r.ScrapeAll(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Alpha", results[0].Site.Name)
	assert.Empty(t, b.requested)

	results, err = r.ScrapeAll(context.Background(), "gamma")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunner_ScrapeAll_ListError(t *testing.T) {
	st := newMemStore()
	st.listErr = errors.New("boom")
	r := New(st, sites.NewRegistry(), sites.Options{}, Config{})

	_, err := r.ScrapeAll(context.Background())
	assert.ErrorContains(t, err, "list sites")
}

func TestRunner_Collect(t *testing.T) {
	fs := &fakeScraper{
		pages: map[int]*sites.Page{
			1: {Characters: []model.Character{char("https://alpha.test/1", "a")}, Next: model.PageCursor(2)},
			2: {URLs: []string{"https://alpha.test/c/9"}, Next: model.PageCursor(3)},
			3: {},
		},
		characters: map[string]model.Character{"https://alpha.test/c/9": char("https://alpha.test/c/9", "z")},
	}
	st := newMemStore()
	r := New(st, fakeOpener(map[string]*fakeScraper{"alpha.test": fs}), sites.Options{}, Config{})

	first, err := r.Collect(context.Background(), "https://alpha.test/", true)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	all, err := r.Collect(context.Background(), "https://alpha.test/", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "https://alpha.test/c/9", all[1].URL)
	assert.Empty(t, st.stored("site-1"))
}

func TestRunner_ScrapeCharacter(t *testing.T) {
	fs := &fakeScraper{characters: map[string]model.Character{"https://alpha.test/c/1": char("https://alpha.test/c/1", "a")}}
	r := New(newMemStore(), fakeOpener(map[string]*fakeScraper{"alpha.test": fs}), sites.Options{}, Config{})

	c, err := r.ScrapeCharacter(context.Background(), "https://alpha.test/c/1")
	require.NoError(t, err)
	assert.Equal(t, "https://alpha.test/c/1", c.URL)
	assert.True(t, fs.closed)
}
