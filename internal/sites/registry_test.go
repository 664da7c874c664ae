package sites

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/character-scraper/internal/config"
	"github.com/sells-group/character-scraper/internal/model"
)

// stubScraper satisfies Scraper for routing tests.
type stubScraper struct {
	name string
}

func (s *stubScraper) Name() string { return s.name }
func (s *stubScraper) ScrapeCharacter(context.Context, string) (*model.Character, error) {
	return nil, ErrUnsupported
}
func (s *stubScraper) ScrapeSite(context.Context, string, *model.Cursor) (*Page, error) {
	return &Page{}, nil
}
func (s *stubScraper) Close() error { return nil }

func stubCtor(name string) Constructor {
	return func(Options) (Scraper, error) { return &stubScraper{name: name}, nil }
}

func TestDefaultRegistry_RoutesByHost(t *testing.T) {
	reg := DefaultRegistry()

	tests := map[string]string{
		"https://chub.ai/x/y":                  "chub",
		"https://www.chub.ai/characters":       "chub",
		"https://janitorai.com/":               "janitor",
		"https://pygmalion.chat/explore":       "pygmalion",
		"https://app.wyvern.chat/characters/1": "wyvern",
	}
	for rawURL, want := range tests {
		t.Run(rawURL, func(t *testing.T) {
			s, err := reg.Open(rawURL, Options{})
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, want, s.Name())
		})
	}
}

func TestRegistry_Unroutable(t *testing.T) {
	reg := DefaultRegistry()

	for _, rawURL := range []string{
		"https://unknown.example/x",
		"https://example.com/chub.ai/x",
		"not a url",
		"",
	} {
		_, err := reg.Open(rawURL, Options{})
		require.Error(t, err, rawURL)
		assert.True(t, errors.Is(err, ErrUnroutable), rawURL)
	}
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register("example.com", stubCtor("first"))
	reg.Register("shop.example.com", stubCtor("second"))

	s, err := reg.Open("https://shop.example.com/a", Options{})
	require.NoError(t, err)
	assert.Equal(t, "first", s.Name())
	assert.Equal(t, []string{"example.com", "shop.example.com"}, reg.Hosts())
}

func TestRegistry_HostMatchIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Chub.AI", stubCtor("chub"))

	s, err := reg.Open("https://CHUB.ai/x", Options{})
	require.NoError(t, err)
	assert.Equal(t, "chub", s.Name())
}

func TestNewAdapter_ProxyMissingFailsFast(t *testing.T) {
	for name, ctor := range map[string]Constructor{
		"chub": NewChub, "janitor": NewJanitor, "pygmalion": NewPygmalion, "wyvern": NewWyvern,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ctor(Options{UseProxy: true, Proxy: config.ProxyConfig{Host: "proxy", Port: "8080"}})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProxyConfig)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestNewAdapter_ProxyConfigured(t *testing.T) {
	s, err := NewChub(Options{UseProxy: true, Proxy: config.ProxyConfig{
		Host: "proxy", Port: "8080", Username: "u", Password: "p",
	}})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestAdapter_CloseReleasesTransport(t *testing.T) {
	srv, _ := jsonServer(t, func(_ *http.Request) any { return obj{"results": []obj{}} })
	s, err := NewWyvern(testOptions(srv.URL))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.ScrapeSite(context.Background(), "https://wyvern.chat/", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestPage_Kind(t *testing.T) {
	assert.Equal(t, KindEmpty, (&Page{}).Kind())
	assert.Equal(t, KindCharacters, (&Page{Characters: []model.Character{{}}}).Kind())
	assert.Equal(t, KindURLs, (&Page{URLs: []string{"https://x"}}).Kind())
}
