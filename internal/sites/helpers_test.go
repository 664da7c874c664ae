package sites

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder keeps the requests a test server received.
type recorder struct {
	mu   sync.Mutex
	reqs []*http.Request
	body [][]byte
}

func (rec *recorder) add(r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.reqs = append(rec.reqs, r.Clone(context.Background()))
	rec.body = append(rec.body, data)
}

func (rec *recorder) requests() []*http.Request {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]*http.Request(nil), rec.reqs...)
}

func (rec *recorder) bodies() [][]byte {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([][]byte(nil), rec.body...)
}

// jsonServer serves the value returned by respond for every request and
// records the requests it saw.
func jsonServer(t *testing.T, respond func(r *http.Request) any) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(respond(r))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

// statusServer always answers with the given status and raw body.
func statusServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOptions(apiBase string) Options {
	return Options{APIBaseURL: apiBase, Timeout: 5 * time.Second}
}

func openAdapter(t *testing.T, ctor Constructor, apiBase string) Scraper {
	t.Helper()
	s, err := ctor(testOptions(apiBase))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type obj = map[string]any
