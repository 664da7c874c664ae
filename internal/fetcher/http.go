package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// logPreviewLen bounds how much of a response body is echoed to debug logs.
const logPreviewLen = 100

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// Proxy routes every request through the given upstream proxy when set.
	Proxy *url.URL
}

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client    *http.Client
	transport *http.Transport
	opts      HTTPOptions
	closed    atomic.Bool
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.Proxy != nil {
		transport.Proxy = http.ProxyURL(opts.Proxy)
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		transport: transport,
		opts:      opts,
	}
}

// Get fetches the URL and returns the response body.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	return f.do(req, headers)
}

// PostJSON posts payload as JSON and returns the response body.
func (f *HTTPFetcher) PostJSON(ctx context.Context, rawURL string, headers http.Header, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: marshal payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return f.do(req, headers)
}

// Close releases idle connections. It is safe to call more than once.
func (f *HTTPFetcher) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	f.transport.CloseIdleConnections()
	return nil
}

func (f *HTTPFetcher) do(req *http.Request, headers http.Header) ([]byte, error) {
	if f.closed.Load() {
		return nil, eris.Errorf("fetcher: %s %s: fetcher is closed", req.Method, req.URL)
	}

	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" && f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	rawURL := req.URL.String()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	zap.L().Debug("fetched",
		zap.String("method", req.Method),
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.String("body_preview", preview(body)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Method:     req.Method,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        eris.Errorf("http %d", resp.StatusCode),
		}
	}

	return body, nil
}

func preview(body []byte) string {
	if len(body) <= logPreviewLen {
		return string(body)
	}
	return string(body[:logPreviewLen]) + "..."
}
