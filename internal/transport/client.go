// Package transport is the HTTP layer shared by the raw-HTTP adapters:
// a pooled client with separate connect and read budgets, request
// building, compressed body decoding and status-code classification.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	llmprovider "github.com/starhound/null-llm-go"
)

// Config sizes the connection pool and timeouts.
type Config struct {
	// ConnectTimeout bounds dialing and the TLS handshake.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the wait for response headers and each idle gap
	// in a streamed body.
	ReadTimeout time.Duration
	// WriteTimeout bounds sending the request body.
	WriteTimeout time.Duration

	MaxConnsPerHost int
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// DefaultConfig fails fast on dead endpoints while leaving slow models
// room to think.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  3 * time.Second,
		ReadTimeout:     120 * time.Second,
		WriteTimeout:    30 * time.Second,
		MaxConnsPerHost: 100,
		MaxIdleConns:    20,
		IdleConnTimeout: 30 * time.Second,
	}
}

// NewHTTPClient builds a client from cfg. It sets no overall timeout since
// streamed responses may legitimately run for minutes.
func NewHTTPClient(cfg Config) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.ReadTimeout,
			ExpectContinueTimeout: time.Second,
			MaxConnsPerHost:       cfg.MaxConnsPerHost,
			MaxIdleConns:          cfg.MaxIdleConns,
			MaxIdleConnsPerHost:   cfg.MaxIdleConns,
			IdleConnTimeout:       cfg.IdleConnTimeout,
			ForceAttemptHTTP2:     true,
		},
	}
}

var (
	sharedClient     *http.Client
	sharedClientOnce sync.Once
)

// Shared returns the process-wide pooled client built from DefaultConfig.
func Shared() *http.Client {
	sharedClientOnce.Do(func() {
		sharedClient = NewHTTPClient(DefaultConfig())
	})
	return sharedClient
}

var (
	tunedClients   = map[Config]*http.Client{}
	tunedClientsMu sync.Mutex
)

// ForOptions returns a client honoring the connect and read timeouts in o.
// Without either it is Shared(); otherwise one pooled client is kept per
// distinct pair of timeouts.
func ForOptions(o *llmprovider.Options) *http.Client {
	if o == nil || (o.ConnectTimeout == nil && o.ReadTimeout == nil) {
		return Shared()
	}
	cfg := DefaultConfig()
	cfg.ConnectTimeout = o.GetConnectTimeout(cfg.ConnectTimeout)
	cfg.ReadTimeout = o.GetReadTimeout(cfg.ReadTimeout)

	tunedClientsMu.Lock()
	defer tunedClientsMu.Unlock()
	if c, ok := tunedClients[cfg]; ok {
		return c
	}
	c := NewHTTPClient(cfg)
	tunedClients[cfg] = c
	return c
}

// Client talks to one vendor base URL.
type Client struct {
	HTTPClient *http.Client
	BaseURL    *url.URL
	Provider   string

	DefaultHeaders http.Header
	UserAgent      string
	Logger         *slog.Logger

	// IdleTimeout aborts a streamed body when no bytes arrive for this long.
	// Zero disables it.
	IdleTimeout time.Duration

	// Prepare, when set, runs on every request after headers are applied.
	// body is the encoded payload (nil for none). Request signing hooks in here.
	Prepare func(req *http.Request, body []byte) error
}

// New returns a client for baseURL. A nil httpClient uses Shared().
func New(provider, baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid endpoint %q: %v", llmprovider.ErrInvalidRequest, baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: endpoint %q must be an absolute URL", llmprovider.ErrInvalidRequest, baseURL)
	}
	if httpClient == nil {
		httpClient = Shared()
	}
	return &Client{
		HTTPClient:     httpClient,
		BaseURL:        u,
		Provider:       provider,
		DefaultHeaders: make(http.Header),
		UserAgent:      "null-llm-go/1",
		Logger:         slog.Default(),
		IdleTimeout:    DefaultConfig().ReadTimeout,
	}, nil
}

// ApplyOptions sets the idle timeout from o's read timeout, if any.
func (c *Client) ApplyOptions(o *llmprovider.Options) {
	c.IdleTimeout = o.GetReadTimeout(c.IdleTimeout)
}

// Resolve joins path (which may carry a query string) onto the base URL.
func (c *Client) Resolve(path string) string {
	u := *c.BaseURL
	p, query, _ := strings.Cut(path, "?")
	u.Path = joinPath(u.Path, p)
	if query != "" {
		if u.RawQuery != "" {
			u.RawQuery += "&" + query
		} else {
			u.RawQuery = query
		}
	}
	return u.String()
}

func joinPath(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if a[len(a)-1] == '/' {
		if b[0] == '/' {
			return a + b[1:]
		}
		return a + b
	}
	if b[0] == '/' {
		return a + b
	}
	return a + "/" + b
}

// NewRequest builds a request with the default headers applied and body
// encoded as JSON (nil means no body).
func (c *Client) NewRequest(ctx context.Context, method, path string, hdr http.Header, body any) (*http.Request, error) {
	var (
		reader io.Reader
		raw    []byte
	)
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to marshal request: %v", llmprovider.ErrInvalidRequest, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Resolve(path), reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llmprovider.ErrInvalidRequest, err)
	}

	mergeHeaders(req.Header, c.DefaultHeaders)
	mergeHeaders(req.Header, hdr)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Prepare != nil {
		if err := c.Prepare(req, raw); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Stream sends a request and returns the response for incremental reading.
// Non-2xx responses are consumed and returned as classified errors. The
// caller must close the returned body.
func (c *Client) Stream(ctx context.Context, method, path string, hdr http.Header, body any) (*http.Response, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := c.NewRequest(ctx, method, path, hdr, body)
	if err != nil {
		cancel()
		return nil, err
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/event-stream")
	}

	c.Logger.Debug("llm stream request", "provider", c.Provider, "method", method, "path", req.URL.Path)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		cancel()
		return nil, llmprovider.Classify(c.Provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		return nil, ErrorFromResponse(c.Provider, resp)
	}

	decoded, err := DecodeBody(resp)
	if err != nil {
		resp.Body.Close()
		cancel()
		return nil, &llmprovider.ProviderError{Provider: c.Provider, StatusCode: resp.StatusCode, Message: err.Error(), Err: llmprovider.ErrProvider}
	}
	resp.Body = withIdleTimeout(decoded, c.IdleTimeout, cancel)
	return resp, nil
}

// JSON sends a request and decodes a 2xx JSON response into out (which may
// be nil to discard it).
func (c *Client) JSON(ctx context.Context, method, path string, hdr http.Header, body, out any) error {
	req, err := c.NewRequest(ctx, method, path, hdr, body)
	if err != nil {
		return err
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", AcceptEncoding)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return llmprovider.Classify(c.Provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ErrorFromResponse(c.Provider, resp)
	}

	decoded, err := DecodeBody(resp)
	if err != nil {
		return &llmprovider.ProviderError{Provider: c.Provider, StatusCode: resp.StatusCode, Message: err.Error(), Err: llmprovider.ErrProvider}
	}
	defer decoded.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, decoded)
		return nil
	}
	if err := json.NewDecoder(decoded).Decode(out); err != nil {
		return &llmprovider.ProviderError{
			Provider:   c.Provider,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to parse response: %v", err),
			Err:        llmprovider.ErrProvider,
		}
	}
	return nil
}

func mergeHeaders(dst, src http.Header) {
	for k, vs := range src {
		dst.Del(k)
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
