// Package rest implements the authenticated HTTP session for the Coinbase
// Advanced Trade API. Every outbound request is signed immediately before
// transmission, paced by a rate limiter, retried with exponential backoff
// on transient failures, and optionally served from a TTL-bound response
// cache.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"
	"github.com/veiloq/coinbase-advanced/pkg/auth"
	"github.com/veiloq/coinbase-advanced/pkg/logging"
	"github.com/veiloq/coinbase-advanced/pkg/ratelimit"
)

// DefaultBaseURL is the authenticated REST endpoint of the Advanced
// Trade API.
const DefaultBaseURL = "https://api.coinbase.com/api/v3/brokerage"

// Options holds session configuration. The zero value is usable: every
// unset field falls back to the defaults below.
type Options struct {
	// BaseURL overrides the production REST endpoint, mainly for tests.
	BaseURL string

	// Retries is the number of additional attempts after the first
	// (defaults to 3). Only connection-level failures, 429 and 5xx
	// responses are retried; a 4xx is surfaced immediately.
	Retries uint

	// Backoff is the delay before the first retry; each subsequent
	// retry doubles it (defaults to 1s).
	Backoff time.Duration

	// Timeout bounds each attempt end to end, connect and read
	// included (defaults to 30s).
	Timeout time.Duration

	// EnableCache turns on the GET response cache.
	EnableCache bool

	// CacheTTL is how long a cached GET response stays fresh
	// (defaults to 1m).
	CacheTTL time.Duration

	// RateLimit paces outbound calls (defaults to 30 requests/s, the
	// exchange's private endpoint budget).
	RateLimit ratelimit.Rate

	// Debug enables request/response logging at debug level.
	Debug bool

	// Logger receives session diagnostics (defaults to a no-op logger).
	Logger logging.Logger
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Retries == 0 {
		o.Retries = 3
	}
	if o.Backoff == 0 {
		o.Backoff = time.Second
	}
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.CacheTTL == 0 {
		o.CacheTTL = time.Minute
	}
	if o.RateLimit.Limit == 0 {
		o.RateLimit = ratelimit.Rate{Limit: 30, Interval: time.Second}
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	return o
}

// Session is the resilient authenticated HTTP client. It owns one
// underlying connection pool; call Close when done to release sockets.
// A Session is safe for concurrent use and performs no I/O outside the
// calling goroutine.
type Session struct {
	opts       Options
	signer     *auth.Signer
	httpClient *http.Client
	limiter    ratelimit.RateLimiter
	cache      *responseCache
	logger     logging.Logger
}

// NewSession creates an authenticated session.
//
// Example:
//
//	session, err := rest.NewSession(auth.Credentials{
//		Key:    os.Getenv("CB_API_KEY"),
//		Secret: os.Getenv("CB_API_SECRET"),
//	}, rest.Options{EnableCache: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Close()
func NewSession(creds auth.Credentials, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	signer, err := auth.NewSigner(creds)
	if err != nil {
		return nil, err
	}

	s := &Session{
		opts:   opts,
		signer: signer,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: ratelimit.NewTokenBucketLimiter(opts.RateLimit),
		logger:  opts.Logger,
	}
	if opts.EnableCache {
		s.cache = newResponseCache(opts.CacheTTL)
	}
	return s, nil
}

// Get performs a signed GET against the given resource path. The path is
// joined onto the session base URL; query values are appended but never
// enter the signature pre-hash.
func (s *Session) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return s.do(ctx, http.MethodGet, path, query, nil)
}

// Post performs a signed POST with body marshaled to JSON.
func (s *Session) Post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}
	return s.do(ctx, http.MethodPost, path, nil, payload)
}

// Close releases the session's idle connections. The session must not be
// used afterwards.
func (s *Session) Close() {
	s.httpClient.CloseIdleConnections()
}

func (s *Session) do(ctx context.Context, method, path string, query url.Values, body []byte) (json.RawMessage, error) {
	target, err := s.buildURL(path, query)
	if err != nil {
		return nil, err
	}

	cacheKey := method + " " + target
	if s.cache != nil && method == http.MethodGet {
		if cached, ok := s.cache.get(cacheKey); ok {
			s.logger.Debug("cache hit", logging.String("url", target))
			return cached, nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	signPath, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", target, err)
	}

	var (
		result   json.RawMessage
		lastHTTP *HTTPError
	)
	attempts := s.opts.Retries + 1

	err = retry.Do(
		func() error {
			httpErr, err := s.attempt(ctx, method, target, signPath.Path, body, &result)
			lastHTTP = httpErr
			return err
		},
		retry.Attempts(attempts),
		retry.Delay(s.opts.Backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("retrying request",
				logging.Int("attempt", int(n+1)),
				logging.String("method", method),
				logging.String("url", target),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		if lastHTTP != nil {
			return nil, lastHTTP
		}
		return nil, &TransportError{URL: target, Attempts: attempts, Err: err}
	}

	if s.cache != nil && method == http.MethodGet {
		s.cache.put(cacheKey, result)
	}
	return result, nil
}

// attempt performs a single signed exchange. Signing happens here, inside
// the retry loop, so every attempt carries a fresh timestamp instead of
// resending a signature that may have aged past the exchange's validity
// window. A non-nil *HTTPError is returned alongside the retry error so
// the caller can surface the HTTP failure once the budget is spent.
func (s *Session) attempt(ctx context.Context, method, target, signPath string, body []byte, result *json.RawMessage) (*HTTPError, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("error creating request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	signed := s.signer.SignRequest(method, signPath, body)
	req.Header.Set(auth.HeaderAccessKey, signed.AccessKey)
	req.Header.Set(auth.HeaderAccessSign, signed.Signature)
	req.Header.Set(auth.HeaderAccessTimestamp, signed.Timestamp)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request error: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if s.opts.Debug {
		s.logExchange(req, resp, payload, time.Since(start))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		*result = payload
		return nil, nil
	}

	httpErr := newHTTPError(resp.StatusCode, payload, target)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return httpErr, httpErr
	}
	return httpErr, retry.Unrecoverable(httpErr)
}

func (s *Session) buildURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(s.opts.BaseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func (s *Session) logExchange(req *http.Request, resp *http.Response, body []byte, duration time.Duration) {
	const maxBodyLogSize = 4096

	logged := body
	if len(logged) > maxBodyLogSize {
		logged = logged[:maxBodyLogSize]
	}

	s.logger.Debug("http exchange",
		logging.String("method", req.Method),
		logging.String("url", req.URL.String()),
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", duration),
		logging.Int("body_size", len(body)),
		logging.String("body", string(logged)),
	)
}
