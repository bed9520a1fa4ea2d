package httpkit

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/plainq/sparkmail/retry"
)

const (
	defaultNetDialTimeout        = 30 * time.Second
	defaultKeepAliveTimeout      = 30 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	defaultMaxIdleConns          = 100
	defaultIdleConnTimeout       = 90 * time.Second
	defaultExpectContinueTimeout = time.Second

	// defaultTimeout limits the whole request, retries included.
	defaultTimeout = time.Minute
)

var (
	defaultMaxIdleConnsPerHost = runtime.GOMAXPROCS(0) + 1

	// redirectsErrRegExp matches the error returned by net/http
	// when the configured number of redirects is reached.
	redirectsErrRegExp = regexp.MustCompile(`stopped after \d+ redirects\z`)

	// schemeErrRegExp matches the error returned by net/http
	// when the URL scheme is not supported.
	schemeErrRegExp = regexp.MustCompile(`unsupported protocol scheme`)
)

// Config holds configuration options which will be applied to http.Client.
type Config struct {
	dialer *net.Dialer

	timeout   time.Duration
	userAgent string

	// Retries are disabled unless WithRetries is given.
	retryBackoff     retry.Backoff
	retryMaxAttempts uint

	tlsHandshakeTimeout   time.Duration
	maxIdleConns          int
	maxIdleConnsPerHost   int
	idleConnTimeout       time.Duration
	expectContinueTimeout time.Duration
	responseHeaderTimeout time.Duration
}

func (c *Config) transport() *http.Transport {
	transport := http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           c.dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   c.tlsHandshakeTimeout,
		MaxIdleConns:          c.maxIdleConns,
		MaxIdleConnsPerHost:   c.maxIdleConnsPerHost,
		IdleConnTimeout:       c.idleConnTimeout,
		ResponseHeaderTimeout: c.responseHeaderTimeout,
		ExpectContinueTimeout: c.expectContinueTimeout,
	}

	return &transport
}

// ClientOption changes the default configuration of the client
// returned by NewClient.
type ClientOption func(config *Config)

// WithTimeout sets the time limit of a request, retries included.
// Zero means no limit.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(config *Config) { config.timeout = timeout }
}

// WithUserAgent sets the User-Agent header of requests which don't have one.
func WithUserAgent(userAgent string) ClientOption {
	return func(config *Config) { config.userAgent = userAgent }
}

// WithDialTimeout sets the connect timeout.
func WithDialTimeout(timeout time.Duration) ClientOption {
	return func(config *Config) { config.dialer.Timeout = timeout }
}

// WithKeepAliveTimeout sets the TCP keep-alive period.
func WithKeepAliveTimeout(timeout time.Duration) ClientOption {
	return func(config *Config) { config.dialer.KeepAlive = timeout }
}

// WithTLSHandshakeTimeout sets the TLS handshake timeout.
func WithTLSHandshakeTimeout(timeout time.Duration) ClientOption {
	return func(config *Config) { config.tlsHandshakeTimeout = timeout }
}

// WithMaxIdleConnsPerHost sets the number of idle connections kept per host.
func WithMaxIdleConnsPerHost(maxn int) ClientOption {
	return func(config *Config) { config.maxIdleConnsPerHost = maxn }
}

// WithResponseHeaderTimeout sets the time to wait for response headers
// after the request is written.
func WithResponseHeaderTimeout(timeout time.Duration) ClientOption {
	return func(config *Config) { config.responseHeaderTimeout = timeout }
}

// WithRetries makes the client repeat requests which failed on the network
// level or got 429, 502, 503 or 504 status code. Retry-After header of the
// response takes precedence over the backoff.
func WithRetries(options ...retry.Option) ClientOption {
	o := retry.NewOptions(options...)

	return func(config *Config) {
		config.retryBackoff = o.Backoff()
		config.retryMaxAttempts = o.MaxAttempts()
	}
}

// NewClient returns a new http.Client configured with given options.
func NewClient(options ...ClientOption) *http.Client {
	cfg := Config{
		dialer: &net.Dialer{
			Timeout:   defaultNetDialTimeout,
			KeepAlive: defaultKeepAliveTimeout,
		},

		timeout:               defaultTimeout,
		retryBackoff:          retry.StaticBackoff(0),
		retryMaxAttempts:      1,
		tlsHandshakeTimeout:   defaultTLSHandshakeTimeout,
		maxIdleConns:          defaultMaxIdleConns,
		maxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		idleConnTimeout:       defaultIdleConnTimeout,
		expectContinueTimeout: defaultExpectContinueTimeout,
	}

	for _, option := range options {
		option(&cfg)
	}

	tripper := roundTripper{
		maxAttempts: cfg.retryMaxAttempts,
		backoff:     cfg.retryBackoff,
		userAgent:   cfg.userAgent,
		next:        cfg.transport(),
	}

	client := http.Client{
		Transport: &tripper,
		Timeout:   cfg.timeout,
	}

	return &client
}

// roundTripper repeats requests which failed for a reason that may go away.
type roundTripper struct {
	maxAttempts uint
	backoff     retry.Backoff
	userAgent   string
	next        http.RoundTripper
}

func (t *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	if t.maxAttempts <= 1 {
		return t.next.RoundTrip(req)
	}

	var body []byte

	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}

		if err := req.Body.Close(); err != nil {
			return nil, fmt.Errorf("close request body: %w", err)
		}

		body = b
	}

	for attempt := uint(1); ; attempt++ {
		r := req.Clone(req.Context())
		if body != nil {
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		res, err := t.next.RoundTrip(r)

		if attempt == t.maxAttempts || !retryable(res, err) {
			return res, err
		}

		wait := t.backoff.Next(attempt)

		if res != nil {
			if after, ok := retryAfter(res); ok {
				wait = after
			}

			// Drain the body to reuse the connection.
			_, _ = io.Copy(io.Discard, res.Body)
			_ = res.Body.Close()
		}

		if err := sleep(req.Context(), wait); err != nil {
			return nil, err
		}
	}
}

// retryable reports whether the request may succeed when repeated.
func retryable(res *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}

		if redirectsErrRegExp.MatchString(err.Error()) || schemeErrRegExp.MatchString(err.Error()) {
			return false
		}

		var authorityErr x509.UnknownAuthorityError
		if errors.As(err, &authorityErr) {
			return false
		}

		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Err != nil {
			return retryable(nil, urlErr.Err)
		}

		return true
	}

	switch res.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true

	default:
		return false
	}
}

// retryAfter parses the Retry-After header given in seconds.
func retryAfter(res *http.Response) (time.Duration, bool) {
	header := res.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}

	seconds, err := strconv.ParseUint(header, 10, 32)
	if err != nil {
		return 0, false
	}

	return time.Duration(seconds) * time.Second, true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()

	case <-timer.C:
		return nil
	}
}
