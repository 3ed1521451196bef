package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/namikmesic/requrl/internal/urlopts"
	"github.com/nlnwa/whatwg-url/url"
	"github.com/rs/zerolog"
)

type config struct {
	base            urlopts.Options
	timeout         time.Duration
	followRedirects bool
	userAgent       string
	header          http.Header
	logger          zerolog.Logger
	httpClient      *http.Client
}

// Option configures a Client.
type Option func(*config)

// WithBase sets options every request is merged onto.
func WithBase(base urlopts.Options) Option {
	return func(c *config) { c.base = base }
}

// WithTimeout sets the overall request timeout. Zero means none, which is
// what long-lived streaming responses need.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

func WithFollowRedirects(follow bool) Option {
	return func(c *config) { c.followRedirects = follow }
}

func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *config) { c.header.Add(key, value) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithHTTPClient replaces the underlying client. Timeout and redirect
// options are ignored when it is set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// Client sends requests whose URLs are described by urlopts.Options.
type Client struct {
	base      urlopts.Options
	userAgent string
	header    http.Header
	logger    zerolog.Logger
	http      *http.Client
}

func New(opts ...Option) *Client {
	cfg := config{
		header: make(http.Header),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
		if !cfg.followRedirects {
			hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			}
		}
	}

	return &Client{
		base:      cfg.base,
		userAgent: cfg.userAgent,
		header:    cfg.header,
		logger:    cfg.logger,
		http:      hc,
	}
}

// Resolve converts opts merged onto the client's base options.
func (c *Client) Resolve(opts urlopts.Options) (*url.Url, error) {
	return urlopts.ToURL(urlopts.Merge(c.base, opts))
}

// URL is Resolve serialized.
func (c *Client) URL(opts urlopts.Options) (string, error) {
	u, err := c.Resolve(opts)
	if err != nil {
		return "", err
	}
	return u.Href(false), nil
}

// NewRequest builds a request for opts. Conversion failures are returned as
// *urlopts.ValidationError.
func (c *Client) NewRequest(ctx context.Context, method string, opts urlopts.Options, body io.Reader) (*http.Request, error) {
	u, err := c.Resolve(opts)
	if err != nil {
		return nil, err
	}
	return c.NewRequestURL(ctx, method, u, body)
}

// NewRequestURL builds a request for an already resolved URL.
func (c *Client) NewRequestURL(ctx context.Context, method string, u *url.Url, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.Href(false), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, vv := range c.header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// Do sends the request described by opts.
func (c *Client) Do(ctx context.Context, method string, opts urlopts.Options, body io.Reader) (*http.Response, error) {
	req, err := c.NewRequest(ctx, method, opts, body)
	if err != nil {
		return nil, err
	}
	return c.Send(req)
}

// Send executes a prepared request.
func (c *Client) Send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", req.Method).Str("url", req.URL.Redacted()).Msg("request failed")
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request completed")
	return resp, nil
}
