// Package transport issues HTTP requests to the backend with the correct
// credential material attached per request: a bearer header under the
// token strategy, a CSRF header on unsafe verbs under the cookie strategy.
// It never mutates the session; authentication failures propagate to the
// refresh coordinator, which owns recovery.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-client/creds"
)

const (
	csrfHeader         = "X-CSRFToken"
	requestIDHeader    = "X-Request-ID"
	defaultTimeout     = 15 * time.Second
	defaultCSRFCookie  = "csrftoken"
	maxBodyBytes       = 1 << 20
	contentTypeJSON    = "application/json"
	requestedWithValue = "XMLHttpRequest"
)

// Response is a completed, non-error backend response with its body fully
// read.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "[Response.JSON] unmarshal body")
	}
	return nil
}

// Sender is anything that can issue an API request: the raw Client, or the
// refresh coordinator wrapping it with automatic recovery. Feature clients
// depend on this interface only.
type Sender interface {
	Send(ctx context.Context, method, path string, body any) (*Response, error)
}

var _ Sender = (*Client)(nil)

// Client is the secure transport. All mutable state (the active locale) is
// replaced atomically; credential material lives in the injected store.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	store      *creds.Store
	csrf       *CSRFCoordinator
	log        zerolog.Logger

	localeLock sync.RWMutex
	locale     string
}

// ClientOption modifies the Client during construction.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for
// tests and for hosts that manage their own cookie jar).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithLocale sets the initial Accept-Language value.
func WithLocale(tag string) ClientOption {
	return func(c *Client) {
		c.locale = tag
	}
}

// WithCSRFCookieName overrides the cookie consulted when the CSRF issuing
// endpoint omits the token from its JSON body.
func WithCSRFCookieName(name string) ClientOption {
	return func(c *Client) {
		c.csrf.cookieName = name
	}
}

// New creates a transport for the given backend origin. The credential
// store decides the strategy; under the cookie strategy the default HTTP
// client carries a cookie jar so the browser-equivalent session cookie
// survives between requests.
func New(baseURL string, store *creds.Store, options ...ClientOption) (*Client, error) {
	if store == nil {
		return nil, errors.New("[transport.New] credential store is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[transport.New] parse base URL")
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.Errorf("[transport.New] base URL %q missing scheme or host", baseURL)
	}

	c := &Client{
		baseURL: parsed,
		store:   store,
		locale:  "en",
		log:     zerolog.Nop(),
	}
	c.csrf = &CSRFCoordinator{client: c, cookieName: defaultCSRFCookie}

	for _, opt := range options {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
		if store.Strategy() == creds.StrategyCookie {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return nil, errors.Wrap(err, "[transport.New] cookie jar")
			}
			c.httpClient.Jar = jar
		}
	}

	return c, nil
}

// CSRF exposes the coordinator, letting callers warm the token cache
// before the first unsafe request.
func (c *Client) CSRF() *CSRFCoordinator {
	return c.csrf
}

// SetLocale changes the Accept-Language header on subsequent requests.
// The rendering layer calls this when the user switches locale.
func (c *Client) SetLocale(tag string) {
	c.localeLock.Lock()
	defer c.localeLock.Unlock()

	c.locale = tag
}

// Locale returns the active Accept-Language value.
func (c *Client) Locale() string {
	c.localeLock.RLock()
	defer c.localeLock.RUnlock()

	return c.locale
}

// IsSafeMethod reports whether the verb is read-only. Safe verbs never
// need CSRF material.
func IsSafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Send issues one request. A non-nil body is marshalled as JSON. Error
// statuses are returned as *HTTPError with the raw body attached; network
// failures wrap ErrNetwork.
func (c *Client) Send(ctx context.Context, method, path string, body any) (*Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	c.attachCredentials(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.log.Debug().
			Str("request_id", req.Header.Get(requestIDHeader)).
			Str("method", req.Method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("request failed")
		return nil, &HTTPError{Status: resp.StatusCode, Body: data}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.Send] marshal request body")
		}
		reader = bytes.NewReader(data)
	}

	endpoint := strings.TrimRight(c.baseURL.String(), "/") + path
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), endpoint, reader)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Send] build request")
	}

	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("X-Requested-With", requestedWithValue)
	req.Header.Set("Accept-Language", c.Locale())
	req.Header.Set(requestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	return req, nil
}

// attachCredentials decorates the request per the deployment's strategy.
// Credential attachment always happens before the network call; a missing
// CSRF token is logged and the request proceeds bare, surfacing later as a
// backend 403.
func (c *Client) attachCredentials(ctx context.Context, req *http.Request) {
	switch c.store.Strategy() {
	case creds.StrategyToken:
		if token, ok := c.store.Token(); ok {
			token.SetAuthHeader(req)
		}
	case creds.StrategyCookie:
		if IsSafeMethod(req.Method) {
			return
		}
		token, err := c.csrf.EnsureToken(ctx)
		if err != nil {
			c.log.Warn().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Msg("no CSRF token available for unsafe request")
			return
		}
		req.Header.Set(csrfHeader, token)
	}
}
