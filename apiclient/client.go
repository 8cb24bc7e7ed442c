// Package apiclient sends requests to the BiteUI API on behalf of a
// session. It attaches the bearer token, refreshes it once when a request
// is rejected with 401 (sharing one refresh between concurrent callers),
// retries the rejected request once, and ends the session when the failure
// cannot be recovered.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/jrsteele09/go-biteui-client/internal/errors"
	"github.com/jrsteele09/go-biteui-client/session"
)

const (
	HeaderRequestID = "X-Request-ID"

	defaultTimeout = 30 * time.Second
)

type Client struct {
	baseURL     string
	http        *http.Client
	session     *session.Manager
	refreshPath string
	userAgent   string
	limiter     *rate.Limiter
	metrics     *Metrics
	log         zerolog.Logger

	refreshes singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its Timeout also bounds the
// shared token refresh.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

func WithRefreshPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.refreshPath = path
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRateLimit paces outbound requests. A non-positive limit disables it.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func New(baseURL string, sess *session.Manager, opts ...Option) (*Client, error) {
	if sess == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	c := &Client{
		baseURL:     baseURL,
		http:        &http.Client{Timeout: defaultTimeout},
		session:     sess,
		refreshPath: PathRefresh,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Session() *session.Manager {
	return c.session
}

func (c *Client) refreshEligible(req Request) bool {
	return req.AuthRequired && !req.SkipAuthRefresh && req.Path != c.refreshPath
}

// Execute performs req. Non-2xx responses are returned as *APIError and
// failures to get a response as *TransportError. A 401 on an authenticated
// call is retried once after a token refresh when the call allows it;
// otherwise, or when the refresh or the retry fails, the session is cleared
// and the 401 is returned.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	target, err := BuildURL(c.baseURL, req.Path, req.Query)
	if err != nil {
		return nil, err
	}
	var body []byte
	if req.Body != nil {
		if body, err = json.Marshal(req.Body); err != nil {
			return nil, errors.Wrapf(err, "encoding %s %s body", req.Method, req.Path)
		}
	}

	resp, usedToken, err := c.send(ctx, req, target, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !req.AuthRequired {
		return finish(resp)
	}

	original := newAPIError(resp)
	if !c.refreshEligible(req) {
		c.clearSession(ctx, session.ReasonUnauthorized)
		original.SessionCleared = true
		return nil, original
	}

	if _, err := c.refresh(ctx, usedToken); err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Method: req.Method, URL: target, Err: err}
		}
		reason := session.ReasonRefreshFailed
		if errors.Is(err, ErrNoRefreshToken) {
			reason = session.ReasonUnauthorized
		} else {
			c.log.Warn().Err(err).Str("path", req.Path).Msg("token refresh failed")
		}
		c.clearSession(ctx, reason)
		original.SessionCleared = true
		original.RefreshErr = err
		return nil, original
	}

	resp, _, err = c.send(ctx, req, target, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		apiErr := newAPIError(resp)
		c.clearSession(ctx, session.ReasonUnauthorized)
		apiErr.SessionCleared = true
		return nil, apiErr
	}
	return finish(resp)
}

func finish(resp *Response) (*Response, error) {
	if !resp.OK() {
		return nil, newAPIError(resp)
	}
	return resp, nil
}

// send performs a single HTTP exchange and returns the access token it
// attached, if any.
func (c *Client) send(ctx context.Context, req Request, target string, body []byte) (*Response, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", &TransportError{Method: req.Method, URL: target, Err: err}
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, "", errors.Wrapf(err, "building %s %s", req.Method, req.Path)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	requestID := httpReq.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		httpReq.Header.Set(HeaderRequestID, requestID)
	}

	var token string
	if req.AuthRequired && httpReq.Header.Get("Authorization") == "" {
		if token, err = c.session.AccessToken(ctx); err != nil {
			return nil, "", err
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.request(req.Method, 0)
		c.log.Debug().Err(err).Str("method", req.Method).Str("path", req.Path).Str("request_id", requestID).Msg("api request failed")
		return nil, token, &TransportError{Method: req.Method, URL: target, Err: err}
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		JSON:       isJSON(httpResp.Header.Get("Content-Type")),
		RequestID:  requestID,
	}
	if httpResp.StatusCode != http.StatusNoContent {
		if resp.Body, err = io.ReadAll(httpResp.Body); err != nil {
			c.metrics.request(req.Method, 0)
			return nil, token, &TransportError{Method: req.Method, URL: target, Err: err}
		}
	}

	c.metrics.request(req.Method, resp.StatusCode)
	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", requestID).
		Msg("api request")
	return resp, token, nil
}

func (c *Client) clearSession(ctx context.Context, reason session.Reason) {
	c.metrics.sessionCleared(string(reason))
	if err := c.session.Clear(context.WithoutCancel(ctx), reason); err != nil {
		c.log.Error().Err(err).Str("reason", string(reason)).Msg("clearing session")
	}
}
