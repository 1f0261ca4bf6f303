package account

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/tonimelisma/reelpost/internal/session"
)

// Retry and backoff constants. Retries cover transport failures and
// transient HTTP statuses only; application errors are never retried.
const (
	maxRetries     = 3
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25

	// DefaultUserAgent is sent when the config does not override it.
	DefaultUserAgent = "reelpost/0.1"

	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://i.instagram.com"

	csrfCookie = "csrftoken"
)

// Client talks to the account service. It holds no session state: every
// call takes the bundle it should authenticate with.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error

	// now is the clock used for cookie expiry and bundle timestamps.
	now func() time.Time
}

// NewClient creates an account-service client rooted at baseURL.
func NewClient(baseURL string, httpClient *http.Client, userAgent string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger,
		sleepFunc:  timeSleep,
		now:        time.Now,
	}
}

// request describes one API call. body is a byte slice so it can be replayed
// on retry.
type request struct {
	method      string
	path        string
	contentType string
	body        []byte
	header      http.Header
}

// conn carries the cookie state of one logical session across requests.
type conn struct {
	jar *cookiejar.Jar

	// received records every Set-Cookie seen, keyed by name, so Login can
	// build a bundle with full cookie attributes.
	received map[string]*http.Cookie
}

func newConn(b *session.Bundle, base *url.URL) (*conn, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("account: creating cookie jar: %w", err)
	}

	c := &conn{jar: jar, received: make(map[string]*http.Cookie)}

	if b != nil {
		jar.SetCookies(base, b.HTTPCookies())
	}

	return c, nil
}

func (cn *conn) csrfToken(u *url.URL) string {
	for _, ck := range cn.jar.Cookies(u) {
		if ck.Name == csrfCookie {
			return ck.Value
		}
	}

	return ""
}

// connFor builds a conn seeded with the bundle's cookies.
func (c *Client) connFor(b *session.Bundle) (*conn, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("account: parsing base URL: %w", err)
	}

	return newConn(b, base)
}

// do executes req with retry and exponential backoff. On success the caller
// owns the response body. Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, cn *conn, req request) (*http.Response, error) {
	target := c.baseURL + req.path

	var attempt int
	for {
		resp, err := c.doOnce(ctx, cn, target, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("account: request canceled: %w", ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", req.method),
					slog.String("path", req.path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("account: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("account: %s %s failed after %d retries: %w", req.method, req.path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", req.method),
				slog.String("path", req.path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", req.method),
				slog.String("path", req.path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("account: request canceled: %w", err)
			}

			attempt++

			continue
		}

		apiErr := newAPIError(resp.StatusCode, errBody)
		c.logger.Debug("request failed",
			slog.String("method", req.method),
			slog.String("path", req.path),
			slog.Int("status", resp.StatusCode),
			slog.String("error_type", apiErr.ErrorType),
			slog.Int("attempts", attempt+1),
		)

		return nil, apiErr
	}
}

// doOnce executes a single HTTP request (no retry), attaching the session's
// cookies and recording any cookies the server sets.
func (c *Client) doOnce(ctx context.Context, cn *conn, target string, req request) (*http.Response, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")

	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	for _, ck := range cn.jar.Cookies(httpReq.URL) {
		httpReq.AddCookie(ck)
	}

	if tok := cn.csrfToken(httpReq.URL); tok != "" {
		httpReq.Header.Set("X-CSRFToken", tok)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if set := resp.Cookies(); len(set) > 0 {
		cn.jar.SetCookies(httpReq.URL, set)

		for _, ck := range set {
			cn.received[ck.Name] = ck
		}
	}

	return resp, nil
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
