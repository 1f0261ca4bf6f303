package account

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/tonimelisma/reelpost/internal/session"
)

const (
	fetchHeadersPath = "/api/v1/si/fetch_headers/"
	loginPath        = "/api/v1/accounts/login/"
	currentUserPath  = "/api/v1/accounts/current_user/?edit=true"
	formContentType  = "application/x-www-form-urlencoded; charset=UTF-8"
)

var _ session.Authenticator = (*Client)(nil)

// Login authenticates username with password and returns a complete session
// bundle: fresh device settings plus every cookie the service set during the
// exchange. The password is never logged. Remote rejections are returned as
// *APIError carrying the service's message.
func (c *Client) Login(ctx context.Context, username, password string) (*session.Bundle, error) {
	ds := newDeviceSettings(c.userAgent)

	cn, err := c.connFor(nil)
	if err != nil {
		return nil, err
	}

	c.logger.Info("requesting login headers", slog.String("account", username))

	guid := strings.ReplaceAll(ds.UUID, "-", "")

	resp, err := c.do(ctx, cn, request{
		method: http.MethodGet,
		path:   fetchHeadersPath + "?challenge_type=signup&guid=" + url.QueryEscape(guid),
		header: deviceHeader(ds),
	})
	if err != nil {
		return nil, fmt.Errorf("account: fetching login headers: %w", err)
	}

	resp.Body.Close()

	form := url.Values{
		"username":            {username},
		"password":            {password},
		"device_id":           {ds.DeviceID},
		"guid":                {ds.UUID},
		"phone_id":            {ds.PhoneID},
		"login_attempt_count": {"0"},
	}

	resp, err = c.do(ctx, cn, request{
		method:      http.MethodPost,
		path:        loginPath,
		contentType: formContentType,
		body:        []byte(form.Encode()),
		header:      deviceHeader(ds),
	})
	if err != nil {
		return nil, fmt.Errorf("account: login: %w", err)
	}
	defer resp.Body.Close()

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("account: decoding login response: %w", err)
	}

	if lr.LoggedInUser.Username == "" {
		return nil, fmt.Errorf("account: login response has no user (status %q)", lr.Status)
	}

	ds.UserID = lr.LoggedInUser.ID

	settings, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("account: encoding session settings: %w", err)
	}

	now := c.now()
	cookies := session.CookiesFromHTTP(sortedCookies(cn.received), now)

	c.logger.Info("login successful",
		slog.String("account", lr.LoggedInUser.Username),
		slog.Int("cookies", len(cookies)),
	)

	return session.NewBundle(username, settings, cookies, now), nil
}

// Probe performs a lightweight authenticated call. It satisfies
// session.Prober: a rejected session yields an error wrapping
// session.ErrExpired.
func (c *Client) Probe(ctx context.Context, b *session.Bundle) error {
	_, err := c.CurrentUser(ctx, b)
	return err
}

// CurrentUser returns the account the bundle is logged in as.
func (c *Client) CurrentUser(ctx context.Context, b *session.Bundle) (*User, error) {
	ds, err := decodeDeviceSettings(b.Settings)
	if err != nil {
		// Settings we cannot read are as good as an expired session.
		return nil, fmt.Errorf("%w: %w", session.ErrExpired, err)
	}

	cn, err := c.connFor(b)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, cn, request{
		method: http.MethodGet,
		path:   currentUserPath,
		header: deviceHeader(ds),
	})
	if err != nil {
		return nil, fmt.Errorf("account: fetching current user: %w", err)
	}
	defer resp.Body.Close()

	var cu currentUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&cu); err != nil {
		return nil, fmt.Errorf("account: decoding current user: %w", err)
	}

	return &cu.User, nil
}

// deviceHeader returns the per-device headers sent with every request.
func deviceHeader(ds deviceSettings) http.Header {
	h := http.Header{}
	h.Set("X-IG-Device-ID", ds.UUID)
	h.Set("X-IG-Android-ID", ds.DeviceID)

	return h
}

func sortedCookies(m map[string]*http.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(m))
	for _, ck := range m {
		out = append(out, ck)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}
