// Package session persists and restores the authenticated account session
// (settings blob plus cookie jar) so repeated runs can skip interactive login.
//
// The store holds exactly one bundle. A bundle is either fully present and
// consistent or treated as absent: Load never surfaces decode failures to the
// caller, and Save replaces the slot atomically.
package session

import (
	"net/http"
	"time"
)

// SchemaVersion is the on-disk format version. Files carrying any other
// version are treated as corrupt and removed. Version 2 stores Settings as
// base64 so the blob survives byte for byte.
const SchemaVersion = 2

// Bundle is the credential state of one authenticated session. Settings is
// opaque to the store and persisted exactly as given.
type Bundle struct {
	Version  int       `json:"version"`
	Account  string    `json:"account"`
	Settings []byte    `json:"settings"`
	Cookies  []Cookie  `json:"cookies"`
	Created  time.Time `json:"created,omitzero"`
}

// NewBundle builds a current-version bundle for account. created is recorded
// as the login time.
func NewBundle(account string, settings []byte, cookies []Cookie, created time.Time) *Bundle {
	return &Bundle{
		Version:  SchemaVersion,
		Account:  account,
		Settings: settings,
		Cookies:  cookies,
		Created:  created.UTC(),
	}
}

// Cookie is the persisted form of an HTTP cookie. Only the fields needed to
// replay the cookie on later requests are kept.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// complete reports whether b carries everything a usable session needs.
func (b *Bundle) complete() bool {
	if b == nil || b.Version != SchemaVersion || b.Account == "" {
		return false
	}

	return len(b.Settings) > 0
}

// HTTPCookies converts the persisted cookies into net/http cookies.
func (b *Bundle) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(b.Cookies))
	for _, c := range b.Cookies {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}

	return out
}

// CookiesFromHTTP converts net/http cookies into their persisted form.
// Cookies that are already expired are dropped.
func CookiesFromHTTP(cookies []*http.Cookie, now time.Time) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			continue
		}

		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}

		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires.UTC(),
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		})
	}

	return out
}
