package transport

import (
	"net/http"
	"net/url"
)

// TokenSource yields the CSRF-style token the backend expects. The composer
// consumes the token from the surrounding page; it never generates one.
type TokenSource interface {
	Token() (string, bool)
}

type TokenSourceFunc func() (string, bool)

func (f TokenSourceFunc) Token() (string, bool) { return f() }

// StaticToken always yields the given token. Empty means no token.
func StaticToken(token string) TokenSource {
	return TokenSourceFunc(func() (string, bool) {
		return token, token != ""
	})
}

// ChainTokenSource yields the first token any source produces, in order.
// Page wiring passes hidden form field, meta tag, then cookie.
func ChainTokenSource(sources ...TokenSource) TokenSource {
	return TokenSourceFunc(func() (string, bool) {
		for _, s := range sources {
			if s == nil {
				continue
			}
			if token, ok := s.Token(); ok {
				return token, true
			}
		}
		return "", false
	})
}

// CookieToken reads the named cookie from a jar, scoped to the backend URL.
func CookieToken(jar http.CookieJar, rawURL, name string) TokenSource {
	return TokenSourceFunc(func() (string, bool) {
		if jar == nil {
			return "", false
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", false
		}
		for _, c := range jar.Cookies(u) {
			if c.Name == name && c.Value != "" {
				return c.Value, true
			}
		}
		return "", false
	})
}
