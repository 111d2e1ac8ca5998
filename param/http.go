package param

import (
	"context"
	"net/http"
	"net/url"
)

// ValuesSource serves url.Values. A key present with an empty value is
// present. Multi-valued keys yield their first value.
type ValuesSource url.Values

// Lookup implements Source.
func (v ValuesSource) Lookup(_ context.Context, key string) (any, bool) {
	values, ok := v[key]
	if !ok {
		return nil, false
	}
	if len(values) == 0 {
		return "", true
	}
	return values[0], true
}

// HeaderSource serves request headers. Keys are canonicalized.
type HeaderSource http.Header

// Lookup implements Source.
func (h HeaderSource) Lookup(_ context.Context, key string) (any, bool) {
	values, ok := h[http.CanonicalHeaderKey(key)]
	if !ok || len(values) == 0 {
		return nil, false
	}
	return values[0], true
}

// CookieSource serves the cookies sent with a request.
type CookieSource []*http.Cookie

// Lookup implements Source.
func (cs CookieSource) Lookup(_ context.Context, key string) (any, bool) {
	for _, c := range cs {
		if c.Name == key {
			return c.Value, true
		}
	}
	return nil, false
}

// ServerSource exposes request metadata. remote_addr is the peer address;
// forwarded_for is the raw X-Forwarded-For header, which the client controls
// unless a trusted proxy rewrites it.
func ServerSource(r *http.Request) MapSource {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return MapSource{
		"method":        r.Method,
		"path":          r.URL.Path,
		"query":         r.URL.RawQuery,
		"request_uri":   r.RequestURI,
		"host":          r.Host,
		"scheme":        scheme,
		"proto":         r.Proto,
		"remote_addr":   r.RemoteAddr,
		"forwarded_for": r.Header.Get("X-Forwarded-For"),
		"user_agent":    r.UserAgent(),
		"referer":       r.Referer(),
		"content_type":  r.Header.Get("Content-Type"),
	}
}

// FromRequest builds the get, post, cookie, header and server sources of r.
// The form body is parsed; a body that fails to parse leaves post empty and
// the error is returned alongside the usable sources.
func FromRequest(r *http.Request) (Sources, error) {
	err := r.ParseForm()
	post := r.PostForm
	if post == nil {
		post = url.Values{}
	}
	return Sources{
		KindGet:    ValuesSource(r.URL.Query()),
		KindPost:   ValuesSource(post),
		KindCookie: CookieSource(r.Cookies()),
		KindHeader: HeaderSource(r.Header),
		KindServer: ServerSource(r),
	}, err
}
