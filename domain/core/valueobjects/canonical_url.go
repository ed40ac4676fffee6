package valueobjects

import (
	"fmt"
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during canonicalization.
// They carry campaign/session noise and would otherwise split one product
// page into many distinct keys.
var trackingParams = map[string]struct{}{
	"utm_source":     {},
	"utm_medium":     {},
	"utm_campaign":   {},
	"utm_term":       {},
	"utm_content":    {},
	"spm":            {},
	"from":           {},
	"clickTrackInfo": {},
}

// hostPrefixes are subdomain prefixes dropped so that desktop and mobile
// variants of the same page share one canonical key.
var hostPrefixes = []string{"www.", "m."}

// CanonicalURL is the normalized form of a tracked product URL. It is the
// unique identity of a watchlist entry.
type CanonicalURL struct {
	value string
}

// NewCanonicalURL normalizes a raw URL into its canonical form.
// Normalization lowercases the host, strips leading www./m. prefixes, drops
// the fragment and tracking query parameters, and trims the trailing slash
// from the path. An error is returned when the input is not an absolute
// http(s) URL with a host.
func NewCanonicalURL(raw string) (CanonicalURL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return CanonicalURL{}, fmt.Errorf("url is empty")
	}

	u, err := url.Parse(s)
	if err != nil {
		return CanonicalURL{}, fmt.Errorf("invalid url: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return CanonicalURL{}, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	host := strings.ToLower(u.Host)
	for _, pre := range hostPrefixes {
		if strings.HasPrefix(host, pre) {
			host = host[len(pre):]
			break
		}
	}
	if host == "" {
		return CanonicalURL{}, fmt.Errorf("url has no host")
	}

	// Drop tracking parameters; Encode sorts whatever survives so param
	// order never produces distinct keys.
	query := u.Query()
	for key := range query {
		if _, drop := trackingParams[key]; drop {
			query.Del(key)
		}
	}

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}

	canon := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     path,
		RawQuery: query.Encode(),
	}

	return CanonicalURL{value: canon.String()}, nil
}

// String returns the canonical string form.
func (c CanonicalURL) String() string {
	return c.value
}

// IsZero reports whether the value is uninitialized.
func (c CanonicalURL) IsZero() bool {
	return c.value == ""
}

// Host returns the canonical host portion of the URL.
func (c CanonicalURL) Host() string {
	u, err := url.Parse(c.value)
	if err != nil {
		return ""
	}
	return u.Host
}

// Equals compares two canonical URLs.
func (c CanonicalURL) Equals(other CanonicalURL) bool {
	return c.value == other.value
}
