package dpop

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
)

// BuildExpectedHTU derives the canonical target URI a proof's htu claim
// must match: from PublicBaseURL when configured, else from proxy
// forwarding headers, falling back to the request's own Host.
func BuildExpectedHTU(r *http.Request, publicBaseURL string) string {
	if publicBaseURL != "" {
		if u, err := buildHTUFromBase(publicBaseURL, r.URL); err == nil {
			return u
		}
	}
	return buildHTUFromForwarded(r)
}

func buildHTUFromBase(base string, reqURL *url.URL) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = reqURL.Path
	u.RawQuery = reqURL.RawQuery
	return u.String(), nil
}

func buildHTUFromForwarded(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
	}

	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	if host == "" {
		host = "localhost"
	}

	return scheme + "://" + host + r.URL.RequestURI()
}

// NormalizeHTU normalizes a target URI for equality comparison: lowercase
// scheme/host, strip default ports, keep path and query verbatim.
func NormalizeHTU(htu string) string {
	u, err := url.Parse(htu)
	if err != nil {
		return htu
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	if port != "" {
		b.WriteByte(':')
		b.WriteString(port)
	}
	b.WriteString(u.Path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String()
}

// ComputeAth computes the ath claim value: base64url-no-pad(SHA-256(access_token)).
func ComputeAth(accessToken string) string {
	digest := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}
