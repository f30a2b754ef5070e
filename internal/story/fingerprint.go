// Package story holds the pure editorial domain logic: URL
// canonicalization, article fingerprints, source-name resolution,
// host blocklists, and the civil-date rules that drive issue planning.
package story

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during canonicalization.
// Exact names plus the utm_ prefix family.
var trackingParams = map[string]bool{
	"fbclid":     true,
	"gclid":      true,
	"ref":        true,
	"ncid":       true,
	"cmpid":      true,
	"guccounter": true,
	"mc_cid":     true,
	"mc_eid":     true,
}

// Canonicalize normalizes a URL for fingerprinting: lowercase scheme and
// host, strip a leading www., drop tracking parameters and the fragment,
// and trim a trailing slash from the path. Idempotent by construction.
func Canonicalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	u.Host = host
	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			lower := strings.ToLower(key)
			if trackingParams[lower] || strings.HasPrefix(lower, "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	return u.String(), nil
}

// Fingerprint returns the stable article identifier for a URL: the hex
// SHA-256 of the canonical form, truncated to 32 characters. An empty
// string means the URL could not be normalized and the row must be
// dropped.
func Fingerprint(raw string) string {
	canonical, err := Canonicalize(raw)
	if err != nil || canonical == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:32]
}
