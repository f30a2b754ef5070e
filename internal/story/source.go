package story

import (
	"net/url"
	"strings"
)

// sourceNames maps registrable domains to editorial display names.
// Hosts not listed fall back to the capitalized first label of the
// registrable domain.
var sourceNames = map[string]string{
	"reuters.com":          "Reuters",
	"bloomberg.com":        "Bloomberg",
	"wsj.com":              "WSJ",
	"nytimes.com":          "The New York Times",
	"ft.com":               "Financial Times",
	"techcrunch.com":       "TechCrunch",
	"theverge.com":         "The Verge",
	"theinformation.com":   "The Information",
	"wired.com":            "Wired",
	"arstechnica.com":      "Ars Technica",
	"axios.com":            "Axios",
	"cnbc.com":             "CNBC",
	"businessinsider.com":  "Business Insider",
	"venturebeat.com":      "VentureBeat",
	"forbes.com":           "Forbes",
	"fortune.com":          "Fortune",
	"semafor.com":          "Semafor",
	"washingtonpost.com":   "The Washington Post",
	"theatlantic.com":      "The Atlantic",
	"technologyreview.com": "MIT Technology Review",
	"news.google.com":      "Google News",
}

// blockedHosts are never ingested, regardless of feed. Registrable-domain
// match, so subdomains are covered.
var blockedHosts = map[string]bool{
	"youtube.com":    true,
	"reddit.com":     true,
	"x.com":          true,
	"twitter.com":    true,
	"facebook.com":   true,
	"instagram.com":  true,
	"tiktok.com":     true,
	"medium.com":     true,
	"substack.com":   true,
	"prnewswire.com": true,
	"globenewswire.com": true,
	"businesswire.com":  true,
}

// AggregatorHost is the redirect wrapper whose URLs must be resolved to
// the underlying publisher before fingerprinting.
const AggregatorHost = "news.google.com"

// AggregatorSourceName labels items whose wrapper could not be resolved.
const AggregatorSourceName = "Google News"

// registrableDomain returns the last two labels of a hostname. Good
// enough for the news corpus; multi-part public suffixes are not in the
// source table.
func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// SourceFromURL resolves a display name for the article's publisher.
// Exact host match wins over the registrable-domain match; unknown hosts
// get the capitalized first label of the registrable domain. Returns ""
// for unparseable URLs.
func SourceFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))

	if name, ok := sourceNames[host]; ok {
		return name
	}
	domain := registrableDomain(host)
	if name, ok := sourceNames[domain]; ok {
		return name
	}

	label := strings.SplitN(domain, ".", 2)[0]
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// IsBlocked reports whether the URL's host is on the ingest deny-list.
func IsBlocked(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return blockedHosts[registrableDomain(u.Host)]
}

// IsAggregator reports whether the URL points at the redirect wrapper.
func IsAggregator(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimPrefix(u.Host, "www."), AggregatorHost)
}
