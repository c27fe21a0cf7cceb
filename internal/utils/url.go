package utils

import (
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "fbclid", "gclid"}

// NormalizeURL canonicalizes a URL so re-proxied copies of the same
// image dedupe to one key: lowercased punycode host, no fragment or
// credentials, tracking parameters stripped, query sorted.
func NormalizeURL(raw string) (string, string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}

	host := strings.ToLower(parsed.Hostname())
	asciiHost, err := idna.ToASCII(host)
	if err == nil {
		host = asciiHost
	}

	parsed.Host = host
	parsed.Fragment = ""
	parsed.User = nil

	query := parsed.Query()
	for _, key := range trackingParams {
		query.Del(key)
	}
	parsed.RawQuery = normalizeQuery(query)

	return parsed.String(), host, nil
}

func normalizeQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clean := url.Values{}
	for _, key := range keys {
		clean[key] = values[key]
	}
	return clean.Encode()
}

// ImageFilename extracts the last path element of an image URL,
// without the query string.
func ImageFilename(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		base := path.Base(rawURL)
		if idx := strings.IndexByte(base, '?'); idx >= 0 {
			base = base[:idx]
		}
		return base
	}
	return path.Base(parsed.Path)
}
