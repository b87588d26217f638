// CLAUDE:SUMMARY Timestamp canonicalization to 14-digit form and www-variant URL derivation.
package archiviste

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// timestampLayouts are the general-parser fallbacks tried in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"Jan 2, 2006",
}

// NormalizeTimestamp canonicalizes input to the 14-digit YYYYMMDDhhmmss wire
// form. Accepted: digit strings (right-padded with zeros), YYYY-MM-DD,
// YYYY-MM-DD HH:MM:SS, and a few general layouts. Anything else is returned
// unmodified; downstream callers tolerate an unnormalized value reaching the
// upstream query.
func NormalizeTimestamp(ts string) string {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return ""
	}

	if isDigits(ts) {
		if len(ts) >= 14 {
			return ts[:14]
		}
		return ts + strings.Repeat("0", 14-len(ts))
	}

	// YYYY-MM-DD and YYYY-MM-DD HH:MM:SS.
	if t, err := time.Parse("2006-01-02", ts); err == nil {
		return t.Format("20060102") + "000000"
	}
	if t, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
		return t.Format("20060102150405")
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC().Format("20060102150405")
		}
	}
	return ts
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// timestampTime converts a 14-digit stamp to a time. Shorter digit strings
// are zero-padded first.
func timestampTime(ts string) (time.Time, error) {
	ts = NormalizeTimestamp(ts)
	if len(ts) != 14 || !isDigits(ts) {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidInput, ts)
	}
	t, err := time.Parse("20060102150405", ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidInput, ts)
	}
	return t, nil
}

// ensureScheme prepends http:// when the input has no scheme, so bare domains
// parse with a host.
func ensureScheme(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}

// parseTarget validates a target URL and returns its parsed form.
func parseTarget(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidInput)
	}
	u, err := url.Parse(ensureScheme(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidInput)
	}
	return u, nil
}

// wwwVariant toggles the www. prefix on the host and returns the alternate
// URL. The path is normalized to "/" when empty so variants compare stably.
func wwwVariant(raw string) (string, error) {
	u, err := parseTarget(raw)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Host)
	if strings.HasPrefix(host, "www.") {
		u.Host = strings.TrimPrefix(host, "www.")
	} else {
		u.Host = "www." + host
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// hostOf returns the lowercased host of a URL, or "" when unparseable.
func hostOf(raw string) string {
	u, err := url.Parse(ensureScheme(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// stripProtocol removes the scheme for CDX queries, which match on bare
// host/path form.
func stripProtocol(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		return raw[i+3:]
	}
	return raw
}

// baseDomain strips one leading www. label.
func baseDomain(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
