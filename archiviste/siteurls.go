// CLAUDE:SUMMARY Site-wide URL discovery: CDX domain queries, aggregation, subdomain and path breakdowns.
package archiviste

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/archiviste/archiviste/internal/cache"
	"github.com/hazyhaar/archiviste/archiviste/internal/wbclient"
)

const (
	// maxSiteURLLimit caps the distinct URLs of one discovery response.
	maxSiteURLLimit = 10000
	// maxSiteRawRows caps the raw row fetch behind a counted aggregation.
	maxSiteRawRows = 100000
	topPathBuckets = 20
)

// SiteURLsOptions filters a site discovery query.
type SiteURLsOptions struct {
	From string // accepted timestamp forms, see NormalizeTimestamp
	To   string
	// StatusFilter keeps captures with one HTTP status. Default "200";
	// "any" disables the filter.
	StatusFilter string
	// MimeFilter keeps captures with one MIME type, e.g. "text/html".
	MimeFilter string
	Limit      int // distinct URLs returned. Default 1000, capped at 10000.
	// MatchType widens the query: "domain" includes subdomains, "prefix"
	// matches path prefixes. Default "domain".
	MatchType string
	// IncludeSubdomains narrows a domain-wide query to the bare host when
	// explicitly false. Nil means true.
	IncludeSubdomains *bool
	// Subdomain keeps only URLs under subdomain.<domain>.
	Subdomain string
	// SortBy orders the URL list: oldest | newest | captures. Defaults to
	// captures when counts are aggregated, oldest otherwise.
	SortBy string
	// IncludeCounts aggregates per-URL capture counts, which requires
	// fetching uncollapsed rows.
	IncludeCounts bool
}

// GetSiteURLs discovers the archived URLs of a whole site and summarizes its
// structure. Without counts the index collapses on urlkey server-side; with
// counts raw rows are fetched (up to ten per requested URL) and aggregated
// here.
func (s *Service) GetSiteURLs(ctx context.Context, domain string, opts SiteURLsOptions) (*SiteURLsResult, error) {
	u, err := parseTarget(domain)
	if err != nil {
		return nil, err
	}
	base := baseDomain(u.Hostname())

	matchType := opts.MatchType
	switch matchType {
	case "":
		matchType = "domain"
	case "domain", "prefix", "host", "exact":
	default:
		return nil, fmt.Errorf("%w: match_type %q", ErrInvalidInput, matchType)
	}
	// Excluding subdomains turns a domain-wide query into a bare-host one.
	if matchType == "domain" && opts.IncludeSubdomains != nil && !*opts.IncludeSubdomains {
		matchType = "host"
	}
	sortBy := opts.SortBy
	switch sortBy {
	case "":
		if opts.IncludeCounts {
			sortBy = "captures"
		} else {
			sortBy = "oldest"
		}
	case "oldest", "newest", "captures":
	default:
		return nil, fmt.Errorf("%w: sort_by %q", ErrInvalidInput, sortBy)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	if limit > maxSiteURLLimit {
		limit = maxSiteURLLimit
	}
	opts.From = NormalizeTimestamp(opts.From)
	opts.To = NormalizeTimestamp(opts.To)

	key := cache.Key("siteurls", map[string]any{
		"domain": base, "match_type": matchType, "subdomain": opts.Subdomain,
		"from": opts.From, "to": opts.To,
		"status": opts.StatusFilter, "mime": opts.MimeFilter,
		"sort_by": sortBy, "limit": limit, "counts": opts.IncludeCounts,
	})
	var result SiteURLsResult
	err = s.cached(key, s.config.TTL.SiteURLs, &result, func() error {
		r, err := s.fetchSiteURLs(ctx, base, matchType, sortBy, limit, opts)
		if err != nil {
			return err
		}
		result = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) fetchSiteURLs(ctx context.Context, base, matchType, sortBy string, limit int, opts SiteURLsOptions) (*SiteURLsResult, error) {
	filters := statusFilterParam(opts.StatusFilter)
	if opts.MimeFilter != "" {
		filters = append(filters, "mimetype:"+opts.MimeFilter)
	}
	query := wbclient.CDXQuery{
		URL:           base,
		MatchType:     matchType,
		From:          opts.From,
		To:            opts.To,
		Filters:       filters,
		ShowResumeKey: true,
	}
	if opts.IncludeCounts {
		// Ten raw rows per requested URL is enough to count most sites
		// without fetching the full index.
		raw := limit * 10
		if raw > maxSiteRawRows {
			raw = maxSiteRawRows
		}
		query.Limit = raw
	} else {
		query.Collapse = "urlkey"
		query.Limit = limit
	}

	res, err := s.client.CDX(ctx, query)
	if err != nil {
		return nil, err
	}
	snaps, err := rowsToSnapshots(res.Rows)
	if err != nil {
		return nil, err
	}

	byURL := make(map[string]*SiteURL)
	order := make([]string, 0, len(snaps))
	mimeCounts := make(map[string]int)
	pathCounts := make(map[string]int)
	subdomains := make(map[string]struct{})
	totalCaptures := 0

	for _, sn := range snaps {
		host := hostOf(sn.URL)
		if host == "" {
			continue
		}
		if opts.Subdomain != "" && host != opts.Subdomain+"."+base {
			continue
		}
		totalCaptures++

		// Subdomain breakdown only makes sense on domain-wide queries; the
		// other match types return single-host rows.
		if matchType == "domain" && host != base && strings.HasSuffix(host, "."+base) {
			rest := strings.TrimSuffix(host, "."+base)
			if i := strings.LastIndex(rest, "."); i >= 0 {
				rest = rest[i+1:]
			}
			subdomains[rest] = struct{}{}
		}

		entry, seen := byURL[sn.URL]
		if !seen {
			entry = &SiteURL{
				URL:          sn.URL,
				FirstCapture: sn.Timestamp,
				LastCapture:  sn.Timestamp,
				StatusCode:   sn.StatusCode,
				MimeType:     sn.MimeType,
			}
			byURL[sn.URL] = entry
			order = append(order, sn.URL)

			mimeCounts[sn.MimeType]++
			if seg := firstPathSegment(sn.URL); seg != "" {
				pathCounts[seg]++
			}
		}
		entry.CaptureCount++
		if sn.Timestamp < entry.FirstCapture {
			entry.FirstCapture = sn.Timestamp
		}
		if sn.Timestamp > entry.LastCapture {
			entry.LastCapture = sn.Timestamp
			entry.StatusCode = sn.StatusCode
			entry.MimeType = sn.MimeType
		}
	}

	urls := make([]SiteURL, 0, len(order))
	for _, u := range order {
		urls = append(urls, *byURL[u])
	}
	switch sortBy {
	case "oldest":
		sort.SliceStable(urls, func(i, j int) bool { return urls[i].FirstCapture < urls[j].FirstCapture })
	case "newest":
		sort.SliceStable(urls, func(i, j int) bool { return urls[i].LastCapture > urls[j].LastCapture })
	case "captures":
		sort.SliceStable(urls, func(i, j int) bool { return urls[i].CaptureCount > urls[j].CaptureCount })
	}

	truncated := res.Truncated
	if len(urls) > limit {
		urls = urls[:limit]
		truncated = true
	}

	return &SiteURLsResult{
		Domain:        base,
		TotalURLs:     len(byURL),
		TotalCaptures: totalCaptures,
		URLs:          urls,
		Subdomains:    sortedKeys(subdomains),
		PathStructure: topCounts(pathCounts, topPathBuckets),
		MimeTypes:     topCounts(mimeCounts, 0),
		Truncated:     truncated,
		ResumeKey:     res.ResumeKey,
	}, nil
}

// firstPathSegment returns the leading path element of a URL, or "" for the
// root.
func firstPathSegment(raw string) string {
	rest := stripProtocol(raw)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[i+1:]
	} else {
		return ""
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// topCounts orders a histogram by descending count, name as tiebreaker. n=0
// keeps every bucket.
func topCounts(counts map[string]int, n int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, c := range counts {
		if name == "" {
			continue
		}
		out = append(out, NameCount{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
